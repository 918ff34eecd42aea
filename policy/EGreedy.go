// Package policy implements epsilon-greedy action selection over a
// value network, restricted to the legal actions of the current
// state.
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"pursuitrl/game"
)

// Valuer produces one value estimate per action for a flattened
// encoded state. The value network's evaluator satisfies this
// interface.
type Valuer interface {
	ActionValues(obs []float64) ([]float64, error)
}

// EGreedy selects actions epsilon-greedily: with probability epsilon
// a uniformly random legal action, otherwise the legal action of
// highest estimated value. The controller owns the exploration
// schedule; epsilon decays once per training decision. In evaluation
// mode epsilon is pinned at the schedule floor and the schedule does
// not advance. Ties between equal-valued actions break
// deterministically in enumeration order.
type EGreedy struct {
	valuer   Valuer
	schedule *Schedule
	rng      *rand.Rand
	eval     bool
}

// NewEGreedy returns a new epsilon-greedy controller over the given
// valuer with a linear epsilon decay schedule.
func NewEGreedy(v Valuer, start, floor, decay float64,
	seed uint64) *EGreedy {
	return &EGreedy{
		valuer:   v,
		schedule: NewSchedule(start, floor, decay),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Eval puts the controller into evaluation mode: epsilon is pinned at
// the schedule floor and the schedule no longer advances.
func (e *EGreedy) Eval() {
	e.eval = true
}

// Train puts the controller back into training mode. The schedule
// resumes from the position training left it at.
func (e *EGreedy) Train() {
	e.eval = false
}

// Evaluating returns whether the controller is in evaluation mode.
func (e *EGreedy) Evaluating() bool {
	return e.eval
}

// Epsilon returns the current exploration rate: the scheduled value
// in training mode, the schedule floor in evaluation mode.
func (e *EGreedy) Epsilon() float64 {
	if e.eval {
		return e.schedule.Floor()
	}
	return e.schedule.Epsilon()
}

// Schedule returns the controller's exploration schedule.
func (e *EGreedy) Schedule() *Schedule {
	return e.schedule
}

// SelectAction selects an action for the encoded state obs from the
// legal action set supplied by the game. Actions outside the legal
// set are never selected, at any epsilon. In training mode each call
// advances the decay schedule by one step.
func (e *EGreedy) SelectAction(obs *mat.VecDense,
	legal []game.Action) (game.Action, error) {
	if len(legal) == 0 {
		return game.Stop, fmt.Errorf("selectaction: no legal actions")
	}

	eps := e.Epsilon()
	if !e.eval {
		e.schedule.Step()
	}

	if e.rng.Float64() < eps {
		return legal[e.rng.Intn(len(legal))], nil
	}

	values, err := e.valuer.ActionValues(obs.RawVector().Data)
	if err != nil {
		return game.Stop, fmt.Errorf("selectaction: %v", err)
	}
	if len(values) != game.NumActions() {
		return game.Stop, fmt.Errorf("selectaction: expected %v action "+
			"values, got %v", game.NumActions(), len(values))
	}

	allowed := make([]bool, game.NumActions())
	for _, a := range legal {
		allowed[a] = true
	}

	// Greedy over legal actions only; the enumeration order of the
	// scan is the tie-break
	best := game.Stop
	found := false
	for _, a := range game.Actions() {
		if !allowed[a] {
			continue
		}
		if !found || values[a] > values[best] {
			best = a
			found = true
		}
	}

	return best, nil
}
