// Package timestep implements transitions of the agent-environment
// interaction.
package timestep

import "gonum.org/v1/gonum/mat"

// Transition is one observed (state, action, reward, next state)
// tuple. The Action is stored as a one-hot vector over the action
// enumeration. Terminal transitions carry Discount == 0 and a zero
// NextState; the zero discount guarantees that consumers never
// bootstrap a value estimate from a terminal successor, no matter what
// the network predicts for the sentinel state.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
}

// NewTransition returns a new Transition.
func NewTransition(state, action *mat.VecDense, reward, discount float64,
	nextState *mat.VecDense) Transition {
	return Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		Discount:  discount,
		NextState: nextState,
	}
}

// Terminal returns whether the transition ends an episode.
func (t Transition) Terminal() bool {
	return t.Discount == 0
}
