// Package agent outlines the interface learning agents expose to the
// experiment loop.
package agent

import "pursuitrl/game"

// Agent turns a stream of game snapshots into actions and, in
// training mode, into parameter updates.
type Agent interface {
	// SelectAction chooses an action for the current snapshot,
	// restricted to its legal action set
	SelectAction(game.Snapshot) (game.Action, error)

	// Observe records the outcome of applying action to prev: the
	// successor snapshot and the raw score delta. In training mode
	// this stores a transition and may run a learning update.
	Observe(prev game.Snapshot, action game.Action, next game.Snapshot,
		scoreDelta float64) error

	// Eval puts the agent into evaluation mode: no storage, no
	// updates, no exploration decay
	Eval()

	// Train puts the agent into training mode
	Train()

	// Epsilon returns the current exploration rate
	Epsilon() float64

	// Steps returns the number of environment steps observed
	Steps() int
}
