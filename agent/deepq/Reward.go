package deepq

import "pursuitrl/game"

// RewardConfig holds the reward-shaping constants applied to every
// transition before storage. Shaping is derived from the game's raw
// score delta plus terminal bonuses and penalties; the constants are
// configuration, not architecture.
type RewardConfig struct {
	// Food is the reward for a step that consumed an item
	Food float64

	// Ghost is the reward for a step that destroyed a vulnerable
	// opponent
	Ghost float64

	// Win is the terminal bonus for clearing the maze
	Win float64

	// Loss is the terminal penalty for being destroyed or timing out
	Loss float64

	// Living is the per-step penalty applied when nothing else
	// happened
	Living float64

	// GhostScoreDelta is the minimum raw score delta that counts as
	// having destroyed an opponent
	GhostScoreDelta float64
}

// DefaultRewards returns the shaping constants the agent trains with
// by default.
func DefaultRewards() RewardConfig {
	return RewardConfig{
		Food:            10,
		Ghost:           50,
		Win:             100,
		Loss:            -500,
		Living:          -1,
		GhostScoreDelta: 100,
	}
}

// Shape maps one step's raw score delta and successor snapshot to the
// shaped reward stored with the transition.
func (r RewardConfig) Shape(scoreDelta float64, next game.Snapshot) float64 {
	switch {
	case next.Terminal && next.Won:
		return r.Win
	case next.Terminal:
		return r.Loss
	case scoreDelta >= r.GhostScoreDelta:
		return r.Ghost
	case scoreDelta > 0:
		return r.Food
	default:
		return r.Living
	}
}
