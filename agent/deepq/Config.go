package deepq

import (
	"fmt"

	"pursuitrl/solver"
)

// Config holds every tunable of one training run.
type Config struct {
	// Replay memory
	ReplayCapacity int `json:"replay_capacity"`
	BatchSize      int `json:"batch_size"`

	// WarmUp is the minimum number of stored transitions before
	// learning updates begin. Raised to BatchSize when smaller.
	WarmUp int `json:"warm_up_size"`

	// UpdateInterval is the number of environment steps between
	// gradient updates
	UpdateInterval int `json:"update_interval"`

	Discount float64 `json:"discount_factor"`

	// Exploration schedule
	EpsilonStart float64 `json:"epsilon_start"`
	EpsilonFloor float64 `json:"epsilon_floor"`
	EpsilonDecay float64 `json:"epsilon_decay"`

	// Target network synchronization. Tau == 1 is a hard sync; Tau <
	// 1 is a Polyak (exponential moving average) soft sync.
	SyncInterval int     `json:"sync_interval"`
	Tau          float64 `json:"tau"`

	// Checkpointing. CheckpointInterval counts environment steps and
	// is independent of SyncInterval; a 0 interval or empty path
	// disables checkpointing.
	CheckpointInterval int    `json:"checkpoint_interval"`
	CheckpointPath     string `json:"checkpoint_path"`

	// Solver adapts the online network weights
	Solver *solver.Solver `json:"solver"`

	// InitGain is the gain of the Glorot uniform weight
	// initialization
	InitGain float64 `json:"init_gain"`

	Rewards RewardConfig `json:"rewards"`
}

// DefaultConfig returns a Config with the hyperparameters the agent
// trains with by default. The solver is left nil; New fills in a
// default Adam solver sized to the batch.
func DefaultConfig() Config {
	return Config{
		ReplayCapacity:     100_000,
		BatchSize:          32,
		WarmUp:             5_000,
		UpdateInterval:     1,
		Discount:           0.95,
		EpsilonStart:       1.0,
		EpsilonFloor:       0.1,
		EpsilonDecay:       1e-4,
		SyncInterval:       1_000,
		Tau:                1.0,
		CheckpointInterval: 10_000,
		InitGain:           1.0,
		Rewards:            DefaultRewards(),
	}
}

// Validate checks the Config for a valid configuration of a DeepQ
// agent.
func (c Config) Validate() error {
	if c.ReplayCapacity < 1 {
		return fmt.Errorf("config: replay capacity must be positive "+
			"\n\thave(%v)", c.ReplayCapacity)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be positive "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.BatchSize > c.ReplayCapacity {
		return fmt.Errorf("config: batch size (%v) cannot exceed replay "+
			"capacity (%v)", c.BatchSize, c.ReplayCapacity)
	}
	if c.UpdateInterval < 1 {
		return fmt.Errorf("config: update interval must be positive "+
			"\n\thave(%v)", c.UpdateInterval)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("config: discount factor must be in [0, 1] "+
			"\n\thave(%v)", c.Discount)
	}
	if c.EpsilonFloor < 0 || c.EpsilonStart < c.EpsilonFloor {
		return fmt.Errorf("config: need 0 <= epsilon floor (%v) <= "+
			"epsilon start (%v)", c.EpsilonFloor, c.EpsilonStart)
	}
	if c.EpsilonDecay < 0 {
		return fmt.Errorf("config: epsilon decay must be non-negative "+
			"\n\thave(%v)", c.EpsilonDecay)
	}
	if c.SyncInterval < 1 {
		return fmt.Errorf("config: target networks must be synchronized "+
			"at positive step intervals \n\thave(%v)", c.SyncInterval)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("config: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}
	return nil
}

// warmUp returns the effective warm-up threshold.
func (c Config) warmUp() int {
	if c.WarmUp < c.BatchSize {
		return c.BatchSize
	}
	return c.WarmUp
}
