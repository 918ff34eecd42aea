// Package experiment drives training and evaluation of an agent
// against the game collaborator.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"pursuitrl/agent"
	"pursuitrl/encoder"
	"pursuitrl/game"
)

// Config holds the episode schedule of one run.
type Config struct {
	// NumTrainingEpisodes is the number of episodes run in training
	// mode; episodes after it run in evaluation mode
	NumTrainingEpisodes int `json:"num_training_episodes"`

	// NumTotalEpisodes is the total number of episodes to run
	NumTotalEpisodes int `json:"num_total_episodes"`

	// ProgressInterval is the number of episodes between progress
	// reports
	ProgressInterval int `json:"progress_interval"`

	// MaxStepsPerEpisode guards against episodes that never reach a
	// terminal snapshot; 0 disables the guard
	MaxStepsPerEpisode int `json:"max_steps_per_episode"`
}

// Validate checks the Config for a valid episode schedule.
func (c Config) Validate() error {
	if c.NumTotalEpisodes < 1 {
		return fmt.Errorf("config: must run at least one episode "+
			"\n\thave(%v)", c.NumTotalEpisodes)
	}
	if c.NumTrainingEpisodes > c.NumTotalEpisodes {
		return fmt.Errorf("config: training episodes (%v) cannot exceed "+
			"total episodes (%v)", c.NumTrainingEpisodes, c.NumTotalEpisodes)
	}
	return nil
}

// Online runs an agent against a game, one synchronous step at a
// time: select action, apply it, observe the outcome, update. There
// is no overlap between environment stepping and learning within a
// step.
type Online struct {
	game  game.Game
	agent agent.Agent
	cfg   Config

	episode int
	scores  []float64 // Scores since the last progress report
}

// NewOnline creates and returns a new online experiment running the
// given agent on the given game.
func NewOnline(g game.Game, a agent.Agent, cfg Config) (*Online, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Online{game: g, agent: a, cfg: cfg}, nil
}

// RunEpisode runs a single episode and returns its final score. The
// context is checked between steps: cancellation stops the run
// cooperatively, after the in-flight update has completed.
func (o *Online) RunEpisode(ctx context.Context) (float64, error) {
	snap := o.game.Reset()

	steps := 0
	for !snap.Terminal {
		if err := ctx.Err(); err != nil {
			return snap.Score, err
		}
		if o.cfg.MaxStepsPerEpisode > 0 && steps >= o.cfg.MaxStepsPerEpisode {
			break
		}

		action, err := o.agent.SelectAction(snap)
		if err != nil {
			return snap.Score, err
		}

		next, scoreDelta := o.game.Step(action)
		if err := o.agent.Observe(snap, action, next, scoreDelta); err != nil {
			return next.Score, err
		}

		snap = next
		steps++
	}

	return snap.Score, nil
}

// Run runs the full episode schedule. Encoding errors abort the
// current episode and the run continues; every other error is fatal
// for the run and is reported with the episode at which it occurred.
func (o *Online) Run(ctx context.Context) error {
	for ; o.episode < o.cfg.NumTotalEpisodes; o.episode++ {
		if o.episode == o.cfg.NumTrainingEpisodes {
			o.agent.Eval()
			log.Info().
				Int("episode", o.episode).
				Msg("training finished, switching to evaluation mode")
		}

		score, err := o.RunEpisode(ctx)
		if err != nil {
			var encErr *encoder.EncodingError
			if errors.As(err, &encErr) {
				// Malformed snapshot: fatal for the episode only
				log.Warn().
					Err(encErr).
					Int("episode", o.episode).
					Msg("malformed snapshot, aborting episode")
				continue
			}
			if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
				log.Info().
					Int("episode", o.episode).
					Msg("run stopped")
				return err
			}
			log.Error().
				Err(err).
				Int("episode", o.episode).
				Int("step", o.agent.Steps()).
				Msg("fatal training error")
			return err
		}

		o.scores = append(o.scores, score)
		if o.cfg.ProgressInterval > 0 &&
			(o.episode+1)%o.cfg.ProgressInterval == 0 {
			o.reportProgress()
		}
	}

	return nil
}

// reportProgress logs the running average score since the last report
// along with the current exploration state.
func (o *Online) reportProgress() {
	var sum float64
	for _, s := range o.scores {
		sum += s
	}
	avg := sum / float64(len(o.scores))
	o.scores = o.scores[:0]

	log.Info().
		Int("episode", o.episode+1).
		Int("step", o.agent.Steps()).
		Float64("avgScore", avg).
		Float64("epsilon", o.agent.Epsilon()).
		Msg("progress")
}
