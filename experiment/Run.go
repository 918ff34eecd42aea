package experiment

import (
	"context"
	"fmt"

	"pursuitrl/agent/deepq"
	"pursuitrl/game"
)

// Train is the training entry point exposed to the surrounding
// CLI/orchestration layer. It builds a DeepQ agent for the given grid
// dimensions (resuming from the configured checkpoint when one
// exists), runs the full episode schedule, and returns the trained
// agent.
func Train(ctx context.Context, g game.Game, height, width int,
	agentCfg deepq.Config, cfg Config, seed uint64) (*deepq.DeepQ, error) {
	a, err := deepq.New(height, width, agentCfg, seed)
	if err != nil {
		return nil, fmt.Errorf("train: %v", err)
	}

	exp, err := NewOnline(g, a, cfg)
	if err != nil {
		return nil, fmt.Errorf("train: %v", err)
	}
	if err := exp.Run(ctx); err != nil {
		return a, err
	}

	return a, nil
}

// Evaluate is the evaluation entry point: it loads the configured
// checkpoint and runs the agent in evaluation mode only, with
// exploration pinned at the epsilon floor and no learning updates.
// The average score over all episodes is returned.
func Evaluate(ctx context.Context, g game.Game, height, width int,
	agentCfg deepq.Config, episodes int, seed uint64) (float64, error) {
	// Evaluation never writes checkpoints
	agentCfg.CheckpointInterval = 0
	agentCfg.EpsilonStart = agentCfg.EpsilonFloor

	a, err := deepq.New(height, width, agentCfg, seed)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %v", err)
	}
	a.Eval()

	exp, err := NewOnline(g, a, Config{
		NumTrainingEpisodes: 0,
		NumTotalEpisodes:    episodes,
	})
	if err != nil {
		return 0, fmt.Errorf("evaluate: %v", err)
	}

	var sum float64
	for i := 0; i < episodes; i++ {
		score, err := exp.RunEpisode(ctx)
		if err != nil {
			return 0, fmt.Errorf("evaluate: episode %v: %w", i, err)
		}
		sum += score
	}

	return sum / float64(episodes), nil
}
