package experiments

import (
	"time"

	"connect6/experiments/metrics"

	"github.com/samber/lo"
)

// ThroughputExperiment pairs each goroutine count against itself, for the
// same playing strength and similar game length, to measure episodes per
// decision as parallelism grows.
func ThroughputExperiment(boardSize, games int, duration time.Duration, goroutines ...int) Experiment {
	if duration <= 0 {
		duration = TimeBudget
	}
	if len(goroutines) == 0 {
		goroutines = []int{1, 2, 4, 8, 16, 32, 64, 128}
	}
	configs := lo.Map(goroutines, func(n, i int) metrics.AgentConfig {
		return metrics.AgentConfig{ID: i + 1, Goroutines: n, Duration: duration}
	})
	return Experiment{
		Name:      "throughput",
		BoardSize: boardSize,
		Games:     games,
		Agents:    configs,
		Matchups: lo.Map(configs, func(c metrics.AgentConfig, _ int) []int {
			return []int{c.ID, c.ID}
		}),
	}
}

// StrengthExperiment pairs each goroutine count against the sequential
// baseline under the same time budget.
func StrengthExperiment(boardSize, games int, duration time.Duration, goroutines ...int) Experiment {
	exp := ThroughputExperiment(boardSize, games, duration, goroutines...)
	baseline := metrics.AgentConfig{ID: 0, Goroutines: 1, Duration: exp.Agents[0].Duration}
	exp.Name = "strength"
	exp.Matchups = lo.Map(exp.Agents, func(c metrics.AgentConfig, _ int) []int {
		return []int{baseline.ID, c.ID}
	})
	exp.Agents = append(exp.Agents, baseline)
	return exp
}
