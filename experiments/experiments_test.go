package experiments

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"connect6/experiments/metrics"

	"github.com/stretchr/testify/require"
)

const smallExperiment = `
name: small
boardSize: 6
games: 2
workers: 2
agents:
  - id: 1
    goroutines: 2
    episodes: 10
    evaluator: uniform
  - id: 2
    goroutines: 1
    duration: 5ms
    exploration: 1.5
matchups:
  - [1, 2]
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExperiment(t *testing.T) {
	t.Run("decodes matchups and durations", func(t *testing.T) {
		exp, err := LoadExperiment(writeFile(t, smallExperiment))
		require.NoError(t, err)
		require.Equal(t, "small", exp.Name)
		require.Equal(t, 6, exp.BoardSize)
		require.Len(t, exp.Agents, 2)
		require.Equal(t, 5*time.Millisecond, exp.Agents[1].Duration)
		require.Equal(t, 1.5, exp.Agents[1].Exploration)
		require.Equal(t, [][]int{{1, 2}}, exp.Matchups)
	})

	t.Run("fills defaults", func(t *testing.T) {
		exp, err := LoadExperiment(writeFile(t, "agents: [{id: 1, episodes: 5}]\nmatchups: [[1, 1]]\n"))
		require.NoError(t, err)
		require.Equal(t, 19, exp.BoardSize)
		require.Equal(t, NumGames, exp.Games)
	})

	invalid := map[string]string{
		"unknown agent":     "agents: [{id: 1, episodes: 5}]\nmatchups: [[1, 3]]\n",
		"duplicate ids":     "agents: [{id: 1, episodes: 5}, {id: 1, episodes: 6}]\nmatchups: [[1, 1]]\n",
		"no budget":         "agents: [{id: 1}]\nmatchups: [[1, 1]]\n",
		"unknown evaluator": "agents: [{id: 1, episodes: 5, evaluator: oracle}]\nmatchups: [[1, 1]]\n",
		"three agents":      "agents: [{id: 1, episodes: 5}]\nmatchups: [[1, 1, 1]]\n",
		"no matchups":       "agents: [{id: 1, episodes: 5}]\n",
		"bad board size":    "boardSize: 40\nagents: [{id: 1, episodes: 5}]\nmatchups: [[1, 1]]\n",
		"malformed yaml":    "agents: [",
	}
	for name, content := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := LoadExperiment(writeFile(t, content))
			require.ErrorIs(t, err, ErrInvalidExperiment)
		})
	}
}

func TestRun(t *testing.T) {
	exp, err := LoadExperiment(writeFile(t, smallExperiment))
	require.NoError(t, err)
	writer, err := metrics.NewWriter(t.TempDir(), exp.Name)
	require.NoError(t, err)

	summaries, err := Run(context.Background(), exp, writer)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	s := summaries[0]
	require.Equal(t, 1, s.Agent1)
	require.Equal(t, 2, s.Agent2)
	require.Equal(t, exp.Games, s.Wins+s.Losses+s.Draws+s.Unfinished)

	for _, file := range []string{"agent_configs.csv", "game_records.csv", "move_records.csv", "move_records.parquet"} {
		_, err := os.Stat(filepath.Join(writer.Dir(), file))
		require.NoError(t, err, "Should write %s", file)
	}
}

func TestPresets(t *testing.T) {
	t.Run("throughput mirrors each config", func(t *testing.T) {
		exp := ThroughputExperiment(9, 1, 0, 1, 4)
		require.Len(t, exp.Agents, 2)
		require.Equal(t, TimeBudget, exp.Agents[0].Duration)
		require.Equal(t, 4, exp.Agents[1].Goroutines)
		require.Equal(t, [][]int{{1, 1}, {2, 2}}, exp.Matchups)
		require.NoError(t, exp.validate())
	})

	t.Run("strength pairs against the baseline", func(t *testing.T) {
		exp := StrengthExperiment(9, 1, time.Millisecond, 2, 8)
		require.Len(t, exp.Agents, 3)
		require.Equal(t, [][]int{{0, 1}, {0, 2}}, exp.Matchups)
		require.NoError(t, exp.validate())
	})
}
