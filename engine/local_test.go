package engine

import (
	"context"
	"errors"
	"testing"

	"connect6/evaluator"
	"connect6/game"
	"connect6/searcher"
	"connect6/searcher/agent"

	"github.com/stretchr/testify/require"
)

// scriptedPolicy plays the stone of the script at the board's move count.
type scriptedPolicy struct {
	script []game.Pos
}

func (s scriptedPolicy) Decide(_ context.Context, b *game.Board) (agent.Decision, error) {
	if b.MoveCount() >= len(s.script) {
		return agent.Decision{}, errors.New("script exhausted")
	}
	return agent.Decision{Move: s.script[b.MoveCount()]}, nil
}

// blackWins has black complete row 0 with its twelfth stone overall.
var blackWins = []game.Pos{
	{Row: 0, Col: 0},
	{Row: 5, Col: 0}, {Row: 5, Col: 1},
	{Row: 0, Col: 1}, {Row: 0, Col: 2},
	{Row: 5, Col: 2}, {Row: 5, Col: 3},
	{Row: 0, Col: 3}, {Row: 0, Col: 4},
	{Row: 5, Col: 4}, {Row: 7, Col: 7},
	{Row: 0, Col: 5},
}

func TestLocalEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an invalid size", func(t *testing.T) {
		_, err := LocalEngine(agent.NewRandomAgent(1), agent.NewRandomAgent(2), 3)
		require.ErrorIs(t, err, game.ErrInvalidSize)
	})

	t.Run("panics without policies", func(t *testing.T) {
		require.Panics(t, func() {
			_, _ = LocalEngine(nil, agent.NewRandomAgent(2), 9)
		})
	})

	t.Run("records a won game", func(t *testing.T) {
		script := scriptedPolicy{script: blackWins}
		e, err := LocalEngine(script, script, 9)
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, game.Win, result.Status)
		require.Equal(t, game.Black, result.Winner)
		require.Equal(t, len(blackWins), result.Moves())
		require.Len(t, result.Path, 6)
		require.Equal(t, game.Pos{Row: 0, Col: 0}, result.Path[0])
		require.Equal(t, game.Pos{Row: 0, Col: 5}, result.Path[5])

		require.Equal(t, 1, result.Turns[0].Step)
		require.Equal(t, game.Black, result.Turns[0].Player)
		require.Equal(t, game.White, result.Turns[1].Player)
		require.Equal(t, game.White, result.Turns[2].Player)
		last := result.Turns[len(result.Turns)-1]
		require.Equal(t, len(blackWins), last.Grid.MoveCount)
		require.Equal(t, int8(game.Black), last.Grid.Cells[game.Pos{Row: 0, Col: 5}.Index(9)])
		require.Empty(t, result.Metrics, "Scripted moves carry no search metrics")
	})

	t.Run("identical games share an id", func(t *testing.T) {
		script := scriptedPolicy{script: blackWins}
		first, err := LocalEngine(script, script, 9)
		require.NoError(t, err)
		second, err := LocalEngine(script, script, 9)
		require.NoError(t, err)

		r1, err := first.Run(ctx)
		require.NoError(t, err)
		r2, err := second.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, r1.ID, r2.ID)
		require.Equal(t, GameID(9, blackWins), r1.ID)
		require.NotEqual(t, GameID(10, blackWins), r1.ID)
	})

	t.Run("illegal move aborts the game", func(t *testing.T) {
		script := scriptedPolicy{script: []game.Pos{{Row: 0, Col: 0}, {Row: 0, Col: 0}}}
		e, err := LocalEngine(script, script, 9)
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.ErrorIs(t, err, ErrIllegalMove)
		require.ErrorIs(t, err, game.ErrOccupied)
		require.Len(t, result.Turns, 1)
	})

	t.Run("policy failure is returned", func(t *testing.T) {
		script := scriptedPolicy{script: []game.Pos{{Row: 0, Col: 0}}}
		e, err := LocalEngine(script, script, 9)
		require.NoError(t, err)

		_, err = e.Run(ctx)
		require.ErrorContains(t, err, "script exhausted")
	})

	t.Run("stops at the move limit", func(t *testing.T) {
		e, err := LocalEngine(agent.NewRandomAgent(1), agent.NewRandomAgent(2), 9, WithMaxMoves(5))
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, game.Continue, result.Status)
		require.Equal(t, game.None, result.Winner)
		require.Equal(t, 5, result.Moves())
	})

	t.Run("random game runs to the end", func(t *testing.T) {
		e, err := LocalEngine(agent.NewRandomAgent(3), agent.NewRandomAgent(4), game.MinSize)
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.NotEqual(t, game.Continue, result.Status)
		require.LessOrEqual(t, result.Moves(), game.MinSize*game.MinSize)
	})

	t.Run("opening stones are recorded", func(t *testing.T) {
		e, err := LocalEngine(agent.NewRandomAgent(1), agent.NewRandomAgent(2), 9,
			WithOpening(game.Pos{Row: 4, Col: 4}), WithMaxMoves(3))
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, game.Pos{Row: 4, Col: 4}, result.Turns[0].Pos)
		require.Equal(t, 3, result.Moves())
	})

	t.Run("collects search metrics per decision", func(t *testing.T) {
		mcts := searcher.NewMCTS(1, searcher.WithEpisodes(20), searcher.WithEvaluator(evaluator.Uniform{}), searcher.WithMetrics())
		e, err := LocalEngine(agent.NewEvaluationAgent(mcts), agent.NewRandomAgent(1), 9, WithMaxMoves(4))
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.Len(t, result.Metrics, 2, "Black places stones one and four")
		require.Equal(t, 1, result.Metrics[0].Step)
		require.Equal(t, 4, result.Metrics[1].Step)
		require.Equal(t, int(game.Black), result.Metrics[0].Player)
		require.Equal(t, 20, result.Metrics[0].Episodes)
		require.True(t, result.Metrics[0].IsTreeReset)
	})
}

func TestRunMany(t *testing.T) {
	factory := func(i int) (agent.Policy, agent.Policy) {
		return agent.NewRandomAgent(uint64(2 * i)), agent.NewRandomAgent(uint64(2*i + 1))
	}

	t.Run("plays every game", func(t *testing.T) {
		results, err := RunMany(context.Background(), game.MinSize, 6, 3, factory)
		require.NoError(t, err)
		require.Len(t, results, 6)
		for _, r := range results {
			require.NotEmpty(t, r.ID)
			require.NotEqual(t, game.Continue, r.Status)
		}
	})

	t.Run("first failure cancels the run", func(t *testing.T) {
		failing := func(i int) (agent.Policy, agent.Policy) {
			if i == 1 {
				script := scriptedPolicy{}
				return script, script
			}
			return factory(i)
		}
		_, err := RunMany(context.Background(), game.MinSize, 4, 2, failing)
		require.ErrorContains(t, err, "script exhausted")
	})
}
