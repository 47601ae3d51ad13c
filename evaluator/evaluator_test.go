package evaluator

import (
	"context"
	"errors"
	"math"
	"testing"

	"connect6/game"

	"github.com/stretchr/testify/require"
)

func newBoard(t *testing.T, size int, turns ...[]game.Pos) *game.Board {
	t.Helper()
	b, err := game.NewBoard(size)
	require.NoError(t, err)
	for _, stones := range turns {
		_, err := b.PlayTurn(stones...)
		require.NoError(t, err)
	}
	return b
}

// fiveInRow leaves black to move with five stones on row 3, columns 2-6.
func fiveInRow(t *testing.T) *game.Board {
	return newBoard(t, game.DefaultSize,
		[]game.Pos{{Row: 3, Col: 2}},
		[]game.Pos{{Row: 12, Col: 0}, {Row: 12, Col: 2}},
		[]game.Pos{{Row: 3, Col: 3}, {Row: 3, Col: 4}},
		[]game.Pos{{Row: 12, Col: 4}, {Row: 12, Col: 6}},
		[]game.Pos{{Row: 3, Col: 5}, {Row: 3, Col: 6}},
		[]game.Pos{{Row: 14, Col: 4}, {Row: 14, Col: 6}},
	)
}

func TestValidate(t *testing.T) {
	b := newBoard(t, game.MinSize, []game.Pos{{Row: 0, Col: 0}})
	ev, err := Uniform{}.Evaluate(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, Validate(b, ev))

	t.Run("missing legal move", func(t *testing.T) {
		missing := Evaluation{Priors: map[game.Pos]float64{}}
		for p, prior := range ev.Priors {
			missing.Priors[p] = prior
		}
		delete(missing.Priors, game.Pos{Row: 0, Col: 1})
		require.ErrorIs(t, Validate(b, missing), ErrContract)
	})

	t.Run("prior on occupied cell", func(t *testing.T) {
		occupied := Evaluation{Priors: map[game.Pos]float64{{Row: 0, Col: 0}: 1}}
		for p, prior := range ev.Priors {
			occupied.Priors[p] = prior
		}
		require.ErrorIs(t, Validate(b, occupied), ErrContract)
	})

	t.Run("negative priors", func(t *testing.T) {
		negative := Evaluation{Priors: map[game.Pos]float64{}}
		for p := range ev.Priors {
			negative.Priors[p] = -1
		}
		require.ErrorIs(t, Validate(b, negative), ErrContract)
	})

	t.Run("NaN value", func(t *testing.T) {
		nan := Evaluation{Value: math.NaN(), Priors: ev.Priors}
		require.ErrorIs(t, Validate(b, nan), ErrContract)
	})
}

func TestNormalize(t *testing.T) {
	a, b := game.Pos{Row: 0, Col: 0}, game.Pos{Row: 0, Col: 1}

	got := Normalize(map[game.Pos]float64{a: 3, b: 1})
	require.Equal(t, 0.75, got[a])
	require.Equal(t, 0.25, got[b])

	got = Normalize(map[game.Pos]float64{a: 0, b: 0})
	require.Equal(t, 0.5, got[a], "Zero weights should become uniform")
}

func TestHeuristic(t *testing.T) {
	ctx := context.Background()

	t.Run("completing cell gets the top prior", func(t *testing.T) {
		b := fiveInRow(t)
		ev, err := NewHeuristic().Evaluate(ctx, b)
		require.NoError(t, err)
		require.NoError(t, Validate(b, ev))
		require.Equal(t, 1.0, ev.Value)

		best, bestPrior := game.Pos{}, -1.0
		for _, p := range b.LegalMoves() {
			if ev.Priors[p] > bestPrior {
				best, bestPrior = p, ev.Priors[p]
			}
		}
		require.Contains(t, []game.Pos{{Row: 3, Col: 1}, {Row: 3, Col: 7}}, best)
	})

	t.Run("central stones are worth more than edge stones", func(t *testing.T) {
		value := func(p game.Pos) float64 {
			b := newBoard(t, 9, []game.Pos{p})
			ev, err := NewHeuristic().Evaluate(ctx, b)
			require.NoError(t, err)
			return ev.Value // White's view of Black's opening stone
		}
		centre := value(game.Pos{Row: 4, Col: 4})
		edge := value(game.Pos{Row: 0, Col: 3})
		corner := value(game.Pos{Row: 0, Col: 0})

		require.Less(t, centre, edge, "A central stone should be worse for the opponent")
		require.Less(t, edge, corner)
	})

	t.Run("blocked windows do not count", func(t *testing.T) {
		b := newBoard(t, 9)
		require.Zero(t, windows(b, game.Black))

		b = newBoard(t, 9, []game.Pos{{Row: 0, Col: 0}})
		require.Equal(t, 3.0, windows(b, game.Black), "A corner stone lies in one window per open direction")
		require.Zero(t, windows(b, game.White))

		b = newBoard(t, 9, []game.Pos{{Row: 0, Col: 0}}, []game.Pos{{Row: 0, Col: 1}, {Row: 1, Col: 0}})
		require.Equal(t, 1.0, windows(b, game.Black), "Only the diagonal stays open")
	})
}

func TestRollout(t *testing.T) {
	t.Run("seeded rollouts are reproducible", func(t *testing.T) {
		b := newBoard(t, game.MinSize, []game.Pos{{Row: 2, Col: 2}})

		first, err := NewRollout(20, WithRolloutSeed(7)).Evaluate(context.Background(), b)
		require.NoError(t, err)
		second, err := NewRollout(20, WithRolloutSeed(7)).Evaluate(context.Background(), b)
		require.NoError(t, err)

		require.NoError(t, Validate(b, first))
		require.Equal(t, first.Value, second.Value)
	})

	t.Run("cutoff scores unfinished playouts as draws", func(t *testing.T) {
		b := newBoard(t, game.DefaultSize, []game.Pos{{Row: 9, Col: 9}})

		ev, err := NewRollout(5, WithRolloutCutoff(1)).Evaluate(context.Background(), b)

		require.NoError(t, err)
		require.Equal(t, 0.0, ev.Value)
	})

	t.Run("cancelled context stops playouts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewRollout(5).Evaluate(ctx, newBoard(t, game.MinSize))

		require.ErrorIs(t, err, context.Canceled)
	})
}

type countingEvaluator struct {
	calls int
}

func (c *countingEvaluator) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	c.calls++
	return Uniform{}.Evaluate(ctx, b)
}

func TestCache(t *testing.T) {
	t.Run("hits skip the inner evaluator", func(t *testing.T) {
		inner := &countingEvaluator{}
		cache := NewCache(inner, 16)
		b := newBoard(t, game.MinSize, []game.Pos{{Row: 1, Col: 1}})

		_, err := cache.Evaluate(context.Background(), b)
		require.NoError(t, err)
		_, err = cache.Evaluate(context.Background(), b.Clone())
		require.NoError(t, err)

		require.Equal(t, 1, inner.calls)
		hits, misses := cache.Stats()
		require.Equal(t, int64(1), hits)
		require.Equal(t, int64(1), misses)
	})

	t.Run("full cache evicts", func(t *testing.T) {
		cache := NewCache(&countingEvaluator{}, 2)
		for col := 0; col < 4; col++ {
			b := newBoard(t, game.MinSize, []game.Pos{{Row: 0, Col: col}})
			_, err := cache.Evaluate(context.Background(), b)
			require.NoError(t, err)
		}
		require.LessOrEqual(t, cache.Len(), 2)
	})
}

func TestSymmetry(t *testing.T) {
	t.Run("invert undoes apply", func(t *testing.T) {
		size := game.MinSize
		for _, sym := range Symmetries {
			seen := map[game.Pos]bool{}
			for i := 0; i < size*size; i++ {
				p := game.PosAt(size, i)
				q := sym.Apply(p, size)
				require.True(t, q.In(size))
				require.Equal(t, p, sym.Invert(q, size))
				seen[q] = true
			}
			require.Len(t, seen, size*size, "Should permute the cells")
		}
	})

	t.Run("eight distinct images of an asymmetric stone", func(t *testing.T) {
		images := map[game.Pos]bool{}
		for _, sym := range Symmetries {
			images[sym.Apply(game.Pos{Row: 0, Col: 1}, game.MinSize)] = true
		}
		require.Len(t, images, 8)
	})

	t.Run("averaging an equivariant evaluator changes nothing", func(t *testing.T) {
		b := fiveInRow(t)
		plain, err := NewHeuristic().Evaluate(context.Background(), b)
		require.NoError(t, err)

		averaged, err := Symmetric{Inner: NewHeuristic()}.Evaluate(context.Background(), b)

		require.NoError(t, err)
		require.NoError(t, Validate(b, averaged))
		require.InDelta(t, plain.Value, averaged.Value, 1e-9)
		for p, prior := range plain.Priors {
			require.InDelta(t, prior, averaged.Priors[p], 1e-6*math.Max(1, prior))
		}
	})
}

func TestONNXEncoding(t *testing.T) {
	t.Run("planes follow the player to move", func(t *testing.T) {
		b := newBoard(t, game.MinSize, []game.Pos{{Row: 0, Col: 0}})
		area := game.MinSize * game.MinSize

		input := encodeInput(b)

		require.Len(t, input, inputPlanes*area)
		require.Equal(t, float32(0), input[0], "White to move, the black stone is the opponent's")
		require.Equal(t, float32(1), input[area], "Opponent plane")
		require.Equal(t, float32(1), input[2*area], "Two stones to play")
	})

	t.Run("softmax masks occupied cells", func(t *testing.T) {
		b := newBoard(t, game.MinSize, []game.Pos{{Row: 0, Col: 0}})
		logits := make([]float32, game.MinSize*game.MinSize)
		logits[0] = 100
		logits[1] = 1

		priors := maskedSoftmax(b, logits)

		require.NoError(t, Validate(b, Evaluation{Priors: priors}))
		require.NotContains(t, priors, game.Pos{Row: 0, Col: 0})
		sum := 0.0
		for _, prior := range priors {
			sum += prior
		}
		require.InDelta(t, 1.0, sum, 1e-9)
		require.Greater(t, priors[game.Pos{Row: 0, Col: 1}], priors[game.Pos{Row: 0, Col: 2}])
	})
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "heuristic", "Uniform", "rollout", " symmetric "} {
		ev, err := New(name)
		require.NoError(t, err, name)
		require.NotNil(t, ev)
	}

	_, err := New("alphazero")
	require.True(t, errors.Is(err, ErrUnknownEvaluator))
}
