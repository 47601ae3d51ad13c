package evaluator

import (
	"context"
	"sync"

	"connect6/game"

	"golang.org/x/exp/rand"
	"lukechampine.com/frand"
)

type RolloutOption func(r *Rollout)

// Rollout estimates a position by playing random games to the end.
type Rollout struct {
	playouts int
	cutoff   int
	mu       sync.Mutex
	rng      *rand.Rand
}

// WithRolloutSeed makes playouts reproducible. Seeded rollouts share one
// generator behind a mutex; unseeded ones draw from frand without locking.
func WithRolloutSeed(seed uint64) RolloutOption {
	return func(r *Rollout) {
		r.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRolloutCutoff stops a playout after the given number of stones and
// scores it as a draw.
func WithRolloutCutoff(stones int) RolloutOption {
	return func(r *Rollout) {
		if stones > 0 {
			r.cutoff = stones
		}
	}
}

func NewRollout(playouts int, options ...RolloutOption) *Rollout {
	r := &Rollout{playouts: max(playouts, 1)}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *Rollout) intn(n int) int {
	if r.rng == nil {
		return frand.Intn(n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *Rollout) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	moves := b.LegalMoves()
	mover := b.Turn()
	total := 0.0
	for i := 0; i < r.playouts; i++ {
		if err := ctx.Err(); err != nil {
			return Evaluation{}, err
		}
		total += r.playout(b, moves, mover)
	}
	return Evaluation{Value: total / float64(r.playouts), Priors: uniform(moves)}, nil
}

func (r *Rollout) playout(b *game.Board, moves []game.Pos, mover game.Player) float64 {
	scratch := b.Clone()
	free := append([]game.Pos(nil), moves...)
	for depth := 0; len(free) > 0 && !scratch.Over(); depth++ {
		if r.cutoff > 0 && depth >= r.cutoff {
			return 0
		}
		i := r.intn(len(free))
		if _, err := scratch.Play(free[i]); err != nil {
			panic(err) // free only holds empty cells
		}
		free[i] = free[len(free)-1]
		free = free[:len(free)-1]
	}
	return outcomeFor(scratch, mover)
}
