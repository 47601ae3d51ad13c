package agent

import (
	"context"
	"sync"

	"connect6/game"

	"golang.org/x/exp/rand"
)

type randomAgent struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAgent returns an agent playing uniformly random legal moves.
func NewRandomAgent(seed uint64) Policy {
	return &randomAgent{rng: rand.New(rand.NewSource(seed))}
}

func (a *randomAgent) Decide(_ context.Context, b *game.Board) (Decision, error) {
	moves := b.LegalMoves()
	if len(moves) == 0 {
		return Decision{}, game.ErrGameOver
	}
	a.mu.Lock()
	i := a.rng.Intn(len(moves))
	a.mu.Unlock()
	return Decision{Move: moves[i]}, nil
}
