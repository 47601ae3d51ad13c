package evaluator

import (
	"context"

	"connect6/game"
)

// Uniform values every position as even and spreads priors evenly.
type Uniform struct{}

func (Uniform) Evaluate(_ context.Context, b *game.Board) (Evaluation, error) {
	return Evaluation{Value: 0, Priors: uniform(b.LegalMoves())}, nil
}
