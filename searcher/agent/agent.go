package agent

import (
	"context"

	"connect6/game"
	"connect6/searcher"
)

// Decision is a policy's choice for the next stone. Search is set when the
// move came out of a tree search.
type Decision struct {
	Move   game.Pos
	Search *searcher.Result
}

type Policy interface {
	// Decide returns the next stone for the player to move on b.
	Decide(ctx context.Context, b *game.Board) (Decision, error)
}

// decide searches b, refusing finished boards.
func decide(ctx context.Context, mcts *searcher.MCTS, b *game.Board) (searcher.Result, error) {
	if b.Over() {
		return searcher.Result{}, game.ErrGameOver
	}
	return mcts.Simulate(ctx, b)
}
