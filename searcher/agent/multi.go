package agent

import (
	"context"

	"connect6/game"
)

type multiAgent struct {
	black, white Policy
}

// NewMultiAgent dispatches each decision to the policy of the player to move.
func NewMultiAgent(black, white Policy) Policy {
	return multiAgent{black: black, white: white}
}

func (a multiAgent) Decide(ctx context.Context, b *game.Board) (Decision, error) {
	if b.Turn() == game.Black {
		return a.black.Decide(ctx, b)
	}
	return a.white.Decide(ctx, b)
}
