package agent

import (
	"context"

	"connect6/game"
	"connect6/searcher"
)

type evaluationAgent struct {
	mcts *searcher.MCTS
}

// NewEvaluationAgent returns a new agent for actual game play during evaluation.
func NewEvaluationAgent(mcts *searcher.MCTS) Policy {
	return evaluationAgent{mcts: mcts}
}

func (a evaluationAgent) Decide(ctx context.Context, b *game.Board) (Decision, error) {
	result, err := decide(ctx, a.mcts, b)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Move: result.Move, Search: &result}, nil
}
