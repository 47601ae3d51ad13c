// Package evaluator defines the position evaluation contract consumed by the
// searcher, together with the evaluators shipped with the engine.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"connect6/game"
)

var (
	ErrContract = errors.New("evaluator contract violation")
	ErrModel    = errors.New("model inference failed")
)

// Evaluation pairs a value estimate in [-1, 1], from the perspective of the
// player to move, with prior weights over the legal moves.
type Evaluation struct {
	Value  float64
	Priors map[game.Pos]float64
}

// Evaluator estimates positions. Implementations must be safe for concurrent
// use and must not modify the board.
type Evaluator interface {
	Evaluate(ctx context.Context, b *game.Board) (Evaluation, error)
}

// Func adapts a plain function to the Evaluator interface.
type Func func(ctx context.Context, b *game.Board) (Evaluation, error)

func (f Func) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	return f(ctx, b)
}

// Validate checks an evaluation against the board it was computed for.
func Validate(b *game.Board, ev Evaluation) error {
	if math.IsNaN(ev.Value) || ev.Value < -1 || ev.Value > 1 {
		return fmt.Errorf("%w: value %v outside [-1, 1]", ErrContract, ev.Value)
	}
	legal := 0
	for p, prior := range ev.Priors {
		if !b.IsLegal(p) {
			return fmt.Errorf("%w: prior for illegal move %s", ErrContract, p)
		}
		if math.IsNaN(prior) || math.IsInf(prior, 0) || prior < 0 {
			return fmt.Errorf("%w: prior %v for move %s", ErrContract, prior, p)
		}
		legal++
	}
	if expected := b.Size()*b.Size() - b.MoveCount(); legal != expected {
		return fmt.Errorf("%w: %d priors for %d legal moves", ErrContract, legal, expected)
	}
	return nil
}

// Normalize scales priors to sum to one. All-zero priors become uniform.
func Normalize(priors map[game.Pos]float64) map[game.Pos]float64 {
	sum := 0.0
	for _, prior := range priors {
		sum += prior
	}
	normalized := make(map[game.Pos]float64, len(priors))
	for p, prior := range priors {
		if sum > 0 {
			normalized[p] = prior / sum
		} else {
			normalized[p] = 1 / float64(len(priors))
		}
	}
	return normalized
}

func uniform(moves []game.Pos) map[game.Pos]float64 {
	priors := make(map[game.Pos]float64, len(moves))
	for _, p := range moves {
		priors[p] = 1 / float64(len(moves))
	}
	return priors
}

// outcomeFor scores a finished board for player: 1 for a win, -1 for a loss,
// 0 for a draw or an unfinished game.
func outcomeFor(b *game.Board, player game.Player) float64 {
	switch b.Winner() {
	case game.None:
		return 0
	case player:
		return 1
	default:
		return -1
	}
}
