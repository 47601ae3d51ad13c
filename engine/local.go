package engine

import (
	"context"
	"fmt"
	"time"

	"connect6/experiments/metrics"
	"connect6/game"
	"connect6/searcher/agent"

	"github.com/rs/zerolog/log"
)

type Option func(e *Local)

// WithMaxMoves stops a game after the given number of stones.
func WithMaxMoves(moves int) Option {
	return func(e *Local) {
		if moves > 0 {
			e.maxMoves = moves
		}
	}
}

// WithOpening places the given stones before the policies take over.
func WithOpening(stones ...game.Pos) Option {
	return func(e *Local) {
		e.opening = stones
	}
}

// Local plays a game in process between two policies.
type Local struct {
	size     int
	black    agent.Policy
	white    agent.Policy
	maxMoves int
	opening  []game.Pos
}

func LocalEngine(black, white agent.Policy, size int, options ...Option) (*Local, error) {
	if black == nil || white == nil {
		panic("need a policy for both players")
	}
	if size < game.MinSize || size > game.MaxSize {
		return nil, fmt.Errorf("%w: %d", game.ErrInvalidSize, size)
	}
	e := &Local{size: size, black: black, white: white, maxMoves: MaxMoves}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Run executes the entire game loop until the game ends.
func (e *Local) Run(ctx context.Context) (GameResult, error) {
	result := GameResult{StartTime: time.Now()}
	b, err := game.NewBoard(e.size)
	if err != nil {
		return result, err
	}

	step := 1
	record := func(player game.Player, pos game.Pos) {
		result.Turns = append(result.Turns, Turn{Step: step, Player: player, Pos: pos, Grid: b.Encode()})
		step++
	}
	for _, pos := range e.opening {
		player := b.Turn()
		if _, err := b.Play(pos); err != nil {
			return result, fmt.Errorf("opening stone %s: %w", pos, err)
		}
		record(player, pos)
	}

	log.Debug().Msgf("%s is starting", b.Turn())

	for !b.Over() && b.MoveCount() < e.maxMoves {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		player := b.Turn()
		policy := e.black
		if player == game.White {
			policy = e.white
		}

		decision, err := policy.Decide(ctx, b)
		if err != nil {
			return result, fmt.Errorf("%s at step %d: %w", player, step, err)
		}
		if decision.Search != nil {
			result.Metrics = append(result.Metrics, metrics.MoveMetric{
				Step:         step,
				Player:       int(player),
				SearchMetric: decision.Search.Metrics,
			})
		}
		if _, err := b.Play(decision.Move); err != nil {
			return result, fmt.Errorf("%w: %s played %s at step %d: %w", ErrIllegalMove, player, decision.Move, step, err)
		}
		record(player, decision.Move)
	}

	outcome := b.Outcome()
	result.Status = outcome.Status
	result.Winner = outcome.Winner
	result.Path = outcome.Path
	result.EndTime = time.Now()
	result.ID = GameID(e.size, b.History())

	if outcome.Status == game.Continue {
		log.Debug().Msgf("stopped after %d moves (no winner yet)", b.MoveCount())
	} else {
		log.Debug().Str("game", result.ID).Str("status", outcome.Status.String()).
			Str("winner", outcome.Winner.String()).Int("moves", b.MoveCount()).Msg("game-over")
	}
	return result, nil
}
