package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connect6/experiments/metrics"
	"connect6/game"

	"github.com/cespare/xxhash/v2"
)

const MaxMoves = 10000

var ErrIllegalMove = errors.New("policy returned an illegal move")

type Engine interface {
	// Run plays a game till there's a winner, the board is full or a max
	// number of moves is reached
	Run(ctx context.Context) (GameResult, error)
}

// Turn records one placed stone and the board right after it.
type Turn struct {
	Step   int
	Player game.Player
	Pos    game.Pos
	Grid   game.Grid
}

type GameResult struct {
	ID        string
	Status    game.Status // Continue when stopped at the move limit
	Winner    game.Player
	Path      game.Path // Winning run
	Turns     []Turn
	StartTime time.Time
	EndTime   time.Time
	Metrics   []metrics.MoveMetric
}

func (r GameResult) Moves() int {
	return len(r.Turns)
}

func (r GameResult) GameMetric() metrics.GameMetric {
	return metrics.GameMetric{
		ID:         r.ID,
		Winner:     r.Winner.String(),
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Duration:   r.EndTime.Sub(r.StartTime),
		TotalMoves: r.Moves(),
	}
}

// GameID derives a stable id from the board size and the move sequence, so
// identical games share an id.
func GameID(size int, history []game.Pos) string {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(size)})
	for _, p := range history {
		_, _ = d.Write([]byte{byte(p.Row), byte(p.Col)})
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
