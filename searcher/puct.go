package searcher

import (
	"math"

	"connect6/game"
)

type puct struct {
	exploration float64
}

func newPUCT(c float64, N float64) *puct {
	if N < 0 {
		panic("N cannot be negative")
	}
	return &puct{exploration: c * math.Sqrt(N)}
}

// evaluate scores a child with mean value q, prior p and n visits.
func (u puct) evaluate(q, p, n float64) float64 {
	// PUCT = Q + c * P * sqrt(N) / (1 + n)
	return q + u.exploration*p/(1+n)
}

// perspective converts a value held by one player into the other's view.
// The sign only flips when the player actually changes, so both stones of
// a turn share a perspective.
func perspective(value float64, from, to game.Player) float64 {
	if from == to {
		return value
	}
	return -value
}
