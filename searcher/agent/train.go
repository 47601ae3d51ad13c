package agent

import (
	"context"
	"math"
	"sync"

	"connect6/game"
	"connect6/searcher"

	"golang.org/x/exp/rand"
)

type trainingAgent struct {
	mcts        *searcher.MCTS
	temperature float64
	mu          sync.Mutex
	rng         *rand.Rand
}

// NewTrainingAgent returns a new agent for self-play during training. Moves
// are sampled from the visit counts raised to 1/temperature; a temperature
// of zero plays the search's choice.
func NewTrainingAgent(mcts *searcher.MCTS, temperature float64, seed uint64) Policy {
	return &trainingAgent{
		mcts:        mcts,
		temperature: math.Max(temperature, 0),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (a *trainingAgent) Decide(ctx context.Context, b *game.Board) (Decision, error) {
	result, err := decide(ctx, a.mcts, b)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{Move: result.Move, Search: &result}
	if a.temperature == 0 {
		return decision, nil
	}
	for _, c := range result.Children {
		if c.Proven {
			return decision, nil // Never sample away an immediate win
		}
	}

	moves, probs := adjustTemperature(result.Children, a.temperature)
	if len(moves) == 0 {
		return decision, nil
	}
	a.mu.Lock()
	sampled := a.rng.Float64()
	a.mu.Unlock()
	decision.Move = sample(moves, probs, sampled)
	return decision, nil
}

// adjustTemperature turns visit counts into move probabilities. Unvisited
// children are left out.
func adjustTemperature(children []searcher.ChildStats, temperature float64) ([]game.Pos, []float64) {
	// Compute temperature-adjusted move probabilities
	exponent := 1.0 / temperature
	sum := 0.0
	var moves []game.Pos
	var probs []float64
	for _, c := range children {
		if c.Visits == 0 {
			continue
		}
		prob := math.Pow(float64(c.Visits), exponent)
		sum += prob
		moves = append(moves, c.Move)
		probs = append(probs, prob)
	}
	// Normalize
	for i := range probs {
		probs[i] /= sum
	}
	return moves, probs
}

func sample(moves []game.Pos, probs []float64, sampled float64) game.Pos {
	cumulative := 0.0
	for i, prob := range probs {
		cumulative += prob
		if sampled < cumulative {
			return moves[i]
		}
	}
	return moves[len(moves)-1] // Fallback in case of rounding errors
}
