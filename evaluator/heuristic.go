package evaluator

import (
	"context"
	"math"

	"connect6/game"
)

// Heuristic scores cells by the runs a stone there would extend for either
// side. Attack weighs slightly more than defence; the centre breaks ties on
// open ground. The value adds the balance of open windows, the six-cell
// segments only one side still occupies, so central and open-ended stones
// count for more than stones against the edge.
type Heuristic struct {
	Attack  float64
	Defence float64
}

func NewHeuristic() Heuristic {
	return Heuristic{Attack: 1.0, Defence: 0.9}
}

func (h Heuristic) Evaluate(_ context.Context, b *game.Board) (Evaluation, error) {
	moves := b.LegalMoves()
	mover := b.Turn()
	priors := make(map[game.Pos]float64, len(moves))
	bestOwn, bestOpp := 0, 0
	mid := float64(b.Size()-1) / 2

	for _, p := range moves {
		own := b.Reach(p, mover)
		opp := b.Reach(p, mover.Opponent())
		bestOwn = max(bestOwn, own)
		bestOpp = max(bestOpp, opp)

		dist := math.Max(math.Abs(float64(p.Row)-mid), math.Abs(float64(p.Col)-mid))
		centre := 1 - dist/(mid+1)
		priors[p] = h.Attack*threat(own) + h.Defence*threat(opp) + centre
	}

	own, opp := windows(b, mover), windows(b, mover.Opponent())
	balance := (own - opp) / (own + opp + 1)
	value := math.Tanh(0.5*float64(bestOwn-bestOpp) + balance)
	switch {
	case bestOwn >= game.WinLength:
		value = 1
	case bestOwn == game.WinLength-1 && b.Remaining() == 2:
		// The second stone of the turn usually completes the line.
		value = 0.9
	}
	return Evaluation{Value: value, Priors: priors}, nil
}

func threat(run int) float64 {
	if run >= game.WinLength {
		return 1e6
	}
	return math.Pow(4, float64(run-1)) - 1
}

var windowDirections = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// windows sums 4^(k-1) over every six-cell segment holding k stones of
// player and none of the opponent.
func windows(b *game.Board, player game.Player) float64 {
	size := b.Size()
	total := 0.0
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			for _, d := range windowDirections {
				endRow, endCol := row+d[0]*(game.WinLength-1), col+d[1]*(game.WinLength-1)
				if endRow >= size || endCol < 0 || endCol >= size {
					continue
				}
				stones := 0
				for k := 0; k < game.WinLength; k++ {
					switch b.Get(game.Pos{Row: row + d[0]*k, Col: col + d[1]*k}) {
					case player:
						stones++
					case game.None:
					default:
						stones = -1
					}
					if stones < 0 {
						break
					}
				}
				if stones > 0 {
					total += math.Pow(4, float64(stones-1))
				}
			}
		}
	}
	return total
}
