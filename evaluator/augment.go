package evaluator

import (
	"context"

	"connect6/game"

	"golang.org/x/sync/errgroup"
)

// Symmetry is one of the eight rotations and reflections of a square board:
// an optional horizontal mirror followed by Rotations quarter turns clockwise.
type Symmetry struct {
	Mirror    bool
	Rotations int
}

// Symmetries lists all eight, identity first.
var Symmetries = func() []Symmetry {
	all := make([]Symmetry, 0, 8)
	for _, mirror := range []bool{false, true} {
		for rot := 0; rot < 4; rot++ {
			all = append(all, Symmetry{Mirror: mirror, Rotations: rot})
		}
	}
	return all
}()

func rotate(p game.Pos, size int) game.Pos {
	return game.Pos{Row: p.Col, Col: size - 1 - p.Row}
}

func (s Symmetry) Apply(p game.Pos, size int) game.Pos {
	if s.Mirror {
		p.Col = size - 1 - p.Col
	}
	for range s.Rotations {
		p = rotate(p, size)
	}
	return p
}

// Invert maps a transformed position back to the original board.
func (s Symmetry) Invert(p game.Pos, size int) game.Pos {
	for range (4 - s.Rotations) % 4 {
		p = rotate(p, size)
	}
	if s.Mirror {
		p.Col = size - 1 - p.Col
	}
	return p
}

// Transform replays the board's history through the symmetry.
func (s Symmetry) Transform(b *game.Board) (*game.Board, error) {
	out, err := game.NewBoard(b.Size())
	if err != nil {
		return nil, err
	}
	for _, p := range b.History() {
		if _, err := out.Play(s.Apply(p, b.Size())); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Symmetric averages an inner evaluator over all eight symmetries of the
// board. The inner calls run concurrently so batching evaluators can group them.
type Symmetric struct {
	Inner Evaluator
}

func (s Symmetric) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	results := make([]Evaluation, len(Symmetries))
	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range Symmetries {
		g.Go(func() error {
			tb, err := sym.Transform(b)
			if err != nil {
				return err
			}
			ev, err := s.Inner.Evaluate(gctx, tb)
			if err != nil {
				return err
			}
			results[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Evaluation{}, err
	}

	n := float64(len(Symmetries))
	merged := Evaluation{Priors: make(map[game.Pos]float64, len(results[0].Priors))}
	for i, sym := range Symmetries {
		merged.Value += results[i].Value / n
		for p, prior := range results[i].Priors {
			merged.Priors[sym.Invert(p, b.Size())] += prior / n
		}
	}
	return merged, nil
}
