package game

import "fmt"

// Grid is the flat serialization of a board: one player marker per cell in
// row-major order plus the number of stones placed.
type Grid struct {
	Size      int    `json:"size"`
	Cells     []int8 `json:"cells"`
	MoveCount int    `json:"move_count"`
}

func (b *Board) Encode() Grid {
	cells := make([]int8, len(b.cells))
	for i, cell := range b.cells {
		cells[i] = int8(cell)
	}
	return Grid{Size: b.size, Cells: cells, MoveCount: len(b.history)}
}

// DecodeGrid rebuilds a board. With a history the stones are replayed in
// order and checked against the grid; without one, each colour's stones are
// replayed in row-major order following the turn structure, holding back a
// stone of a finished line so that it completes on the last move.
func DecodeGrid(g Grid, history []Pos) (*Board, error) {
	b, err := NewBoard(g.Size)
	if err != nil {
		return nil, err
	}
	if len(g.Cells) != g.Size*g.Size {
		return nil, fmt.Errorf("%w: %d cells for size %d", ErrCodec, len(g.Cells), g.Size)
	}
	if history == nil {
		if history, err = replayOrder(g); err != nil {
			return nil, err
		}
	}
	if len(history) != g.MoveCount {
		return nil, fmt.Errorf("%w: history has %d moves, grid has %d", ErrCodec, len(history), g.MoveCount)
	}
	for _, p := range history {
		if _, err := b.Play(p); err != nil {
			return nil, fmt.Errorf("%w: replaying %s: %w", ErrCodec, p, err)
		}
	}
	for i, cell := range g.Cells {
		if Player(cell) != b.cells[i] {
			return nil, fmt.Errorf("%w: cell %s does not match history", ErrCodec, PosAt(g.Size, i))
		}
	}
	return b, nil
}

func replayOrder(g Grid) ([]Pos, error) {
	stones := map[Player][]Pos{}
	for i, cell := range g.Cells {
		p := Player(cell)
		switch p {
		case Black, White:
			stones[p] = append(stones[p], PosAt(g.Size, i))
		case None:
		default:
			return nil, fmt.Errorf("%w: marker %d at %s", ErrCodec, cell, PosAt(g.Size, i))
		}
	}
	if len(stones[Black])+len(stones[White]) != g.MoveCount {
		return nil, fmt.Errorf("%w: %d stones on the grid, move count %d", ErrCodec, len(stones[Black])+len(stones[White]), g.MoveCount)
	}
	for _, player := range []Player{Black, White} {
		if err := holdBackWinner(g, stones[player], player); err != nil {
			return nil, err
		}
	}
	history := make([]Pos, 0, g.MoveCount)
	for n := range g.MoveCount {
		player := TurnAt(n)
		if len(stones[player]) == 0 {
			return nil, fmt.Errorf("%w: stone counts do not fit the turn structure", ErrCodec)
		}
		history = append(history, stones[player][0])
		stones[player] = stones[player][1:]
	}
	return history, nil
}

// holdBackWinner moves to the end of stones a stone whose removal leaves
// player without six in a row. stones is reordered in place.
func holdBackWinner(g Grid, stones []Pos, player Player) error {
	if !hasSix(g, player, -1) {
		return nil
	}
	for i, p := range stones {
		if hasSix(g, player, p.Index(g.Size)) {
			continue
		}
		copy(stones[i:], stones[i+1:])
		stones[len(stones)-1] = p
		return nil
	}
	return fmt.Errorf("%w: %s has more than one finished line", ErrCodec, player)
}

// hasSix reports whether player owns six in a row on the grid, treating the
// cell at skip as empty.
func hasSix(g Grid, player Player, skip int) bool {
	owns := func(p Pos) bool {
		i := p.Index(g.Size)
		return p.In(g.Size) && i != skip && Player(g.Cells[i]) == player
	}
	for i := range g.Cells {
		start := PosAt(g.Size, i)
		if !owns(start) {
			continue
		}
		for _, d := range directions {
			if owns(start.add(d, -1)) {
				continue // not the start of the run
			}
			run := 1
			for owns(start.add(d, run)) {
				run++
			}
			if run >= WinLength {
				return true
			}
		}
	}
	return false
}
