package game

import "fmt"

type Status int8

const (
	Continue Status = iota
	Win
	Draw
)

func (s Status) String() string {
	switch s {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "continue"
	}
}

// Path is an ordered run of at least WinLength same-player stones.
type Path []Pos

// Outcome is the result of placing one stone.
type Outcome struct {
	Status Status
	Winner Player
	Path   Path
}

// Board is a Connect6 position. The zero value is not usable; create boards
// with NewBoard.
type Board struct {
	size    int
	cells   []Player
	history []Pos
	lines   lines
	winner  Player
	path    Path
	hash    StateHash
	keys    *zobrist
}

func NewBoard(size int) (*Board, error) {
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Board{
		size:  size,
		cells: make([]Player, size*size),
		lines: newLines(size),
		keys:  zobristFor(size),
	}, nil
}

func (b *Board) Clone() *Board {
	return &Board{
		size:    b.size,
		cells:   append([]Player(nil), b.cells...),
		history: append([]Pos(nil), b.history...),
		lines:   b.lines.clone(),
		winner:  b.winner,
		path:    b.path,
		hash:    b.hash,
		keys:    b.keys,
	}
}

func (b *Board) Size() int        { return b.size }
func (b *Board) MoveCount() int   { return len(b.history) }
func (b *Board) Turn() Player     { return TurnAt(len(b.history)) }
func (b *Board) Remaining() int   { return RemainingAt(len(b.history)) }
func (b *Board) Winner() Player   { return b.winner }
func (b *Board) Hash() StateHash  { return b.hash }
func (b *Board) Full() bool       { return len(b.history) == len(b.cells) }
func (b *Board) Over() bool       { return b.winner != None || b.Full() }
func (b *Board) Get(p Pos) Player { return b.cells[p.Index(b.size)] }

// History returns a copy of the placed stones in order.
func (b *Board) History() []Pos {
	return append([]Pos(nil), b.history...)
}

// Path returns the winning line, or nil while nobody has won.
func (b *Board) Path() Path {
	return b.path
}

func (b *Board) Outcome() Outcome {
	switch {
	case b.winner != None:
		return Outcome{Status: Win, Winner: b.winner, Path: b.path}
	case b.Full():
		return Outcome{Status: Draw}
	default:
		return Outcome{Status: Continue}
	}
}

func (b *Board) validate(p Pos) error {
	if b.Over() {
		return ErrGameOver
	}
	if !p.In(b.size) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	if b.cells[p.Index(b.size)] != None {
		return fmt.Errorf("%w: %s", ErrOccupied, p)
	}
	return nil
}

func (b *Board) IsLegal(p Pos) bool {
	return b.validate(p) == nil
}

// LegalMoves returns the empty cells in row-major order, or nothing once the
// game is over.
func (b *Board) LegalMoves() []Pos {
	if b.Over() {
		return nil
	}
	moves := make([]Pos, 0, len(b.cells)-len(b.history))
	for i, cell := range b.cells {
		if cell == None {
			moves = append(moves, PosAt(b.size, i))
		}
	}
	return moves
}

// Play places the next stone for the player to move and reports whether it
// completed a line. A rejected stone leaves the board unchanged.
func (b *Board) Play(p Pos) (Outcome, error) {
	if err := b.validate(p); err != nil {
		return Outcome{}, err
	}
	player := b.Turn()
	idx := p.Index(b.size)
	b.cells[idx] = player
	b.history = append(b.history, p)
	b.hash ^= b.keys.stone(idx, player)

	counts := b.lines.place(b.cells, p, player)
	for d, count := range counts {
		if count >= WinLength {
			b.winner = player
			b.path = b.lines.path(d, b.lines.block[d][idx])
			break
		}
	}
	return b.Outcome(), nil
}

// PlayTurn applies every stone of the current turn or none of them. The
// stone count must match Remaining, except that a game-ending stone must be
// the last one given.
func (b *Board) PlayTurn(stones ...Pos) (Outcome, error) {
	if b.Over() {
		return Outcome{}, ErrGameOver
	}
	if len(stones) == 0 || len(stones) > b.Remaining() {
		return Outcome{}, fmt.Errorf("%w: got %d stones, expected %d", ErrTurnStructure, len(stones), b.Remaining())
	}
	expected := b.Remaining()
	var outcome Outcome
	for i, p := range stones {
		var err error
		if outcome, err = b.Play(p); err != nil {
			b.rollback(i)
			return Outcome{}, err
		}
		if outcome.Status != Continue && i < len(stones)-1 {
			b.rollback(i + 1)
			return Outcome{}, fmt.Errorf("%w: stone %s played after the game ended", ErrTurnStructure, stones[i+1])
		}
	}
	if outcome.Status == Continue && len(stones) != expected {
		b.rollback(len(stones))
		return Outcome{}, fmt.Errorf("%w: got %d stones, expected %d", ErrTurnStructure, len(stones), expected)
	}
	return outcome, nil
}

func (b *Board) rollback(n int) {
	for range n {
		_ = b.Undo()
	}
}

// Undo removes the most recently placed stone.
func (b *Board) Undo() error {
	if len(b.history) == 0 {
		return ErrNoHistory
	}
	p := b.history[len(b.history)-1]
	idx := p.Index(b.size)
	b.lines.remove(p)
	b.hash ^= b.keys.stone(idx, b.cells[idx])
	b.cells[idx] = None
	b.history = b.history[:len(b.history)-1]
	b.winner = None
	b.path = nil
	return nil
}

// Completes reports whether the player to move wins by playing p.
func (b *Board) Completes(p Pos) bool {
	if b.validate(p) != nil {
		return false
	}
	return b.lines.wouldReach(b.cells, p, b.Turn()) >= WinLength
}

// Reach returns the longest run player would own through p if a stone of
// theirs were placed there.
func (b *Board) Reach(p Pos, player Player) int {
	return b.lines.wouldReach(b.cells, p, player)
}

// HashAfter returns the hash of the position after the player to move plays p.
func (b *Board) HashAfter(p Pos) StateHash {
	return b.hash ^ b.keys.stone(p.Index(b.size), b.Turn())
}

// LastLine returns the line-state through the most recently placed stone.
func (b *Board) LastLine() (LineState, bool) {
	if len(b.history) == 0 {
		return LineState{}, false
	}
	p := b.history[len(b.history)-1]
	return b.lines.state(p, b.Get(p)), true
}
