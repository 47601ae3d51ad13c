package game

import "errors"

// Board sizes supported by the text coordinate format ("aA").
const (
	MinSize     = 6
	MaxSize     = 26
	DefaultSize = 19
)

// WinLength is the number of contiguous stones that wins the game.
const WinLength = 6

var (
	ErrOutOfBounds   = errors.New("position out of bounds")
	ErrOccupied      = errors.New("position already occupied")
	ErrGameOver      = errors.New("game is over - no moves allowed")
	ErrTurnStructure = errors.New("stone count does not match the turn structure")
	ErrNoHistory     = errors.New("no move to undo")
	ErrInvalidSize   = errors.New("invalid board size")
	ErrInvalidPos    = errors.New("invalid position")
	ErrCodec         = errors.New("invalid board encoding")
)

type StateHash uint64

// TurnAt returns the player placing the stone after n stones have been placed.
// Black opens with a single stone, then each side places two.
func TurnAt(n int) Player {
	if n == 0 {
		return Black
	}
	if ((n-1)/2)%2 == 0 {
		return White
	}
	return Black
}

// RemainingAt returns how many stones, including the next one, are left in
// the turn after n stones have been placed.
func RemainingAt(n int) int {
	if n == 0 {
		return 1
	}
	return 2 - (n-1)%2
}
