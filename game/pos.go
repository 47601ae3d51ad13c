package game

import (
	"fmt"
	"strings"
)

// Pos is a cell coordinate. Its text form is the row as a lowercase letter
// followed by the column as an uppercase letter, e.g. "aA" for the top left.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func PosAt(size, index int) Pos {
	return Pos{Row: index / size, Col: index % size}
}

func (p Pos) Index(size int) int {
	return p.Row*size + p.Col
}

func (p Pos) In(size int) bool {
	return p.Row >= 0 && p.Row < size && p.Col >= 0 && p.Col < size
}

// Less orders positions row-major.
func (p Pos) Less(o Pos) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Col < o.Col
}

func (p Pos) add(d direction, k int) Pos {
	return Pos{Row: p.Row + d.dr*k, Col: p.Col + d.dc*k}
}

func (p Pos) String() string {
	if p.Row < 0 || p.Row >= MaxSize || p.Col < 0 || p.Col >= MaxSize {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return string([]byte{byte('a' + p.Row), byte('A' + p.Col)})
}

func (p Pos) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pos) UnmarshalText(text []byte) error {
	parsed, err := ParsePos(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParsePos(s string) (Pos, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return Pos{}, fmt.Errorf("%w: %q", ErrInvalidPos, s)
	}
	row, col := s[0], s[1]
	if row < 'a' || row >= 'a'+MaxSize || col < 'A' || col >= 'A'+MaxSize {
		return Pos{}, fmt.Errorf("%w: %q", ErrInvalidPos, s)
	}
	return Pos{Row: int(row - 'a'), Col: int(col - 'A')}, nil
}
