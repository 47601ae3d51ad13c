package game

import (
	"bufio"
	"io"
)

// Render writes the board as text with "aA" coordinates. Stones on the
// winning path are drawn in lower case.
func (b *Board) Render(w io.Writer) error {
	onPath := make(map[Pos]bool, len(b.path))
	for _, p := range b.path {
		onPath[p] = true
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("  ")
	for c := range b.size {
		bw.WriteByte(' ')
		bw.WriteByte(byte('A' + c))
	}
	bw.WriteByte('\n')
	for r := range b.size {
		bw.WriteByte(byte('a' + r))
		bw.WriteByte(' ')
		for c := range b.size {
			p := Pos{Row: r, Col: c}
			symbol := b.Get(p).symbol()
			if onPath[p] {
				symbol += 'a' - 'A'
			}
			bw.WriteByte(' ')
			bw.WriteByte(symbol)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
