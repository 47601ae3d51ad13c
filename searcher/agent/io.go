package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"connect6/game"
)

// LineReader yields one line of user input per call. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
}

type ioAgent struct {
	lines LineReader
	out   io.Writer
}

// NewIOAgent returns an agent that asks a human for moves in "aA" notation.
func NewIOAgent(lines LineReader, out io.Writer) Policy {
	return ioAgent{lines: lines, out: out}
}

func (a ioAgent) Decide(ctx context.Context, b *game.Board) (Decision, error) {
	if b.Over() {
		return Decision{}, game.ErrGameOver
	}
	if err := b.Render(a.out); err != nil {
		return Decision{}, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		fmt.Fprintf(a.out, "%s to move (%d left): ", b.Turn(), b.Remaining())
		line, err := a.lines.Readline()
		if err != nil {
			return Decision{}, fmt.Errorf("reading move: %w", err)
		}
		pos, err := game.ParsePos(strings.TrimSpace(line))
		if err != nil || !b.IsLegal(pos) {
			fmt.Fprintln(a.out, "invalid input, retry")
			continue
		}
		return Decision{Move: pos}, nil
	}
}
