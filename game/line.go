package game

type direction struct {
	dr, dc int
}

// Horizontal, vertical, diagonal and anti-diagonal, in the order wins are reported.
var directions = [4]direction{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// span holds the cell indices of a run's two endpoints along one direction.
type span struct {
	lo, hi int32
}

// lines is the per-direction run-length state of a board. Only run
// endpoints and the most recently placed stone carry accurate spans, which
// is all that merging on placement and splitting on undo need.
type lines struct {
	size  int
	block [4][]span
}

func newLines(size int) lines {
	l := lines{size: size}
	for d := range l.block {
		l.block[d] = make([]span, size*size)
	}
	return l
}

func (l lines) clone() lines {
	c := lines{size: l.size}
	for d := range l.block {
		c.block[d] = append([]span(nil), l.block[d]...)
	}
	return c
}

func (l lines) step(d int) int32 {
	return int32(directions[d].dr*l.size + directions[d].dc)
}

func (l lines) length(d int, s span) int {
	return int((s.hi-s.lo)/l.step(d)) + 1
}

// reach returns the spans of the same-player runs touching pos on either
// side along direction d, or ok=false for a side without such a run.
func (l lines) reach(cells []Player, pos Pos, player Player, d int) (left span, leftOK bool, right span, rightOK bool) {
	dir := directions[d]
	if q := pos.add(dir, -1); q.In(l.size) && cells[q.Index(l.size)] == player {
		left, leftOK = l.block[d][q.Index(l.size)], true
	}
	if r := pos.add(dir, 1); r.In(l.size) && cells[r.Index(l.size)] == player {
		right, rightOK = l.block[d][r.Index(l.size)], true
	}
	return left, leftOK, right, rightOK
}

// place merges the new stone with its neighbouring runs and returns the
// resulting run length in every direction.
func (l lines) place(cells []Player, pos Pos, player Player) [4]int {
	var counts [4]int
	idx := int32(pos.Index(l.size))
	for d := range directions {
		merged := span{lo: idx, hi: idx}
		left, leftOK, right, rightOK := l.reach(cells, pos, player, d)
		if leftOK {
			merged.lo = left.lo
		}
		if rightOK {
			merged.hi = right.hi
		}
		l.block[d][merged.lo] = merged
		l.block[d][merged.hi] = merged
		l.block[d][idx] = merged
		counts[d] = l.length(d, merged)
	}
	return counts
}

// remove splits the run through the most recently placed stone.
func (l lines) remove(pos Pos) {
	idx := int32(pos.Index(l.size))
	for d := range directions {
		s := l.block[d][idx]
		step := l.step(d)
		if s.lo < idx {
			l.block[d][s.lo].hi = idx - step
		}
		if s.hi > idx {
			l.block[d][s.hi].lo = idx + step
		}
		l.block[d][idx] = span{lo: idx, hi: idx}
	}
}

// wouldReach returns the longest run player would own through pos.
func (l lines) wouldReach(cells []Player, pos Pos, player Player) int {
	best := 0
	for d := range directions {
		count := 1
		left, leftOK, right, rightOK := l.reach(cells, pos, player, d)
		if leftOK {
			count += l.length(d, left)
		}
		if rightOK {
			count += l.length(d, right)
		}
		best = max(best, count)
	}
	return best
}

func (l lines) path(d int, s span) Path {
	path := make(Path, 0, l.length(d, s))
	for i := s.lo; i <= s.hi; i += l.step(d) {
		path = append(path, PosAt(l.size, int(i)))
	}
	return path
}

// LineState describes the runs through one placed stone.
type LineState struct {
	Pos        Pos
	Player     Player
	Cumulative [4]int
	Block      [4][2]Pos
}

func (l lines) state(pos Pos, player Player) LineState {
	ls := LineState{Pos: pos, Player: player}
	idx := pos.Index(l.size)
	for d := range directions {
		s := l.block[d][idx]
		ls.Cumulative[d] = l.length(d, s)
		ls.Block[d] = [2]Pos{PosAt(l.size, int(s.lo)), PosAt(l.size, int(s.hi))}
	}
	return ls
}
