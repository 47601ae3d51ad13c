package searcher

import (
	"connect6/experiments/metrics"
	"connect6/game"
)

// ChildStats describes one root child after a search. Value is the mean
// from the root player's perspective, or zero without visits.
type ChildStats struct {
	Move   game.Pos
	Visits int64
	Value  float64
	Prior  float64
	Proven bool // Playing Move wins immediately
}

type Result struct {
	Move     game.Pos
	Terminal bool        // The searched board was already finished
	Winner   game.Player // Set when Terminal
	Visits   int64       // Root visits
	Value    float64     // Root mean value from the mover's perspective
	Children []ChildStats
	Metrics  metrics.SearchMetric
}

// Policy returns the visit distribution over the root children.
func (r Result) Policy() map[game.Pos]float64 {
	var total int64
	for _, c := range r.Children {
		total += c.Visits
	}
	policy := make(map[game.Pos]float64, len(r.Children))
	for _, c := range r.Children {
		if total > 0 {
			policy[c.Move] = float64(c.Visits) / float64(total)
		} else {
			policy[c.Move] = 0
		}
	}
	return policy
}

// result collects root statistics and picks the move to play: an immediate
// win if one exists, otherwise the most visited child, then the higher mean
// value, then the earlier child in tie-break order.
func (m *MCTS) result(t *Tree) Result {
	root := t.node(t.root)
	result := Result{Visits: root.visits.Load()}
	if result.Visits > 0 {
		result.Value = root.valueSum() / float64(result.Visits)
	}

	children := t.Children(t.root)
	result.Children = make([]ChildStats, len(children))
	for i, id := range children {
		child := t.node(id)
		stats := ChildStats{
			Move:   child.move,
			Visits: child.visits.Load(),
			Prior:  child.prior,
			Proven: child.status() == terminal && perspective(child.outcome, child.player, root.player) == Win,
		}
		if stats.Visits > 0 {
			stats.Value = perspective(child.valueSum(), child.player, root.player) / float64(stats.Visits)
		}
		result.Children[i] = stats
	}
	result.Move = bestChild(result.Children).Move
	return result
}

func bestChild(children []ChildStats) ChildStats {
	for _, c := range children {
		if c.Proven {
			return c
		}
	}
	best := children[0]
	for _, c := range children[1:] {
		if c.Visits > best.Visits || (c.Visits == best.Visits && c.Value > best.Value) {
			best = c
		}
	}
	return best
}
