package searcher

import (
	"math"
	"sync"
	"sync/atomic"

	"connect6/game"

	"github.com/rs/zerolog/log"
)

// NodeID addresses a node in its tree's arena.
type NodeID int32

const noNode NodeID = -1

type nodeState int32

const (
	unexpanded nodeState = iota
	expanded
	terminal
)

type node struct {
	parent NodeID
	move   game.Pos    // Move leading into this node
	player game.Player // Player to act at this node
	prior  float64
	hash   game.StateHash

	visits  atomic.Int64
	value   atomic.Uint64 // float64 bits, summed from player's perspective
	virtual atomic.Int32
	state   atomic.Int32

	// mu serializes expansion. first and count are written once before
	// state is published as expanded and never change afterwards.
	mu      sync.Mutex
	first   NodeID
	count   int32
	outcome float64 // Known value of a terminal node
}

func (n *node) status() nodeState {
	return nodeState(n.state.Load())
}

func (n *node) valueSum() float64 {
	return math.Float64frombits(n.value.Load())
}

func (n *node) addValue(v float64) {
	for {
		old := n.value.Load()
		updated := math.Float64bits(math.Float64frombits(old) + v)
		if n.value.CompareAndSwap(old, updated) {
			return
		}
	}
}

func (n *node) markTerminal(outcome float64) {
	n.outcome = outcome
	n.state.Store(int32(terminal))
}

// Tree is an arena of search nodes. Node ids stay valid for the lifetime of
// the tree; the arena only grows.
type Tree struct {
	mu     sync.RWMutex
	nodes  []*node
	root   NodeID
	noised bool
}

func newTree(b *game.Board) *Tree {
	root := &node{parent: noNode, player: b.Turn(), prior: 1, hash: b.Hash()}
	return &Tree{nodes: []*node{root}, root: 0}
}

func (t *Tree) node(id NodeID) *node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[id]
}

// alloc appends a block of siblings and returns the id of the first.
func (t *Tree) alloc(block []*node) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	first := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, block...)
	return first
}

func (t *Tree) Root() NodeID {
	return t.root
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Children returns the ids of an expanded node's children.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.node(id)
	if n.status() != expanded {
		return nil
	}
	children := make([]NodeID, n.count)
	for i := range children {
		children[i] = n.first + NodeID(i)
	}
	return children
}

// Child returns the child reached by move, if it has been materialized.
func (t *Tree) Child(id NodeID, move game.Pos) (NodeID, bool) {
	for _, child := range t.Children(id) {
		if t.node(child).move == move {
			return child, true
		}
	}
	return noNode, false
}

// NodeStats is a snapshot of one node.
type NodeStats struct {
	Move     game.Pos
	Player   game.Player
	Visits   int64
	Value    float64 // Summed value from Player's perspective
	Prior    float64
	Expanded bool
	Terminal bool
}

func (t *Tree) Stats(id NodeID) NodeStats {
	n := t.node(id)
	return NodeStats{
		Move:     n.move,
		Player:   n.player,
		Visits:   n.visits.Load(),
		Value:    n.valueSum(),
		Prior:    n.prior,
		Expanded: n.status() == expanded,
		Terminal: n.status() == terminal,
	}
}

// backup adds a finished simulation's value along its path and lifts the
// virtual losses it applied. value is from the last node's perspective.
func (t *Tree) backup(path []NodeID, value float64) {
	for i := len(path) - 1; i >= 0; i-- {
		n := t.node(path[i])
		n.addValue(value)
		n.visits.Add(1)
		n.virtual.Add(-1)
		if i > 0 {
			value = perspective(value, n.player, t.node(path[i-1]).player)
		}
	}
}

// revert lifts the virtual losses of an aborted simulation.
func (t *Tree) revert(path []NodeID) {
	for _, id := range path {
		t.node(id).virtual.Add(-1)
	}
}

// Advance follows moves from the root and returns a new tree holding only
// the subtree below them. It fails when a move leads outside the expanded
// tree or the reached position does not hash to expected.
func (t *Tree) Advance(moves []game.Pos, expected game.StateHash) (*Tree, bool) {
	id := t.root
	for _, move := range moves {
		child, ok := t.Child(id, move)
		if !ok {
			return nil, false
		}
		id = child
	}
	if n := t.node(id); n.hash != expected {
		log.Warn().Msgf("node's state hash %d does not match board's state hash %d", n.hash, expected)
		return nil, false
	}
	if id == t.root {
		return t, true
	}
	return t.compact(id), true
}

// compact copies the subtree under id into a fresh arena in breadth-first
// order, which keeps every sibling block contiguous.
func (t *Tree) compact(id NodeID) *Tree {
	order := []NodeID{id}
	for i := 0; i < len(order); i++ {
		order = append(order, t.Children(order[i])...)
	}
	remap := make(map[NodeID]NodeID, len(order))
	for i, old := range order {
		remap[old] = NodeID(i)
	}

	nodes := make([]*node, len(order))
	for i, old := range order {
		src := t.node(old)
		dst := &node{
			parent:  noNode,
			move:    src.move,
			player:  src.player,
			prior:   src.prior,
			hash:    src.hash,
			first:   noNode,
			count:   src.count,
			outcome: src.outcome,
		}
		if parent, ok := remap[src.parent]; ok && old != id {
			dst.parent = parent
		}
		if src.status() == expanded {
			dst.first = remap[src.first]
		}
		dst.visits.Store(src.visits.Load())
		dst.value.Store(src.value.Load())
		dst.state.Store(src.state.Load())
		nodes[i] = dst
	}
	return &Tree{nodes: nodes, root: 0}
}
