package searcher

import (
	"testing"

	"connect6/game"

	"github.com/stretchr/testify/require"
)

// newTestTree builds a root for Black with one White child and, below it,
// one White child (the second stone of White's turn).
func newTestTree(t *testing.T) (*Tree, []NodeID) {
	b, err := game.NewBoard(game.MinSize)
	require.NoError(t, err)
	tree := newTree(b)

	a := game.Pos{Row: 0, Col: 0}
	first := tree.alloc([]*node{{parent: tree.root, move: a, player: game.White, prior: 1, hash: b.HashAfter(a)}})
	root := tree.node(tree.root)
	root.first, root.count = first, 1
	root.state.Store(int32(expanded))

	_, err = b.Play(a)
	require.NoError(t, err)
	c := game.Pos{Row: 1, Col: 1}
	second := tree.alloc([]*node{{parent: first, move: c, player: game.White, prior: 1, hash: b.HashAfter(c)}})
	child := tree.node(first)
	child.first, child.count = second, 1
	child.state.Store(int32(expanded))

	return tree, []NodeID{tree.root, first, second}
}

func TestBackup(t *testing.T) {
	t.Run("flips sign only on player change", func(t *testing.T) {
		tree, path := newTestTree(t)
		for _, id := range path {
			tree.node(id).virtual.Add(1)
		}

		tree.backup(path, 0.5)

		require.Equal(t, 0.5, tree.Stats(path[2]).Value, "Leaf keeps its own value")
		require.Equal(t, 0.5, tree.Stats(path[1]).Value, "Same player shares the value")
		require.Equal(t, -0.5, tree.Stats(path[0]).Value, "Opponent sees the negation")
		for _, id := range path {
			require.Equal(t, int64(1), tree.Stats(id).Visits)
			require.Zero(t, tree.node(id).virtual.Load(), "Should lift virtual loss")
		}
	})

	t.Run("revert only lifts virtual loss", func(t *testing.T) {
		tree, path := newTestTree(t)
		for _, id := range path {
			tree.node(id).virtual.Add(1)
		}

		tree.revert(path)

		for _, id := range path {
			require.Zero(t, tree.node(id).virtual.Load())
			require.Zero(t, tree.Stats(id).Visits)
		}
	})
}

func TestTreeNavigation(t *testing.T) {
	tree, path := newTestTree(t)

	t.Run("children of an expanded node", func(t *testing.T) {
		require.Equal(t, []NodeID{path[1]}, tree.Children(tree.Root()))
	})

	t.Run("child by move", func(t *testing.T) {
		id, ok := tree.Child(tree.Root(), game.Pos{Row: 0, Col: 0})
		require.True(t, ok)
		require.Equal(t, path[1], id)

		_, ok = tree.Child(tree.Root(), game.Pos{Row: 5, Col: 5})
		require.False(t, ok, "Should not find an unmaterialized move")
	})

	t.Run("leaf has no children", func(t *testing.T) {
		require.Empty(t, tree.Children(path[2]))
	})
}

func TestAdvance(t *testing.T) {
	b, err := game.NewBoard(game.MinSize)
	require.NoError(t, err)

	t.Run("no moves keeps the tree", func(t *testing.T) {
		tree, _ := newTestTree(t)
		advanced, ok := tree.Advance(nil, b.Hash())
		require.True(t, ok)
		require.Same(t, tree, advanced, "Should reuse the tree in place")
	})

	t.Run("compacts the subtree", func(t *testing.T) {
		tree, path := newTestTree(t)
		tree.backup(path, 1)
		moved := b.Clone()
		_, err := moved.Play(game.Pos{Row: 0, Col: 0})
		require.NoError(t, err)

		advanced, ok := tree.Advance([]game.Pos{{Row: 0, Col: 0}}, moved.Hash())
		require.True(t, ok)
		require.Equal(t, 2, advanced.Len(), "Should drop the old root")
		root := advanced.Stats(advanced.Root())
		require.Equal(t, game.White, root.Player)
		require.Equal(t, int64(1), root.Visits)
		require.Equal(t, []NodeID{1}, advanced.Children(advanced.Root()))
		require.Equal(t, game.Pos{Row: 1, Col: 1}, advanced.Stats(1).Move)
	})

	t.Run("rejects a hash mismatch", func(t *testing.T) {
		tree, _ := newTestTree(t)
		_, ok := tree.Advance([]game.Pos{{Row: 0, Col: 0}}, b.Hash())
		require.False(t, ok)
	})

	t.Run("rejects moves outside the tree", func(t *testing.T) {
		tree, _ := newTestTree(t)
		_, ok := tree.Advance([]game.Pos{{Row: 2, Col: 2}}, b.Hash())
		require.False(t, ok)
	})
}
