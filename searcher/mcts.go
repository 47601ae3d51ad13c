package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"connect6/evaluator"
	"connect6/experiments/metrics"
	"connect6/game"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distmv"
	"lukechampine.com/frand"
)

var (
	ErrEvaluatorFailed = errors.New("evaluator failed repeatedly")
	ErrInternal        = errors.New("search invariant violated")
)

type Option func(mcts *MCTS)

// TieBreak orders moves; earlier moves win ties.
type TieBreak func(a, b game.Pos) int

// RowMajor prefers the lowest row, then the lowest column.
func RowMajor(a, b game.Pos) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// MCTS runs tree-parallel Monte Carlo tree search guided by an evaluator.
// One MCTS serves one decision at a time; concurrent Simulate calls on the
// same instance are not supported.
type MCTS struct {
	goroutines  int
	duration    time.Duration
	episodes    int
	evaluator   evaluator.Evaluator
	exploration float64
	virtualLoss float64
	unvisited   float64
	retries     int
	tieBreak    TieBreak
	reuse       bool
	noise       bool
	epsilon     float64
	alpha       float64
	rng         *rand.Rand
	metrics     metrics.Collector

	tree        *Tree
	rootHistory []game.Pos
}

func WithDuration(duration time.Duration) Option {
	return func(m *MCTS) {
		if duration > 0 {
			m.duration = duration
		}
	}
}

func WithEpisodes(episodes int) Option {
	return func(m *MCTS) {
		if episodes > 0 {
			m.episodes = episodes
		}
	}
}

func WithEvaluator(e evaluator.Evaluator) Option {
	return func(m *MCTS) {
		if e != nil {
			m.evaluator = e
		}
	}
}

func WithExploration(c float64) Option {
	return func(m *MCTS) {
		if c >= 0 {
			m.exploration = c
		}
	}
}

func WithVirtualLoss(loss float64) Option {
	return func(m *MCTS) {
		if loss >= 0 {
			m.virtualLoss = loss
		}
	}
}

func WithUnvisitedValue(q float64) Option {
	return func(m *MCTS) {
		m.unvisited = math.Max(Loss, math.Min(Win, q))
	}
}

func WithRetries(retries int) Option {
	return func(m *MCTS) {
		if retries >= 0 {
			m.retries = retries
		}
	}
}

func WithTieBreak(tieBreak TieBreak) Option {
	return func(m *MCTS) {
		if tieBreak != nil {
			m.tieBreak = tieBreak
		}
	}
}

// WithTreeReuse keeps the subtree of the played moves between decisions.
func WithTreeReuse(reuse bool) Option {
	return func(m *MCTS) {
		m.reuse = reuse
	}
}

// WithDirichletNoise mixes Dir(alpha) noise into the root priors with weight
// epsilon.
func WithDirichletNoise(epsilon, alpha float64) Option {
	return func(m *MCTS) {
		if epsilon > 0 && alpha > 0 {
			m.noise = true
			m.epsilon = math.Min(epsilon, 1)
			m.alpha = alpha
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func WithMetrics() Option {
	return func(m *MCTS) {
		m.metrics = metrics.NewCollector()
	}
}

func NewMCTS(goroutines int, options ...Option) *MCTS {
	m := &MCTS{ // Default values
		goroutines:  max(goroutines, 1),
		evaluator:   evaluator.NewHeuristic(),
		exploration: DefaultExploration,
		virtualLoss: DefaultVirtualLoss,
		unvisited:   DefaultUnvisitedValue,
		retries:     DefaultRetries,
		tieBreak:    RowMajor,
		reuse:       true,
		metrics:     metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	if m.episodes <= 0 && m.duration <= 0 {
		panic("Must specify search episodes or duration")
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(frand.Uint64n(math.MaxUint64), frand.Uint64n(math.MaxUint64)))
	}
	return m
}

// Tree returns the tree of the last search.
func (m *MCTS) Tree() *Tree {
	return m.tree
}

// Simulate searches the board within the configured budget and returns the
// selected move with root statistics. A finished game yields a terminal
// result without searching.
func (m *MCTS) Simulate(ctx context.Context, b *game.Board) (Result, error) {
	if b.Over() {
		return Result{Terminal: true, Winner: b.Winner()}, nil
	}

	m.metrics.Start(m.goroutines)
	m.findRoot(b)
	t := m.tree

	if m.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.duration)
		defer cancel()
	}
	// An iteration that has started always runs to completion.
	evalCtx := context.WithoutCancel(ctx)

	budget := m.episodes
	if t.node(t.root).status() == unexpanded {
		if err := m.run(evalCtx, t, b); err != nil {
			return Result{}, err
		}
		m.metrics.AddEpisode()
		budget--
	}
	if m.noise && !t.noised {
		m.addNoise(t)
	}

	if m.episodes <= 0 || budget > 0 {
		if err := m.iterate(ctx, evalCtx, t, b, budget); err != nil {
			return Result{}, err
		}
	}

	result := m.result(t)
	result.Metrics = m.metrics.Complete()
	log.Debug().
		Str("move", result.Move.String()).
		Int64("visits", result.Visits).
		Float64("value", result.Value).
		Int("nodes", t.Len()).
		Msg("search-complete")
	return result, nil
}

// iterate runs simulations on a pool of goroutines until the episode budget
// is spent or ctx ends. Cancellation is only observed between iterations.
func (m *MCTS) iterate(ctx, evalCtx context.Context, t *Tree, b *game.Board, budget int) error {
	var task chan struct{}
	if m.episodes > 0 {
		task = make(chan struct{}, budget)
		for range budget {
			task <- struct{}{}
		}
		close(task)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.goroutines; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				if task != nil {
					if _, ok := <-task; !ok {
						return nil
					}
				}
				if err := m.run(evalCtx, t, b); err != nil {
					return err
				}
				m.metrics.AddEpisode()
			}
			return nil
		})
	}
	return g.Wait()
}

// run performs one simulation, retrying it when the evaluator fails.
func (m *MCTS) run(ctx context.Context, t *Tree, b *game.Board) error {
	err := retry.Do(
		func() error {
			return m.simulate(ctx, t, b)
		},
		retry.Attempts(uint(m.retries)+1),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if int(n) < m.retries {
				m.metrics.AddRetry()
				log.Warn().Msgf("search iteration failed on attempt %d, retrying: %v", n+1, err)
			}
		}),
	)
	if err != nil {
		if errors.Is(err, ErrInternal) {
			return err
		}
		return fmt.Errorf("%w after %d attempts: %w", ErrEvaluatorFailed, m.retries+1, err)
	}
	return nil
}

// simulate walks from the root to a leaf on a private copy of the board,
// expands the leaf and backs its value up the path.
func (m *MCTS) simulate(ctx context.Context, t *Tree, root *game.Board) error {
	b := root.Clone()
	id := t.root
	n := t.node(id)
	n.virtual.Add(1)
	path := []NodeID{id}

	for {
		switch n.status() {
		case terminal:
			m.metrics.AddTerminalHit()
			t.backup(path, n.outcome)
			return nil
		case unexpanded:
			value, ok, err := m.expand(ctx, t, id, n, b)
			if err != nil {
				t.revert(path)
				return err
			}
			if ok {
				t.backup(path, value)
				return nil
			}
			continue // Expanded by another goroutine meanwhile
		}

		id = m.selectChild(t, n)
		n = t.node(id)
		if _, err := b.Play(n.move); err != nil {
			t.revert(path)
			return retry.Unrecoverable(fmt.Errorf("%w: playing %s: %w", ErrInternal, n.move, err))
		}
		n.virtual.Add(1)
		path = append(path, id)
	}
}

// expand evaluates a leaf and materializes its children. It reports
// ok=false without evaluating when another goroutine expanded the node first.
func (m *MCTS) expand(ctx context.Context, t *Tree, id NodeID, n *node, b *game.Board) (float64, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.status() {
	case expanded:
		return 0, false, nil
	case terminal:
		return n.outcome, true, nil
	}
	if b.Over() {
		n.markTerminal(perspective(outcomeValue(b), b.Turn(), n.player))
		return n.outcome, true, nil
	}

	ev, err := m.evaluator.Evaluate(ctx, b)
	if err != nil {
		return 0, false, err
	}
	if err := evaluator.Validate(b, ev); err != nil {
		return 0, false, err
	}
	priors := evaluator.Normalize(ev.Priors)

	moves := b.LegalMoves()
	slices.SortFunc(moves, m.tieBreak)
	mover := b.Turn()
	next := game.TurnAt(b.MoveCount() + 1)
	last := b.MoveCount()+1 == b.Size()*b.Size()

	block := make([]*node, len(moves))
	for i, p := range moves {
		child := &node{parent: id, move: p, player: next, prior: priors[p], hash: b.HashAfter(p)}
		switch {
		case b.Completes(p):
			child.markTerminal(perspective(Win, mover, next))
		case last:
			child.markTerminal(Draw)
		}
		block[i] = child
	}

	n.first = t.alloc(block)
	n.count = int32(len(block))
	n.state.Store(int32(expanded))
	m.metrics.AddExpansion()
	return ev.Value, true, nil
}

// outcomeValue scores a finished board for the player to move.
func outcomeValue(b *game.Board) float64 {
	switch b.Winner() {
	case game.None:
		return Draw
	case b.Turn():
		return Win
	default:
		return Loss
	}
}

// q returns the child's mean value from the parent's perspective, counting
// in-flight simulations as losses.
func (m *MCTS) q(parent, child *node) float64 {
	visits := child.visits.Load()
	virtual := int64(child.virtual.Load())
	sign := perspective(1, child.player, parent.player)
	if visits+virtual == 0 {
		if child.status() == terminal {
			return sign * child.outcome
		}
		return m.unvisited
	}
	return (sign*child.valueSum() - float64(virtual)*m.virtualLoss) / float64(visits+virtual)
}

// selectChild returns the child with the highest PUCT score. Children are
// stored in tie-break order, so the first of equal scores wins.
func (m *MCTS) selectChild(t *Tree, parent *node) NodeID {
	N := float64(parent.visits.Load() + int64(parent.virtual.Load()))
	policy := newPUCT(m.exploration, N)

	best, bestScore := noNode, math.Inf(-1)
	for i := range parent.count {
		id := parent.first + NodeID(i)
		child := t.node(id)
		n := float64(child.visits.Load() + int64(child.virtual.Load()))
		score := policy.evaluate(m.q(parent, child), child.prior, n)
		if best == noNode || score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

func (m *MCTS) addNoise(t *Tree) {
	t.noised = true
	root := t.node(t.root)
	if root.status() != expanded || root.count < 2 {
		return
	}
	alpha := make([]float64, root.count)
	for i := range alpha {
		alpha[i] = m.alpha
	}
	noise := distmv.NewDirichlet(alpha, m.rng).Rand(nil)
	for i := range root.count {
		child := t.node(root.first + NodeID(i))
		child.prior = (1-m.epsilon)*child.prior + m.epsilon*noise[i]
	}
}

// findRoot reuses the previous tree when the board extends the position it
// was rooted at, and starts a fresh tree otherwise.
func (m *MCTS) findRoot(b *game.Board) {
	history := b.History()
	if m.reuse && m.tree != nil && len(history) >= len(m.rootHistory) &&
		slices.Equal(history[:len(m.rootHistory)], m.rootHistory) {
		if t, ok := m.tree.Advance(history[len(m.rootHistory):], b.Hash()); ok {
			m.tree = t
			m.rootHistory = history
			m.metrics.SetTreeReset(false)
			return
		}
	}
	m.tree = newTree(b)
	m.rootHistory = history
	m.metrics.SetTreeReset(true)
}
