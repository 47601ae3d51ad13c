package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Goroutines   int
	Duration     time.Duration
	Episodes     int
	Expansions   int
	TerminalHits int
	Retries      int
	IsTreeReset  bool
}

type MoveMetric struct {
	Step   int
	Player int // Flat grid marker of the player to move
	SearchMetric
}

type GameMetric struct {
	ID         string
	Winner     string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalMoves int
}

type Collector interface {
	Start(goroutines int)
	SetTreeReset(value bool)
	AddEpisode()
	AddExpansion()
	AddTerminalHit()
	AddRetry()
	Complete() SearchMetric
}

type collector struct {
	goroutines   int
	startTime    time.Time
	episodes     atomic.Int32
	expansions   atomic.Int32
	terminalHits atomic.Int32
	retries      atomic.Int32
	isTreeReset  atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) SetTreeReset(value bool) {
	m.isTreeReset.Store(value)
}

// Start resets the counters for a new search.
func (m *collector) Start(goroutines int) {
	m.startTime = time.Now()
	m.goroutines = goroutines
	m.episodes.Store(0)
	m.expansions.Store(0)
	m.terminalHits.Store(0)
	m.retries.Store(0)
}

func (m *collector) AddEpisode() {
	m.episodes.Add(1)
}

func (m *collector) AddExpansion() {
	m.expansions.Add(1)
}

func (m *collector) AddTerminalHit() {
	m.terminalHits.Add(1)
}

func (m *collector) AddRetry() {
	m.retries.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Goroutines:   m.goroutines,
		Duration:     time.Since(m.startTime),
		Episodes:     int(m.episodes.Load()),
		Expansions:   int(m.expansions.Load()),
		TerminalHits: int(m.terminalHits.Load()),
		Retries:      int(m.retries.Load()),
		IsTreeReset:  m.isTreeReset.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(goroutines int)    {}
func (m *dummyCollector) SetTreeReset(value bool) {}
func (m *dummyCollector) AddEpisode()             {}
func (m *dummyCollector) AddExpansion()           {}
func (m *dummyCollector) AddTerminalHit()         {}
func (m *dummyCollector) AddRetry()               {}
func (m *dummyCollector) Complete() SearchMetric  { return SearchMetric{} }
