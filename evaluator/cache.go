package evaluator

import (
	"context"
	"sync"
	"sync/atomic"

	"connect6/game"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

const minCacheEntries = 1 << 10

type cacheKey struct {
	hash  game.StateHash
	moves int
}

// Cache memoizes an inner evaluator by position. Cached evaluations are
// shared between callers and must be treated as read-only.
type Cache struct {
	inner    Evaluator
	capacity int

	mu      sync.RWMutex
	entries map[cacheKey]Evaluation

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheCapacity sizes a cache to use about fractionOfMemory of the system
// memory for boards of the given size.
func CacheCapacity(fractionOfMemory float64, boardSize int) int {
	totalMem := memory.TotalMemory()
	// A prior map entry costs roughly 48 bytes including map overhead.
	entrySize := float64(boardSize*boardSize*48 + 64)
	capacity := int(fractionOfMemory * float64(totalMem) / entrySize)
	capacity = max(capacity, minCacheEntries)
	log.Info().Int("capacity", capacity).
		Uint64("total-system-memory-bytes", totalMem).
		Float64("fraction", fractionOfMemory).
		Msg("evaluation-cache-size")
	return capacity
}

func NewCache(inner Evaluator, capacity int) *Cache {
	return &Cache{
		inner:    inner,
		capacity: max(capacity, 1),
		entries:  make(map[cacheKey]Evaluation),
	}
}

func (c *Cache) Evaluate(ctx context.Context, b *game.Board) (Evaluation, error) {
	key := cacheKey{hash: b.Hash(), moves: b.MoveCount()}
	c.mu.RLock()
	ev, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return ev, nil
	}

	c.misses.Add(1)
	ev, err := c.inner.Evaluate(ctx, b)
	if err != nil {
		return Evaluation{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.capacity {
		c.evict()
	}
	c.entries[key] = ev
	return ev, nil
}

// evict drops about half of the entries. Map order makes the choice arbitrary.
func (c *Cache) evict() {
	target := len(c.entries) / 2
	for key := range c.entries {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, key)
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
