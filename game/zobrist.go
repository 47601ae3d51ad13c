package game

import (
	"sync"

	"lukechampine.com/frand"
)

type zobrist struct {
	size  int
	cells []uint64
}

type zobristStore struct {
	mu     sync.Mutex
	tables map[int]*zobrist
}

var zobristTables = &zobristStore{tables: make(map[int]*zobrist)}

// zobristFor returns the process-wide key table for a board size.
func zobristFor(size int) *zobrist {
	zobristTables.mu.Lock()
	defer zobristTables.mu.Unlock()
	if table, ok := zobristTables.tables[size]; ok {
		return table
	}
	table := &zobrist{size: size, cells: make([]uint64, size*size*2)}
	for i := range table.cells {
		table.cells[i] = frand.Uint64n(1<<63) | 1
	}
	zobristTables.tables[size] = table
	return table
}

func (z *zobrist) stone(index int, player Player) StateHash {
	idx := index * 2
	if player == White {
		idx++
	}
	return StateHash(z.cells[idx])
}
