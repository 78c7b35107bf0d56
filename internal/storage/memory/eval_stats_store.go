package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Whisker17/swap-path/internal/storage"
)

// EvalStatsStore is an in-memory implementation of storage.EvalStatsStore.
type EvalStatsStore struct {
	mu   sync.RWMutex
	data map[uint64]*storage.EvalStatsRow // keyed by block number
}

// NewEvalStatsStore creates a new in-memory evaluation stats store.
func NewEvalStatsStore() *EvalStatsStore {
	return &EvalStatsStore{
		data: make(map[uint64]*storage.EvalStatsRow),
	}
}

// Compile-time interface check.
var _ storage.EvalStatsStore = (*EvalStatsStore)(nil)

// Insert adds a pass record. Returns ErrDuplicateKey for a known block.
func (s *EvalStatsStore) Insert(_ context.Context, row *storage.EvalStatsRow) error {
	if row == nil || row.BlockNumber == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[row.BlockNumber]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *row
	s.data[row.BlockNumber] = &copy
	return nil
}

// ListRange returns records within the block range, ascending.
func (s *EvalStatsStore) ListRange(_ context.Context, fromBlock, toBlock uint64) ([]*storage.EvalStatsRow, error) {
	if fromBlock > toBlock {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var result []*storage.EvalStatsRow
	for block, row := range s.data {
		if block >= fromBlock && block <= toBlock {
			copy := *row
			result = append(result, &copy)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].BlockNumber < result[j].BlockNumber
	})
	return result, nil
}
