// Package memory provides in-memory storage implementations, used in tests
// and for runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Whisker17/swap-path/internal/storage"
)

// OpportunityStore is an in-memory implementation of
// storage.OpportunityStore.
type OpportunityStore struct {
	mu   sync.RWMutex
	data map[string]*storage.OpportunityRow // keyed by Key()
}

// NewOpportunityStore creates a new in-memory opportunity store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{
		data: make(map[string]*storage.OpportunityRow),
	}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the key exists.
func (s *OpportunityStore) Insert(_ context.Context, row *storage.OpportunityRow) error {
	if row == nil || row.PathSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := row.Key()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *row
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple records atomically. Fails the entire batch on
// any duplicate.
func (s *OpportunityStore) InsertBulk(_ context.Context, rows []*storage.OpportunityRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: detect duplicates (existing + intra-batch).
	batchKeys := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row == nil || row.PathSignature == "" {
			return storage.ErrInvalidInput
		}
		key := row.Key()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, row := range rows {
		copy := *row
		s.data[row.Key()] = &copy
	}
	return nil
}

// ListByBlock returns records of one block, net profit descending.
func (s *OpportunityStore) ListByBlock(_ context.Context, blockNumber uint64) ([]*storage.OpportunityRow, error) {
	s.mu.RLock()
	var result []*storage.OpportunityRow
	for _, row := range s.data {
		if row.BlockNumber == blockNumber {
			copy := *row
			result = append(result, &copy)
		}
	}
	s.mu.RUnlock()

	sortByNetProfitDesc(result)
	return result, nil
}

// ListTop returns the most profitable records across all blocks.
func (s *OpportunityStore) ListTop(_ context.Context, limit int) ([]*storage.OpportunityRow, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	result := make([]*storage.OpportunityRow, 0, len(s.data))
	for _, row := range s.data {
		copy := *row
		result = append(result, &copy)
	}
	s.mu.RUnlock()

	sortByNetProfitDesc(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortByNetProfitDesc(rows []*storage.OpportunityRow) {
	sort.Slice(rows, func(i, j int) bool {
		if cmp := compareDecimal(rows[i].NetProfit, rows[j].NetProfit); cmp != 0 {
			return cmp > 0
		}
		return rows[i].Key() < rows[j].Key()
	})
}

// compareDecimal compares two non-negative decimal strings without
// leading zeros, as produced by uint256.Dec.
func compareDecimal(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
