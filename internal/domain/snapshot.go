package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// Reserves is the observed reserve pair of a pool, in token base units.
type Reserves struct {
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

// MarketSnapshot is an atomic view of pool reserves, all observed at the
// same block height. The producer is responsible for that atomicity; the
// engine trusts it and only skips paths whose pools are absent.
//
// A snapshot is treated as immutable once handed to the engine. Reserve
// entries are added during construction only.
type MarketSnapshot struct {
	// Reserves maps pool id to its reserve pair. Pools whose reserve
	// query failed for this block are simply absent.
	Reserves map[PoolID]Reserves

	// BlockNumber is the chain height every reserve pair was observed at.
	BlockNumber uint64

	// Timestamp is the wall-clock snapshot creation time (Unix ms).
	Timestamp int64

	// BasePerNative converts native-asset wei into base-token wei for gas
	// cost accounting. Scaled by 1e18: a value of 1e18 means 1:1.
	BasePerNative *uint256.Int
}

// NewMarketSnapshot creates an empty snapshot for the given block.
func NewMarketSnapshot(blockNumber uint64, basePerNative *uint256.Int) *MarketSnapshot {
	return &MarketSnapshot{
		Reserves:      make(map[PoolID]Reserves),
		BlockNumber:   blockNumber,
		Timestamp:     time.Now().UnixMilli(),
		BasePerNative: basePerNative,
	}
}

// SetReserves records the reserve pair for a pool. Construction only.
func (s *MarketSnapshot) SetReserves(id PoolID, reserve0, reserve1 *uint256.Int) {
	s.Reserves[id] = Reserves{Reserve0: reserve0, Reserve1: reserve1}
}

// PoolReserves returns the reserve pair for a pool, if present.
func (s *MarketSnapshot) PoolReserves(id PoolID) (Reserves, bool) {
	r, ok := s.Reserves[id]
	return r, ok
}

// PoolCount returns the number of pools with reserve data.
func (s *MarketSnapshot) PoolCount() int {
	return len(s.Reserves)
}
