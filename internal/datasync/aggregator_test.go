package datasync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
)

func poolID(n byte) domain.PoolID {
	var a common.Address
	a[0] = 0xff
	a[19] = n
	return domain.PoolID(a)
}

// fakeSource returns canned reserves and records the block every read was
// pinned at.
type fakeSource struct {
	mu       sync.Mutex
	reserves map[domain.PoolID]domain.Reserves
	fail     map[domain.PoolID]bool
	blocks   []uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		reserves: make(map[domain.PoolID]domain.Reserves),
		fail:     make(map[domain.PoolID]bool),
	}
}

func (f *fakeSource) set(id domain.PoolID, r0, r1 uint64) {
	f.reserves[id] = domain.Reserves{
		Reserve0: uint256.NewInt(r0),
		Reserve1: uint256.NewInt(r1),
	}
}

func (f *fakeSource) Reserves(_ context.Context, pool domain.PoolID, blockNumber uint64) (domain.Reserves, error) {
	f.mu.Lock()
	f.blocks = append(f.blocks, blockNumber)
	f.mu.Unlock()

	if f.fail[pool] {
		return domain.Reserves{}, errors.New("rpc unavailable")
	}
	r, ok := f.reserves[pool]
	if !ok {
		return domain.Reserves{}, errors.New("unknown pool")
	}
	return r, nil
}

func TestAggregator_BuildsCompleteSnapshot(t *testing.T) {
	source := newFakeSource()
	source.set(poolID(1), 100, 200)
	source.set(poolID(2), 300, 400)
	source.set(poolID(3), 500, 600)

	agg, err := NewAggregator(AggregatorOptions{
		Source:        source,
		Pools:         []domain.PoolID{poolID(1), poolID(2), poolID(3)},
		BasePerNative: uint256.NewInt(2_000_000_000),
	})
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}

	snap, err := agg.Aggregate(context.Background(), BlockHeader{Number: 77})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if snap.BlockNumber != 77 {
		t.Errorf("BlockNumber = %d, want 77", snap.BlockNumber)
	}
	if snap.PoolCount() != 3 {
		t.Errorf("PoolCount = %d, want 3", snap.PoolCount())
	}
	if snap.BasePerNative == nil || snap.BasePerNative.Uint64() != 2_000_000_000 {
		t.Error("BasePerNative not carried into the snapshot")
	}

	r, ok := snap.PoolReserves(poolID(2))
	if !ok || r.Reserve0.Uint64() != 300 || r.Reserve1.Uint64() != 400 {
		t.Errorf("pool 2 reserves = %+v", r)
	}

	// Every read must have been pinned at the header's block.
	for _, b := range source.blocks {
		if b != 77 {
			t.Fatalf("reserve read pinned at block %d, want 77", b)
		}
	}
}

func TestAggregator_PartialSnapshotOnReadFailure(t *testing.T) {
	source := newFakeSource()
	source.set(poolID(1), 100, 200)
	source.set(poolID(2), 300, 400)
	source.fail[poolID(2)] = true

	agg, err := NewAggregator(AggregatorOptions{
		Source: source,
		Pools:  []domain.PoolID{poolID(1), poolID(2)},
	})
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}

	snap, err := agg.Aggregate(context.Background(), BlockHeader{Number: 1})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if snap.PoolCount() != 1 {
		t.Errorf("PoolCount = %d, want 1", snap.PoolCount())
	}
	if _, ok := snap.PoolReserves(poolID(2)); ok {
		t.Error("failed pool must be absent from the snapshot")
	}
}

func TestAggregator_AllReadsFailed(t *testing.T) {
	source := newFakeSource()
	source.fail[poolID(1)] = true

	agg, err := NewAggregator(AggregatorOptions{
		Source: source,
		Pools:  []domain.PoolID{poolID(1)},
	})
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}

	_, err = agg.Aggregate(context.Background(), BlockHeader{Number: 1})
	if !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("err = %v, want ErrEmptySnapshot", err)
	}
}

func TestNewAggregator_RequiresSourceAndPools(t *testing.T) {
	if _, err := NewAggregator(AggregatorOptions{Pools: []domain.PoolID{poolID(1)}}); err == nil {
		t.Error("nil source accepted")
	}
	if _, err := NewAggregator(AggregatorOptions{Source: newFakeSource()}); err == nil {
		t.Error("empty pool list accepted")
	}
}
