package datasync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/observability"
)

const (
	defaultConcurrency = 8
	defaultCacheSize   = 1024
)

// ErrEmptySnapshot is returned when no pool reserves could be read for a
// block.
var ErrEmptySnapshot = fmt.Errorf("datasync: no reserves collected")

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	// Source reads reserves pinned at a block. Required.
	Source ReserveSource
	// Pools is the set of pools included in every snapshot. Required.
	Pools []domain.PoolID
	// BasePerNative is the base-token price of one native token, scaled
	// by 1e18, stamped into every snapshot. Optional.
	BasePerNative *uint256.Int
	// Concurrency bounds parallel reserve reads. Defaults to 8.
	Concurrency int
	// CacheSize bounds the previous-reserve cache used for change
	// detection. Defaults to 1024.
	CacheSize int
	// Logger is optional and defaults to log.Default().
	Logger *log.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Aggregator turns a block header into a MarketSnapshot by reading every
// monitored pool's reserves at that block. Reads fan out with bounded
// concurrency; pools whose read fails are left out of the snapshot and
// the calculator skips paths that touch them.
type Aggregator struct {
	source        ReserveSource
	pools         []domain.PoolID
	basePerNative *uint256.Int
	concurrency   int
	logger        *log.Logger
	metrics       *observability.Metrics

	// prev caches the last observed reserves per pool so the pass log can
	// report how many pools actually moved.
	prev *lru.Cache[domain.PoolID, domain.Reserves]
}

// NewAggregator creates a snapshot aggregator.
func NewAggregator(opts AggregatorOptions) (*Aggregator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("reserve source is required")
	}
	if len(opts.Pools) == 0 {
		return nil, fmt.Errorf("at least one pool is required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	prev, err := lru.New[domain.PoolID, domain.Reserves](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create reserve cache: %w", err)
	}

	pools := make([]domain.PoolID, len(opts.Pools))
	copy(pools, opts.Pools)

	return &Aggregator{
		source:        opts.Source,
		pools:         pools,
		basePerNative: opts.BasePerNative,
		concurrency:   concurrency,
		logger:        logger,
		metrics:       opts.Metrics,
		prev:          prev,
	}, nil
}

// Aggregate reads reserves for every monitored pool at the header's block
// and assembles a snapshot. A partial snapshot is returned when some reads
// fail; ErrEmptySnapshot when all do.
func (a *Aggregator) Aggregate(ctx context.Context, header BlockHeader) (*domain.MarketSnapshot, error) {
	start := time.Now()

	type result struct {
		pool     domain.PoolID
		reserves domain.Reserves
		err      error
	}

	jobs := make(chan domain.PoolID)
	results := make(chan result)

	var wg sync.WaitGroup
	workers := a.concurrency
	if workers > len(a.pools) {
		workers = len(a.pools)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pool := range jobs {
				reserves, err := a.source.Reserves(ctx, pool, header.Number)
				results <- result{pool: pool, reserves: reserves, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, pool := range a.pools {
			select {
			case jobs <- pool:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	snapshot := domain.NewMarketSnapshot(header.Number, a.basePerNative)

	failed := 0
	changed := 0
	for res := range results {
		if res.err != nil {
			failed++
			if a.metrics != nil {
				a.metrics.ReserveFetchErrors.Inc()
			}
			a.logger.Printf("datasync: reserve read failed for %s at block %d: %v", res.pool.Hex(), header.Number, res.err)
			continue
		}
		snapshot.SetReserves(res.pool, res.reserves.Reserve0, res.reserves.Reserve1)
		if a.changedSince(res.pool, res.reserves) {
			changed++
		}
		a.prev.Add(res.pool, res.reserves)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snapshot.PoolCount() == 0 {
		return nil, ErrEmptySnapshot
	}

	if a.metrics != nil {
		a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	}
	if failed > 0 {
		a.logger.Printf("datasync: block %d snapshot is partial, %d/%d pools read", header.Number, snapshot.PoolCount(), len(a.pools))
	}
	a.logger.Printf("datasync: block %d aggregated in %s, pools=%d changed=%d failed=%d",
		header.Number, time.Since(start).Round(time.Microsecond), snapshot.PoolCount(), changed, failed)

	return snapshot, nil
}

func (a *Aggregator) changedSince(pool domain.PoolID, reserves domain.Reserves) bool {
	old, ok := a.prev.Get(pool)
	if !ok {
		return true
	}
	return old.Reserve0.Cmp(reserves.Reserve0) != 0 || old.Reserve1.Cmp(reserves.Reserve1) != 0
}
