package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/observability"
	"github.com/Whisker17/swap-path/internal/storage"
)

// Result is the outcome of one processed snapshot: the ranked opportunity
// list (commonly empty) plus the pass statistics.
type Result struct {
	BlockNumber   uint64
	Opportunities []*domain.ArbitrageOpportunity
	Stats         PassStats
}

// Options configures an Engine. Calculator, Paths and Snapshots are
// required; everything else is optional.
type Options struct {
	Calculator *Calculator
	Paths      []*domain.SwapPath

	// Snapshots delivers atomic market snapshots in non-decreasing block
	// order. The channel closing ends Run.
	Snapshots <-chan *domain.MarketSnapshot

	// Results receives one Result per processed snapshot, in block order.
	// Nil when no downstream consumer is wired.
	Results chan<- Result

	// BlockInterval is the expected cadence of snapshots. The engine
	// raises the overdue signal when none arrives within three intervals.
	BlockInterval time.Duration

	Logger  *log.Logger
	Metrics *observability.Metrics

	// Optional persistence. Failures are logged, never fatal to a pass.
	OpportunityStore storage.OpportunityStore
	StatsStore       storage.EvalStatsStore
}

// Engine drives the per-snapshot pipeline: it consumes snapshots in block
// order, evaluates the precomputed path set, ranks the survivors and hands
// them downstream.
//
// Snapshot policy: at most one evaluation pass runs at a time. When several
// snapshots have queued up behind a pass, the engine skips ahead to the
// newest and counts the rest as superseded — freshness over completeness.
// Snapshots at or below the last processed block are discarded.
type Engine struct {
	calc      *Calculator
	paths     []*domain.SwapPath
	snapshots <-chan *domain.MarketSnapshot
	results   chan<- Result

	blockInterval time.Duration
	staleAfter    time.Duration

	logger  *log.Logger
	metrics *observability.Metrics

	oppStore   storage.OpportunityStore
	statsStore storage.EvalStatsStore

	lastBlock atomic.Uint64
	stale     atomic.Bool

	mu         sync.Mutex
	lastResult Result
	hasResult  bool
}

// New creates an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Calculator == nil {
		return nil, errors.New("engine: calculator is required")
	}
	if len(opts.Paths) == 0 {
		return nil, errors.New("engine: no precomputed paths")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("engine: snapshot channel is required")
	}

	blockInterval := opts.BlockInterval
	if blockInterval == 0 {
		blockInterval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		calc:          opts.Calculator,
		paths:         opts.Paths,
		snapshots:     opts.Snapshots,
		results:       opts.Results,
		blockInterval: blockInterval,
		staleAfter:    3 * blockInterval,
		logger:        logger,
		metrics:       opts.Metrics,
		oppStore:      opts.OpportunityStore,
		statsStore:    opts.StatsStore,
	}, nil
}

// Run processes snapshots until the context is cancelled or the snapshot
// channel closes. Cancellation is a clean shutdown: an in-flight pass is
// abandoned and its partial results discarded (all per-path work is pure,
// so abandonment cannot corrupt shared state).
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("engine: starting, %d precomputed paths, block interval %s", len(e.paths), e.blockInterval)

	staleTimer := time.NewTimer(e.staleAfter)
	defer staleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Printf("engine: shutdown requested")
			return nil

		case snapshot, ok := <-e.snapshots:
			if !ok {
				e.logger.Printf("engine: snapshot source closed")
				return nil
			}
			snapshot = e.drainToNewest(snapshot)

			if snapshot.BlockNumber <= e.lastBlock.Load() {
				// Out-of-order or duplicate delivery.
				e.logger.Printf("engine: discarding snapshot for block %d, last processed %d",
					snapshot.BlockNumber, e.lastBlock.Load())
				if e.metrics != nil {
					e.metrics.SnapshotsDiscarded.WithLabelValues("out_of_order").Inc()
				}
				continue
			}

			if err := e.process(ctx, snapshot); err != nil {
				return nil // cancelled mid-pass
			}

			if !staleTimer.Stop() {
				select {
				case <-staleTimer.C:
				default:
				}
			}
			staleTimer.Reset(e.staleAfter)

		case <-staleTimer.C:
			// Degraded mode: no snapshot within ~3 block intervals. Keep
			// the last results but flag them stale instead of implying
			// freshness.
			e.stale.Store(true)
			e.logger.Printf("engine: snapshot overdue, no update for %s (last block %d)",
				e.staleAfter, e.lastBlock.Load())
			if e.metrics != nil {
				e.metrics.SnapshotOverdue.Set(1)
			}
			staleTimer.Reset(e.staleAfter)
		}
	}
}

// drainToNewest empties any backlog on the snapshot channel and keeps only
// the highest block, counting the rest as superseded.
func (e *Engine) drainToNewest(current *domain.MarketSnapshot) *domain.MarketSnapshot {
	for {
		select {
		case next, ok := <-e.snapshots:
			if !ok {
				return current
			}
			dropped := current
			if next.BlockNumber > current.BlockNumber {
				current = next
			} else {
				dropped = next
			}
			e.logger.Printf("engine: superseding snapshot for block %d with block %d",
				dropped.BlockNumber, current.BlockNumber)
			if e.metrics != nil {
				e.metrics.SnapshotsDiscarded.WithLabelValues("superseded").Inc()
			}
		default:
			return current
		}
	}
}

// process runs one evaluation pass end to end. Returns an error only on
// context cancellation.
func (e *Engine) process(ctx context.Context, snapshot *domain.MarketSnapshot) error {
	opportunities, stats := e.calc.Evaluate(ctx, snapshot, e.paths)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ranked := Rank(opportunities)

	e.lastBlock.Store(snapshot.BlockNumber)
	e.stale.Store(false)

	result := Result{
		BlockNumber:   snapshot.BlockNumber,
		Opportunities: ranked,
		Stats:         stats,
	}

	e.mu.Lock()
	e.lastResult = result
	e.hasResult = true
	e.mu.Unlock()

	e.observe(stats)
	e.persist(ctx, result)

	if stats.PathsFailed > 0 || stats.PathsSkipped > 0 {
		e.logger.Printf("engine: block %d evaluated %d/%d paths (%d skipped, %d failed) in %s",
			stats.BlockNumber, stats.PathsEvaluated, stats.PathsTotal,
			stats.PathsSkipped, stats.PathsFailed, stats.Duration)
	}
	if len(ranked) > 0 {
		e.logger.Printf("engine: block %d found %d opportunities, best net profit %s",
			stats.BlockNumber, len(ranked), ranked[0].NetProfit.Dec())
	}

	if e.results != nil {
		select {
		case e.results <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Engine) observe(stats PassStats) {
	if e.metrics == nil {
		return
	}
	e.metrics.SnapshotsProcessed.Inc()
	e.metrics.PathsEvaluated.Add(float64(stats.PathsEvaluated))
	e.metrics.PathsSkipped.Add(float64(stats.PathsSkipped))
	e.metrics.PathsFailed.Add(float64(stats.PathsFailed))
	e.metrics.OpportunitiesFound.Add(float64(stats.Opportunities))
	e.metrics.EvaluationDuration.Observe(stats.Duration.Seconds())
	e.metrics.LastBlock.Set(float64(stats.BlockNumber))
	e.metrics.SnapshotOverdue.Set(0)
}

// persist writes the pass to the optional stores. Best effort: storage
// failures never block delivery of the opportunities that succeeded.
func (e *Engine) persist(ctx context.Context, result Result) {
	if e.oppStore != nil && len(result.Opportunities) > 0 {
		rows := make([]*storage.OpportunityRow, len(result.Opportunities))
		for i, opp := range result.Opportunities {
			rows[i] = storage.RowFromOpportunity(opp)
		}
		if err := e.oppStore.InsertBulk(ctx, rows); err != nil {
			e.logger.Printf("engine: persisting opportunities for block %d: %v", result.BlockNumber, err)
		}
	}
	if e.statsStore != nil {
		row := &storage.EvalStatsRow{
			BlockNumber:    result.BlockNumber,
			PathsTotal:     result.Stats.PathsTotal,
			PathsEvaluated: result.Stats.PathsEvaluated,
			PathsSkipped:   result.Stats.PathsSkipped,
			PathsFailed:    result.Stats.PathsFailed,
			Opportunities:  result.Stats.Opportunities,
			DurationMicros: result.Stats.Duration.Microseconds(),
			Timestamp:      time.Now().UnixMilli(),
		}
		if err := e.statsStore.Insert(ctx, row); err != nil {
			e.logger.Printf("engine: persisting pass stats for block %d: %v", result.BlockNumber, err)
		}
	}
}

// LastBlock returns the highest processed block number.
func (e *Engine) LastBlock() uint64 {
	return e.lastBlock.Load()
}

// Stale reports whether the last results have outlived the expected
// snapshot cadence.
func (e *Engine) Stale() bool {
	return e.stale.Load()
}

// LastResult returns the most recent result, if any. Callers should check
// Stale before acting on it.
func (e *Engine) LastResult() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult, e.hasResult
}
