package datasync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/observability"
)

// StubProducerOptions configures a StubProducer.
type StubProducerOptions struct {
	// Pools receive synthetic reserves in every snapshot. Required.
	Pools []domain.PoolID
	// Out receives finished snapshots. Required.
	Out chan<- *domain.MarketSnapshot
	// BaseReserve is the reserve level perturbations are applied to.
	// Defaults to 1000e18.
	BaseReserve *uint256.Int
	// BasePerNative is stamped into every snapshot. Optional.
	BasePerNative *uint256.Int
	// Interval between snapshots. Defaults to 2s.
	Interval time.Duration
	// StartBlock is the first synthetic block number. Defaults to 1.
	StartBlock uint64
	// Seed makes the reserve walk reproducible. Defaults to 1.
	Seed uint64
	// Logger is optional and defaults to log.Default().
	Logger *log.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// StubProducer emits synthetic snapshots on a fixed interval so the full
// pipeline can run without chain access. Reserves follow a deterministic
// walk around a base level, which makes transient imbalances, and thus
// occasional opportunities, appear and disappear across blocks.
type StubProducer struct {
	pools         []domain.PoolID
	out           chan<- *domain.MarketSnapshot
	baseReserve   *uint256.Int
	basePerNative *uint256.Int
	interval      time.Duration
	block         uint64
	state         uint64
	logger        *log.Logger
	metrics       *observability.Metrics
}

// NewStubProducer creates a synthetic snapshot producer.
func NewStubProducer(opts StubProducerOptions) (*StubProducer, error) {
	if len(opts.Pools) == 0 {
		return nil, fmt.Errorf("at least one pool is required")
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("output channel is required")
	}
	baseReserve := opts.BaseReserve
	if baseReserve == nil {
		baseReserve = uint256.MustFromDecimal("1000000000000000000000")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	block := opts.StartBlock
	if block == 0 {
		block = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	pools := make([]domain.PoolID, len(opts.Pools))
	copy(pools, opts.Pools)

	return &StubProducer{
		pools:         pools,
		out:           opts.Out,
		baseReserve:   baseReserve,
		basePerNative: opts.BasePerNative,
		interval:      interval,
		block:         block,
		state:         seed,
		logger:        logger,
		metrics:       opts.Metrics,
	}, nil
}

// Run emits snapshots until the context is cancelled.
func (p *StubProducer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Printf("datasync: stub producer started, %d pools every %s", len(p.pools), p.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot := p.Next()
			select {
			case p.out <- snapshot:
				if p.metrics != nil {
					p.metrics.SnapshotsProduced.Inc()
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Next builds the next synthetic snapshot. Exposed for tests.
func (p *StubProducer) Next() *domain.MarketSnapshot {
	snapshot := domain.NewMarketSnapshot(p.block, p.basePerNative)

	for _, pool := range p.pools {
		snapshot.SetReserves(pool, p.perturbed(), p.perturbed())
	}

	p.block++
	return snapshot
}

// perturbed returns the base reserve shifted by up to roughly 2% in either
// direction.
func (p *StubProducer) perturbed() *uint256.Int {
	// xorshift64, deterministic for a given seed
	p.state ^= p.state << 13
	p.state ^= p.state >> 7
	p.state ^= p.state << 17

	delta := new(uint256.Int).Div(p.baseReserve, uint256.NewInt(50))
	offset := new(uint256.Int).Mod(uint256.NewInt(p.state), new(uint256.Int).Mul(delta, uint256.NewInt(2)))

	out := new(uint256.Int).Sub(p.baseReserve, delta)
	return out.Add(out, offset)
}
