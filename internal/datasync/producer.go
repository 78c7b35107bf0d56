package datasync

import (
	"context"
	"fmt"
	"log"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/observability"
)

const headBuffer = 8

// ProducerOptions configures a Producer.
type ProducerOptions struct {
	// Heads streams block headers. Required.
	Heads *HeadClient
	// Aggregator builds snapshots from headers. Required.
	Aggregator *Aggregator
	// Out receives finished snapshots in block order. Required.
	Out chan<- *domain.MarketSnapshot
	// Logger is optional and defaults to log.Default().
	Logger *log.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
}

// Producer connects the head subscription to the aggregator. Aggregation
// can be slower than block production, so headers that arrive while a
// snapshot is being built are drained and only the newest is aggregated.
type Producer struct {
	heads      *HeadClient
	aggregator *Aggregator
	out        chan<- *domain.MarketSnapshot
	logger     *log.Logger
	metrics    *observability.Metrics
}

// NewProducer creates a snapshot producer.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	if opts.Heads == nil {
		return nil, fmt.Errorf("head client is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("output channel is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Producer{
		heads:      opts.Heads,
		aggregator: opts.Aggregator,
		out:        opts.Out,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// Run produces snapshots until the context is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	headCh := make(chan BlockHeader, headBuffer)
	go p.heads.Run(ctx, headCh)

	var lastBlock uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case header := <-headCh:
			header = drainToNewestHeader(headCh, header)
			if header.Number <= lastBlock {
				continue // reorg or duplicate delivery, the engine would discard it anyway
			}

			snapshot, err := p.aggregator.Aggregate(ctx, header)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Printf("datasync: aggregation failed for block %d: %v", header.Number, err)
				continue
			}

			select {
			case p.out <- snapshot:
				lastBlock = header.Number
				if p.metrics != nil {
					p.metrics.SnapshotsProduced.Inc()
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// drainToNewestHeader empties the buffered header channel and keeps the
// highest block seen.
func drainToNewestHeader(ch <-chan BlockHeader, current BlockHeader) BlockHeader {
	for {
		select {
		case header := <-ch:
			if header.Number > current.Number {
				current = header
			}
		default:
			return current
		}
	}
}
