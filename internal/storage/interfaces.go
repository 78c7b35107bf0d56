// Package storage defines the persistence interfaces for opportunity and
// evaluation-pass history, with in-memory, PostgreSQL and ClickHouse
// implementations in subpackages. Persistence is optional and best-effort:
// the engine never blocks on it.
package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/Whisker17/swap-path/internal/domain"
)

// OpportunityRow is the flattened, storage-friendly form of a discovered
// opportunity. Amounts are decimal strings (base-token wei) so databases
// can store them as NUMERIC without precision loss.
type OpportunityRow struct {
	BlockNumber    uint64
	PathSignature  string
	TokenRoute     string
	Hops           int
	OptimalInput   string
	ExpectedOutput string
	GrossProfit    string
	GasCost        string
	NetProfit      string
	ProfitMargin   float64
	DiscoveredAt   int64 // Unix ms
}

// Key returns the append-only uniqueness key: one record per path per block.
func (r *OpportunityRow) Key() string {
	return r.PathSignature + "@" + strconv.FormatUint(r.BlockNumber, 10)
}

// RowFromOpportunity flattens a domain opportunity for storage.
func RowFromOpportunity(o *domain.ArbitrageOpportunity) *OpportunityRow {
	tokens := o.Path.Tokens()
	route := make([]string, len(tokens))
	for i, t := range tokens {
		route[i] = t.Hex()
	}
	return &OpportunityRow{
		BlockNumber:    o.BlockNumber,
		PathSignature:  o.Path.Signature(),
		TokenRoute:     strings.Join(route, ">"),
		Hops:           o.Path.Hops(),
		OptimalInput:   o.OptimalInput.Dec(),
		ExpectedOutput: o.ExpectedOutput.Dec(),
		GrossProfit:    o.GrossProfit.Dec(),
		GasCost:        o.GasCost.Dec(),
		NetProfit:      o.NetProfit.Dec(),
		ProfitMargin:   o.ProfitMargin,
		DiscoveredAt:   o.DiscoveredAt,
	}
}

// OpportunityStore persists discovered opportunities.
type OpportunityStore interface {
	// Insert adds one record. Returns ErrDuplicateKey when the same path
	// was already recorded for the same block.
	Insert(ctx context.Context, row *OpportunityRow) error

	// InsertBulk adds multiple records atomically; the whole batch fails
	// on any duplicate.
	InsertBulk(ctx context.Context, rows []*OpportunityRow) error

	// ListByBlock returns the records of one block, net profit descending.
	ListByBlock(ctx context.Context, blockNumber uint64) ([]*OpportunityRow, error)

	// ListTop returns the most profitable records across all blocks.
	ListTop(ctx context.Context, limit int) ([]*OpportunityRow, error)
}

// EvalStatsRow is one evaluation pass, for throughput and skip-rate
// analysis over time.
type EvalStatsRow struct {
	BlockNumber    uint64
	PathsTotal     int
	PathsEvaluated int
	PathsSkipped   int
	PathsFailed    int
	Opportunities  int
	DurationMicros int64
	Timestamp      int64 // Unix ms
}

// EvalStatsStore persists per-block evaluation statistics.
type EvalStatsStore interface {
	// Insert adds one pass record. Returns ErrDuplicateKey for a block
	// already recorded.
	Insert(ctx context.Context, row *EvalStatsRow) error

	// ListRange returns records with fromBlock <= block <= toBlock,
	// ordered by block ascending.
	ListRange(ctx context.Context, fromBlock, toBlock uint64) ([]*EvalStatsRow, error)
}
