package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/amm"
	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/graph"
)

// oneEther is the scale of MarketSnapshot.BasePerNative.
var oneEther = uint256.NewInt(1_000_000_000_000_000_000)

// Calculator is the hot path: given one snapshot and the precomputed path
// set, it finds the profit-maximizing input per path and emits opportunities
// above the configured threshold. Safe for concurrent use; all per-path
// work reads only immutable inputs.
type Calculator struct {
	config Config
	graph  *graph.PoolGraph
	logger *log.Logger
}

// NewCalculator validates the configuration and creates a calculator.
func NewCalculator(config Config, g *graph.PoolGraph, logger *log.Logger) (*Calculator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("invalid engine config: nil pool graph")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Calculator{config: config, graph: g, logger: logger}, nil
}

// PassStats aggregates per-path outcomes of one evaluation pass. Failures
// local to a path are counted here, never propagated as pass errors.
type PassStats struct {
	BlockNumber    uint64
	PathsTotal     int
	PathsEvaluated int
	PathsSkipped   int // disabled pool, or pool absent from the snapshot
	PathsFailed    int // numeric failure (zero reserve, overflow)
	Opportunities  int
	Duration       time.Duration
}

type outcomeStatus int

const (
	outcomeSkipped outcomeStatus = iota
	outcomeNoProfit
	outcomeFailed
	outcomeOpportunity
)

type pathOutcome struct {
	status outcomeStatus
	opp    *domain.ArbitrageOpportunity
}

// Evaluate runs one pass over the path set against the snapshot, fanning
// out across the worker pool. Results carry no ordering guarantee; callers
// rank them with Rank. On context cancellation partial results are
// discarded and an empty slice is returned.
func (c *Calculator) Evaluate(ctx context.Context, snapshot *domain.MarketSnapshot, paths []*domain.SwapPath) ([]*domain.ArbitrageOpportunity, PassStats) {
	start := time.Now()
	stats := PassStats{BlockNumber: snapshot.BlockNumber, PathsTotal: len(paths)}

	if len(paths) == 0 {
		stats.Duration = time.Since(start)
		return nil, stats
	}

	// One flag-state read per pass keeps the graph's read lock out of the
	// per-path loop.
	enabled := c.graph.EnabledSet()

	outcomes := make([]pathOutcome, len(paths))
	jobs := make(chan int)

	workers := c.config.workers()
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				outcomes[i] = c.evaluatePath(snapshot, enabled, paths[i])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		stats.Duration = time.Since(start)
		return nil, stats
	}

	var opportunities []*domain.ArbitrageOpportunity
	for i := range outcomes {
		switch outcomes[i].status {
		case outcomeSkipped:
			stats.PathsSkipped++
		case outcomeFailed:
			stats.PathsEvaluated++
			stats.PathsFailed++
		case outcomeNoProfit:
			stats.PathsEvaluated++
		case outcomeOpportunity:
			stats.PathsEvaluated++
			opportunities = append(opportunities, outcomes[i].opp)
		}
	}
	stats.Opportunities = len(opportunities)
	stats.Duration = time.Since(start)
	return opportunities, stats
}

// evaluatePath prices a single path against the snapshot.
func (c *Calculator) evaluatePath(snapshot *domain.MarketSnapshot, enabled map[domain.PoolID]struct{}, path *domain.SwapPath) pathOutcome {
	for _, pool := range path.Pools() {
		if _, ok := enabled[pool.ID]; !ok {
			return pathOutcome{status: outcomeSkipped}
		}
		if _, ok := snapshot.PoolReserves(pool.ID); !ok {
			return pathOutcome{status: outcomeSkipped}
		}
	}

	best := c.searchOptimalInput(path, snapshot)
	if best.err != nil {
		return pathOutcome{status: outcomeFailed}
	}
	if best.negative || best.profit.IsZero() {
		return pathOutcome{status: outcomeNoProfit}
	}

	gasCost, err := c.gasCost(path.Hops(), snapshot)
	if err != nil {
		return pathOutcome{status: outcomeFailed}
	}

	opp := domain.NewArbitrageOpportunity(path, best.input, best.output, best.profit, gasCost, snapshot.BlockNumber)
	if !opp.NetProfit.Gt(c.config.MinProfit) {
		return pathOutcome{status: outcomeNoProfit}
	}
	return pathOutcome{status: outcomeOpportunity, opp: opp}
}

// searchPoint is one probed input with its chained output and signed
// gross profit (output - input).
type searchPoint struct {
	input    *uint256.Int
	output   *uint256.Int
	negative bool
	profit   *uint256.Int // magnitude
	err      error
}

// probe evaluates the gross profit of one input amount.
func (c *Calculator) probe(path *domain.SwapPath, snapshot *domain.MarketSnapshot, input *uint256.Int) searchPoint {
	output, err := amm.PathAmountOut(path, snapshot, input)
	if err != nil {
		return searchPoint{input: input, err: err}
	}
	p := searchPoint{input: input, output: output, profit: new(uint256.Int)}
	if output.Lt(input) {
		p.negative = true
		p.profit.Sub(input, output)
	} else {
		p.profit.Sub(output, input)
	}
	return p
}

// better reports whether a is a strictly better search point than b.
// Failed probes rank below everything.
func better(a, b searchPoint) bool {
	if a.err != nil {
		return false
	}
	if b.err != nil {
		return true
	}
	if a.negative != b.negative {
		return !a.negative
	}
	if a.negative {
		return a.profit.Lt(b.profit)
	}
	return a.profit.Gt(b.profit)
}

// searchOptimalInput maximizes the gross profit over the configured input
// interval with a bounded-iteration ternary search. Gross profit of a
// constant-product chain is unimodal in the input, so the interval can be
// narrowed from whichever probe is worse. Gas cost is a constant per path
// and does not move the maximizer.
func (c *Calculator) searchOptimalInput(path *domain.SwapPath, snapshot *domain.MarketSnapshot) searchPoint {
	left := c.config.MinInput.Clone()
	right := c.config.MaxInput.Clone()

	best := c.probe(path, snapshot, left.Clone())

	width := new(uint256.Int)
	three := uint256.NewInt(3)
	for i := 0; i < c.config.SearchIterations; i++ {
		width.Sub(right, left)
		if !width.Gt(c.config.SearchPrecision) {
			break
		}
		third := new(uint256.Int).Div(width, three)
		mid1 := new(uint256.Int).Add(left, third)
		mid2 := new(uint256.Int).Sub(right, third)

		p1 := c.probe(path, snapshot, mid1)
		p2 := c.probe(path, snapshot, mid2)

		if better(p1, best) {
			best = p1
		}
		if better(p2, best) {
			best = p2
		}

		if better(p1, p2) {
			right = mid2
		} else {
			left = mid1
		}
	}

	return best
}

// gasCost converts the hop-count gas table entry into base-token wei
// through the snapshot's reference price.
func (c *Calculator) gasCost(hops int, snapshot *domain.MarketSnapshot) (*uint256.Int, error) {
	units, ok := c.config.GasUnits[hops]
	if !ok {
		return nil, fmt.Errorf("no gas units for %d-hop path", hops)
	}

	cost := new(uint256.Int)
	if _, overflow := cost.MulOverflow(c.config.GasPriceWei, uint256.NewInt(units)); overflow {
		return nil, amm.ErrOverflow
	}

	if snapshot.BasePerNative == nil {
		return cost, nil
	}
	converted, overflow := new(uint256.Int).MulDivOverflow(cost, snapshot.BasePerNative, oneEther)
	if overflow {
		return nil, amm.ErrOverflow
	}
	return converted, nil
}
