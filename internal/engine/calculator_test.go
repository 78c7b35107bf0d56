package engine

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/graph"
)

func addr(n byte) common.Address {
	var a common.Address
	a[19] = n
	return a
}

func poolID(n byte) domain.PoolID {
	var a common.Address
	a[0] = 0xff
	a[19] = n
	return domain.PoolID(a)
}

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

// triangleFixture builds a three-pool graph around base=addr(1) and the
// 3-hop paths through it (both traversal directions).
func triangleFixture(t *testing.T) (*graph.PoolGraph, []*domain.SwapPath) {
	t.Helper()
	g := graph.New()
	pools := []domain.Pool{
		domain.NewPool(poolID(1), addr(1), addr(2)),
		domain.NewPool(poolID(2), addr(2), addr(3)),
		domain.NewPool(poolID(3), addr(3), addr(1)),
	}
	for _, p := range pools {
		if err := g.AddOrUpdatePool(p); err != nil {
			t.Fatalf("AddOrUpdatePool failed: %v", err)
		}
	}
	paths, err := graph.FindCycles(g, addr(1), []int{3})
	if err != nil {
		t.Fatalf("FindCycles failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(paths))
	}
	return g, paths
}

// imbalancedSnapshot prices B cheap against C in pool 2, which makes the
// base -> B -> C -> base direction profitable.
func imbalancedSnapshot(block uint64) *domain.MarketSnapshot {
	snap := domain.NewMarketSnapshot(block, nil)
	snap.SetReserves(poolID(1), ether(1000), ether(1000))
	snap.SetReserves(poolID(2), ether(1000), ether(4000))
	snap.SetReserves(poolID(3), ether(1000), ether(1000))
	return snap
}

func balancedSnapshot(block uint64) *domain.MarketSnapshot {
	snap := domain.NewMarketSnapshot(block, nil)
	for n := byte(1); n <= 3; n++ {
		snap.SetReserves(poolID(n), ether(1000), ether(1000))
	}
	return snap
}

func newTestCalculator(t *testing.T, g *graph.PoolGraph) *Calculator {
	t.Helper()
	cfg := DefaultConfig(addr(1))
	cfg.Workers = 2
	calc, err := NewCalculator(cfg, g, nil)
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	return calc
}

func TestCalculator_FindsKnownOpportunity(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	opps, stats := calc.Evaluate(context.Background(), imbalancedSnapshot(42), paths)

	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1 (only one traversal direction profits)", len(opps))
	}
	opp := opps[0]

	if opp.BlockNumber != 42 {
		t.Errorf("BlockNumber = %d, want 42", opp.BlockNumber)
	}
	if !opp.GrossProfit.Gt(opp.NetProfit) {
		t.Error("net profit must be below gross profit by the gas cost")
	}
	wantNet := new(uint256.Int).Sub(opp.GrossProfit, opp.GasCost)
	if opp.NetProfit.Cmp(wantNet) != 0 {
		t.Errorf("NetProfit = %s, want gross-gas = %s", opp.NetProfit.Dec(), wantNet.Dec())
	}
	if !opp.ExpectedOutput.Gt(opp.OptimalInput) {
		t.Error("expected output must exceed the optimal input")
	}
	if opp.ProfitMargin <= 0 || opp.ProfitMargin > 100 {
		t.Errorf("ProfitMargin = %f, want (0, 100]", opp.ProfitMargin)
	}

	if stats.PathsTotal != 2 || stats.PathsEvaluated != 2 {
		t.Errorf("stats = %+v, want 2 paths total and evaluated", stats)
	}
	if stats.Opportunities != 1 {
		t.Errorf("stats.Opportunities = %d, want 1", stats.Opportunities)
	}
}

func TestCalculator_BalancedMarketYieldsNothing(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	opps, stats := calc.Evaluate(context.Background(), balancedSnapshot(1), paths)

	if len(opps) != 0 {
		t.Fatalf("opportunities = %d, want 0 in a balanced market", len(opps))
	}
	if stats.PathsEvaluated != 2 || stats.PathsFailed != 0 {
		t.Errorf("stats = %+v, want 2 evaluated, 0 failed", stats)
	}
}

func TestCalculator_SkipsDisabledPool(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)
	if err := g.SetEnabled(poolID(2), false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	opps, stats := calc.Evaluate(context.Background(), imbalancedSnapshot(1), paths)

	if len(opps) != 0 {
		t.Fatalf("opportunities = %d, want 0 with pool 2 disabled", len(opps))
	}
	if stats.PathsSkipped != 2 {
		t.Errorf("PathsSkipped = %d, want 2 (both directions use pool 2)", stats.PathsSkipped)
	}
	if stats.PathsEvaluated != 0 {
		t.Errorf("PathsEvaluated = %d, want 0", stats.PathsEvaluated)
	}
}

func TestCalculator_SkipsPathsMissingFromSnapshot(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snap := imbalancedSnapshot(1)
	delete(snap.Reserves, poolID(3))

	opps, stats := calc.Evaluate(context.Background(), snap, paths)

	if len(opps) != 0 {
		t.Fatalf("opportunities = %d, want 0", len(opps))
	}
	if stats.PathsSkipped != 2 {
		t.Errorf("PathsSkipped = %d, want 2", stats.PathsSkipped)
	}
}

func TestCalculator_ZeroReserveCountsAsFailed(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snap := imbalancedSnapshot(1)
	snap.SetReserves(poolID(2), uint256.NewInt(0), ether(4000))

	opps, stats := calc.Evaluate(context.Background(), snap, paths)

	if len(opps) != 0 {
		t.Fatalf("opportunities = %d, want 0", len(opps))
	}
	if stats.PathsFailed != 2 {
		t.Errorf("PathsFailed = %d, want 2", stats.PathsFailed)
	}
}

func TestCalculator_Deterministic(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)
	snap := imbalancedSnapshot(7)

	first, _ := calc.Evaluate(context.Background(), snap, paths)
	second, _ := calc.Evaluate(context.Background(), snap, paths)

	if len(first) != len(second) {
		t.Fatalf("opportunity counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Path.Signature() != b.Path.Signature() {
			t.Errorf("path %d differs: %s vs %s", i, a.Path.Signature(), b.Path.Signature())
		}
		if a.OptimalInput.Cmp(b.OptimalInput) != 0 || a.NetProfit.Cmp(b.NetProfit) != 0 {
			t.Errorf("path %d amounts differ between identical passes", i)
		}
	}
}

func TestCalculator_CancelledContextDiscardsPass(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opps, _ := calc.Evaluate(ctx, imbalancedSnapshot(1), paths)
	if opps != nil {
		t.Errorf("opportunities = %v, want nil after cancellation", opps)
	}
}

func TestCalculator_GasCostUsesReferencePrice(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snap := imbalancedSnapshot(1)
	snap.BasePerNative = ether(2) // 1 native = 2 base

	opps, _ := calc.Evaluate(context.Background(), snap, paths)
	if len(opps) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opps))
	}

	// 3-hop gas units at the configured gas price, doubled by the price.
	want := new(uint256.Int).Mul(calc.config.GasPriceWei, uint256.NewInt(calc.config.GasUnits[3]))
	want.Mul(want, uint256.NewInt(2))
	if opps[0].GasCost.Cmp(want) != 0 {
		t.Errorf("GasCost = %s, want %s", opps[0].GasCost.Dec(), want.Dec())
	}
}
