package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/storage/memory"
)

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a result")
		return Result{}
	}
}

func TestEngine_ProcessesSnapshotsInBlockOrder(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snapshots := make(chan *domain.MarketSnapshot, 4)
	results := make(chan Result, 4)
	oppStore := memory.NewOpportunityStore()
	statsStore := memory.NewEvalStatsStore()

	eng, err := New(Options{
		Calculator:       calc,
		Paths:            paths,
		Snapshots:        snapshots,
		Results:          results,
		BlockInterval:    time.Minute, // keep the staleness timer out of the test
		OpportunityStore: oppStore,
		StatsStore:       statsStore,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	snapshots <- imbalancedSnapshot(100)
	res := waitResult(t, results)
	if res.BlockNumber != 100 {
		t.Fatalf("BlockNumber = %d, want 100", res.BlockNumber)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	if res.Stats.PathsTotal != 2 {
		t.Errorf("Stats.PathsTotal = %d, want 2", res.Stats.PathsTotal)
	}

	// A snapshot at or below the last processed block never produces a
	// result; the next one above it does.
	snapshots <- imbalancedSnapshot(99)
	snapshots <- imbalancedSnapshot(101)
	res = waitResult(t, results)
	if res.BlockNumber != 101 {
		t.Fatalf("BlockNumber = %d, want 101 (block 99 must be discarded)", res.BlockNumber)
	}

	if eng.LastBlock() != 101 {
		t.Errorf("LastBlock = %d, want 101", eng.LastBlock())
	}
	if eng.Stale() {
		t.Error("engine should not be stale right after a pass")
	}
	last, ok := eng.LastResult()
	if !ok || last.BlockNumber != 101 {
		t.Errorf("LastResult = (%v, %v), want block 101", last.BlockNumber, ok)
	}

	// Persistence happened for the processed blocks only.
	rows, err := oppStore.ListByBlock(ctx, 100)
	if err != nil {
		t.Fatalf("ListByBlock failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("stored opportunities for block 100 = %d, want 1", len(rows))
	}
	statRows, err := statsStore.ListRange(ctx, 99, 101)
	if err != nil {
		t.Fatalf("ListRange failed: %v", err)
	}
	if len(statRows) != 2 {
		t.Fatalf("stored stats rows = %d, want 2 (blocks 100 and 101)", len(statRows))
	}
	if statRows[0].BlockNumber != 100 || statRows[1].BlockNumber != 101 {
		t.Errorf("stats rows for blocks %d,%d, want 100,101", statRows[0].BlockNumber, statRows[1].BlockNumber)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestEngine_SnapshotChannelCloseEndsRun(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snapshots := make(chan *domain.MarketSnapshot)
	eng, err := New(Options{
		Calculator:    calc,
		Paths:         paths,
		Snapshots:     snapshots,
		BlockInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	close(snapshots)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on channel close", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after the snapshot channel closed")
	}
}

func TestEngine_FlagsStaleResultsAndRecovers(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)

	snapshots := make(chan *domain.MarketSnapshot, 2)
	results := make(chan Result, 2)
	eng, err := New(Options{
		Calculator:    calc,
		Paths:         paths,
		Snapshots:     snapshots,
		Results:       results,
		BlockInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	snapshots <- imbalancedSnapshot(10)
	waitResult(t, results)
	if eng.Stale() {
		t.Fatal("Stale = true right after a processed snapshot")
	}

	// Three block intervals without a snapshot must trip the watchdog.
	waitStale(t, eng, true)

	snapshots <- imbalancedSnapshot(11)
	res := waitResult(t, results)
	if res.BlockNumber != 11 {
		t.Fatalf("BlockNumber = %d, want 11", res.BlockNumber)
	}
	waitStale(t, eng, false)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
}

func waitStale(t *testing.T, eng *Engine, want bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if eng.Stale() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("Stale did not become %v in time", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_RequiresCoreOptions(t *testing.T) {
	g, paths := triangleFixture(t)
	calc := newTestCalculator(t, g)
	snapshots := make(chan *domain.MarketSnapshot)

	cases := []struct {
		name string
		opts Options
	}{
		{"no calculator", Options{Paths: paths, Snapshots: snapshots}},
		{"no paths", Options{Calculator: calc, Snapshots: snapshots}},
		{"no snapshots", Options{Calculator: calc, Paths: paths}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Error("New accepted incomplete options")
			}
		})
	}
}
