// Package main runs the live arbitrage monitor: it builds the pool graph
// from the market file, precomputes cyclic paths anchored at the base
// token, and evaluates every path against each new block's reserve
// snapshot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"

	"github.com/Whisker17/swap-path/internal/config"
	"github.com/Whisker17/swap-path/internal/datasync"
	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/engine"
	"github.com/Whisker17/swap-path/internal/graph"
	"github.com/Whisker17/swap-path/internal/observability"
	"github.com/Whisker17/swap-path/internal/storage"
	chstore "github.com/Whisker17/swap-path/internal/storage/clickhouse"
	"github.com/Whisker17/swap-path/internal/storage/memory"
	pgstore "github.com/Whisker17/swap-path/internal/storage/postgres"
)

// Monitor holds the wired components and run state for the /status
// endpoint.
type Monitor struct {
	eng     *engine.Engine
	paths   int
	started time.Time
}

type stores struct {
	opportunities storage.OpportunityStore
	stats         storage.EvalStatsStore
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	marketPath := flag.String("market", envOr("MARKET_CONFIG", "market.json"), "Market definition file (tokens, pools, base token)")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for opportunity history")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for evaluation stats")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	useStub := flag.Bool("use-stub", false, "Use the synthetic snapshot producer instead of chain access")
	hops := flag.String("hops", "3,4", "Comma-separated cycle lengths to precompute")
	minProfit := flag.String("min-profit", "", "Net profit threshold in base-token wei (decimal)")
	basePerNative := flag.String("base-per-native", "1000000000000000000", "Base-token wei per native token, 1e18 scaled")
	blockInterval := flag.Duration("block-interval", 2*time.Second, "Expected block cadence; staleness trips at 3x")
	workers := flag.Int("workers", 0, "Evaluation worker pool size (0 = GOMAXPROCS)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	topLog := flag.Int("top", 3, "Opportunities to log per block")

	flag.Parse()

	logger := log.New(os.Stdout, "[monitor] ", log.LstdFlags|log.Lshortfile)

	if !*useStub && *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required (or use --use-stub)")
	}
	if !*useStub && *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required (or use --use-stub)")
	}

	market, err := config.LoadMarket(*marketPath)
	if err != nil {
		logger.Fatalf("Failed to load market config: %v", err)
	}

	g, err := market.BuildGraph()
	if err != nil {
		logger.Fatalf("Failed to build pool graph: %v", err)
	}
	logger.Printf("Pool graph: %d tokens, %d pools", g.TokenCount(), g.PoolCount())

	cfg := engine.DefaultConfig(market.BaseTokenAddress())
	if cfg.HopCounts, err = parseHops(*hops); err != nil {
		logger.Fatalf("Invalid --hops: %v", err)
	}
	if *minProfit != "" {
		v, err := uint256.FromDecimal(*minProfit)
		if err != nil {
			logger.Fatalf("Invalid --min-profit: %v", err)
		}
		cfg.MinProfit = v
	}
	cfg.Workers = *workers

	paths, err := graph.FindCycles(g, cfg.BaseToken, cfg.HopCounts)
	if err != nil {
		logger.Fatalf("Path precomputation failed: %v", err)
	}
	if len(paths) == 0 {
		logger.Fatal("No cyclic paths found through the base token; check the market config")
	}
	logger.Printf("Precomputed %d cyclic paths through %s", len(paths), cfg.BaseToken.Hex())

	calc, err := engine.NewCalculator(cfg, g, logger)
	if err != nil {
		logger.Fatalf("Failed to create calculator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	snapshots := make(chan *domain.MarketSnapshot, 4)
	results := make(chan engine.Result, 4)

	eng, err := engine.New(engine.Options{
		Calculator:       calc,
		Paths:            paths,
		Snapshots:        snapshots,
		Results:          results,
		BlockInterval:    *blockInterval,
		Logger:           logger,
		Metrics:          metrics,
		OpportunityStore: st.opportunities,
		StatsStore:       st.stats,
	})
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	monitor := &Monitor{eng: eng, paths: len(paths), started: time.Now()}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing exit", sig)
		os.Exit(1)
	}()

	go monitor.startHTTPServer(*metricsAddr, logger)
	go logResults(ctx, results, market, *topLog, logger)

	errCh := make(chan error, 2)

	go func() {
		if err := runProducer(ctx, producerOptions{
			useStub:       *useStub,
			rpcEndpoint:   *rpcEndpoint,
			wsEndpoint:    *wsEndpoint,
			basePerNative: *basePerNative,
			blockInterval: *blockInterval,
			market:        market,
			out:           snapshots,
			metrics:       metrics,
		}); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("producer: %w", err)
		}
	}()

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("engine: %w", err)
		}
		cancel()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Printf("Fatal component error: %v", err)
		cancel()
	}

	logger.Println("Shutdown complete")
}

type producerOptions struct {
	useStub       bool
	rpcEndpoint   string
	wsEndpoint    string
	basePerNative string
	blockInterval time.Duration
	market        *config.MarketConfig
	out           chan *domain.MarketSnapshot
	metrics       *observability.Metrics
}

// runProducer starts the snapshot source: either the live WS+RPC pipeline
// or the synthetic stub.
func runProducer(ctx context.Context, opts producerOptions) error {
	basePerNative, err := uint256.FromDecimal(opts.basePerNative)
	if err != nil {
		return fmt.Errorf("invalid --base-per-native: %w", err)
	}

	dsLogger := log.New(os.Stdout, "[datasync] ", log.LstdFlags|log.Lshortfile)

	if opts.useStub {
		stub, err := datasync.NewStubProducer(datasync.StubProducerOptions{
			Pools:         opts.market.PoolIDs(),
			Out:           opts.out,
			BasePerNative: basePerNative,
			Interval:      opts.blockInterval,
			Logger:        dsLogger,
			Metrics:       opts.metrics,
		})
		if err != nil {
			return err
		}
		return stub.Run(ctx)
	}

	client, err := ethclient.DialContext(ctx, opts.rpcEndpoint)
	if err != nil {
		return fmt.Errorf("dial rpc endpoint: %w", err)
	}
	defer client.Close()

	reader, err := datasync.NewEthReserveReader(client)
	if err != nil {
		return err
	}

	aggregator, err := datasync.NewAggregator(datasync.AggregatorOptions{
		Source:        reader,
		Pools:         opts.market.PoolIDs(),
		BasePerNative: basePerNative,
		Logger:        dsLogger,
		Metrics:       opts.metrics,
	})
	if err != nil {
		return err
	}

	heads := datasync.NewHeadClient(opts.wsEndpoint, nil, dsLogger, opts.metrics)

	producer, err := datasync.NewProducer(datasync.ProducerOptions{
		Heads:      heads,
		Aggregator: aggregator,
		Out:        opts.out,
		Logger:     dsLogger,
		Metrics:    opts.metrics,
	})
	if err != nil {
		return err
	}
	return producer.Run(ctx)
}

// logResults prints the top opportunities of each processed block.
func logResults(ctx context.Context, results <-chan engine.Result, market *config.MarketConfig, top int, logger *log.Logger) {
	tokens := market.TokenTable()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if len(res.Opportunities) == 0 {
				continue
			}
			limit := top
			if limit > len(res.Opportunities) {
				limit = len(res.Opportunities)
			}
			for i := 0; i < limit; i++ {
				opp := res.Opportunities[i]
				logger.Printf("block %d #%d: %s net=%s margin=%.4f%% input=%s",
					res.BlockNumber, i+1, routeLabel(opp, tokens),
					opp.NetProfit.Dec(), opp.ProfitMargin, opp.OptimalInput.Dec())
			}
		}
	}
}

// routeLabel renders a path as BASE>TOK>..>BASE using configured symbols.
func routeLabel(opp *domain.ArbitrageOpportunity, tokens map[common.Address]domain.Token) string {
	route := opp.Path.Tokens()
	labels := make([]string, len(route))
	for i, addr := range route {
		labels[i] = tokens[addr].Label()
	}
	return strings.Join(labels, ">")
}

// createStores wires the optional persistence backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*stores, func(), error) {
	if useMemory || (postgresDSN == "" && clickhouseDSN == "") {
		return &stores{
			opportunities: memory.NewOpportunityStore(),
			stats:         memory.NewEvalStatsStore(),
		}, func() {}, nil
	}

	st := &stores{}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		st.opportunities = pgstore.NewOpportunityStore(pool)
	} else {
		st.opportunities = memory.NewOpportunityStore()
	}

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		if err := conn.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ensure clickhouse schema: %w", err)
		}
		st.stats = chstore.NewEvalStatsStore(conn)
	} else {
		st.stats = memory.NewEvalStatsStore()
	}

	return st, cleanup, nil
}

// startHTTPServer serves health, metrics and status.
func (m *Monitor) startHTTPServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", m.handleStatus)

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Paths         int    `json:"paths"`
	LastBlock     uint64 `json:"last_block"`
	Stale         bool   `json:"stale"`
	Opportunities int    `json:"last_opportunities"`
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(m.started).String(),
		Paths:     m.paths,
		LastBlock: m.eng.LastBlock(),
		Stale:     m.eng.Stale(),
	}
	if res, ok := m.eng.LastResult(); ok {
		resp.Opportunities = len(res.Opportunities)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// parseHops parses the --hops flag.
func parseHops(s string) ([]int, error) {
	var hops []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse hop count %q: %w", part, err)
		}
		hops = append(hops, h)
	}
	if len(hops) == 0 {
		return nil, fmt.Errorf("no hop counts given")
	}
	return hops, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
