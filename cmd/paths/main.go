// Package main enumerates the cyclic paths a market definition yields,
// without touching the chain. Useful for sizing the path set and sanity
// checking a market file before running the monitor.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/Whisker17/swap-path/internal/config"
	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/graph"
)

func main() {
	_ = godotenv.Load()

	marketPath := flag.String("market", envOr("MARKET_CONFIG", "market.json"), "Market definition file")
	hops := flag.String("hops", "3,4", "Comma-separated cycle lengths to enumerate")
	verbose := flag.Bool("v", false, "Print every path, not just the summary")

	flag.Parse()

	logger := log.New(os.Stderr, "[paths] ", log.LstdFlags)

	market, err := config.LoadMarket(*marketPath)
	if err != nil {
		logger.Fatalf("Failed to load market config: %v", err)
	}

	g, err := market.BuildGraph()
	if err != nil {
		logger.Fatalf("Failed to build pool graph: %v", err)
	}

	hopCounts, err := parseHops(*hops)
	if err != nil {
		logger.Fatalf("Invalid --hops: %v", err)
	}

	paths, err := graph.FindCycles(g, market.BaseTokenAddress(), hopCounts)
	if err != nil {
		logger.Fatalf("Path enumeration failed: %v", err)
	}

	tokens := market.TokenTable()
	byHops := make(map[int]int)
	for _, p := range paths {
		byHops[p.Hops()]++
	}

	fmt.Printf("market: %s\n", *marketPath)
	fmt.Printf("base token: %s (%s)\n", tokens[market.BaseTokenAddress()].Label(), market.BaseTokenAddress().Hex())
	fmt.Printf("graph: %d tokens, %d pools\n", g.TokenCount(), g.PoolCount())
	fmt.Printf("paths: %d total\n", len(paths))
	for _, h := range hopCounts {
		fmt.Printf("  %d-hop: %d\n", h, byHops[h])
	}

	if *verbose {
		fmt.Println()
		for _, p := range paths {
			fmt.Printf("%-40s %s\n", routeLabel(p, tokens), p.Signature())
		}
	}
}

func routeLabel(p *domain.SwapPath, tokens map[common.Address]domain.Token) string {
	route := p.Tokens()
	labels := make([]string, len(route))
	for i, addr := range route {
		labels[i] = tokens[addr].Label()
	}
	return strings.Join(labels, ">")
}

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
