// Package engine contains the per-snapshot evaluation pipeline: the profit
// calculator hot path, opportunity ranking, and the run loop that consumes
// market snapshots in block order.
package engine

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
)

// Config is the immutable evaluation configuration. It is passed in at
// construction, never ambient state, so tests can supply synthetic values.
type Config struct {
	// BaseToken anchors every evaluated cycle. All amounts below are in
	// base-token wei.
	BaseToken common.Address

	// HopCounts selects the cycle lengths to precompute, subset of {3,4}.
	HopCounts []int

	// GasUnits maps hop count to the gas required to execute a cycle of
	// that length. Looked up per path, never recomputed.
	GasUnits map[int]uint64

	// GasPriceWei is the assumed price per gas unit, in native wei.
	GasPriceWei *uint256.Int

	// MinProfit is the net-profit threshold below which a path produces
	// no opportunity.
	MinProfit *uint256.Int

	// MinInput and MaxInput bound the ternary search interval.
	MinInput *uint256.Int
	MaxInput *uint256.Int

	// SearchIterations caps the ternary search loop; SearchPrecision
	// stops it early once the interval is narrower. Together they bound
	// the worst-case latency per path.
	SearchIterations int
	SearchPrecision  *uint256.Int

	// Workers sizes the evaluation worker pool. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns production defaults for the given base token:
// search 0.01 to 100 base tokens with 50 iterations and 0.001 precision,
// 0.01 minimum profit.
func DefaultConfig(baseToken common.Address) Config {
	return Config{
		BaseToken: baseToken,
		HopCounts: []int{3, 4},
		GasUnits: map[int]uint64{
			3: 450_000,
			4: 580_000,
		},
		GasPriceWei:      uint256.NewInt(20_000_000), // 0.02 gwei
		MinProfit:        uint256.NewInt(10_000_000_000_000_000),
		MinInput:         uint256.NewInt(10_000_000_000_000_000),
		MaxInput:         mustUint256("100000000000000000000"),
		SearchIterations: 50,
		SearchPrecision:  uint256.NewInt(1_000_000_000_000_000),
		Workers:          0,
	}
}

// Validate checks the configuration. Any failure here is fatal at startup.
func (c *Config) Validate() error {
	if c.BaseToken == (common.Address{}) {
		return errors.New("base token not set")
	}
	if len(c.HopCounts) == 0 {
		return errors.New("no hop counts configured")
	}
	for _, h := range c.HopCounts {
		if h < domain.MinHops || h > domain.MaxHops {
			return fmt.Errorf("unsupported hop count %d", h)
		}
		if _, ok := c.GasUnits[h]; !ok {
			return fmt.Errorf("no gas units configured for %d-hop paths", h)
		}
	}
	if c.GasPriceWei == nil || c.MinProfit == nil {
		return errors.New("gas price and minimum profit must be set")
	}
	if c.MinInput == nil || c.MaxInput == nil || !c.MinInput.Lt(c.MaxInput) {
		return errors.New("search interval must satisfy MinInput < MaxInput")
	}
	if c.MinInput.IsZero() {
		return errors.New("MinInput must be positive")
	}
	if c.SearchIterations <= 0 {
		return errors.New("SearchIterations must be positive")
	}
	if c.SearchPrecision == nil || c.SearchPrecision.IsZero() {
		return errors.New("SearchPrecision must be positive")
	}
	if c.Workers < 0 {
		return errors.New("Workers must not be negative")
	}
	return nil
}

// workers resolves the effective worker pool size.
func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func mustUint256(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic(err)
	}
	return v
}
