// Package config loads the market definition file: the tokens and pools
// the monitor watches, and the base token cycles are anchored at.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Whisker17/swap-path/internal/domain"
	"github.com/Whisker17/swap-path/internal/graph"
)

// TokenConfig describes one token in the market file.
type TokenConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// PoolConfig describes one constant-product pool in the market file.
type PoolConfig struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	// FeeNumerator/FeeDenominator default to 997/1000 when omitted.
	FeeNumerator   uint64 `json:"fee_numerator,omitempty"`
	FeeDenominator uint64 `json:"fee_denominator,omitempty"`
	Disabled       bool   `json:"disabled,omitempty"`
}

// MarketConfig is the parsed market definition.
type MarketConfig struct {
	BaseToken string        `json:"base_token"`
	Tokens    []TokenConfig `json:"tokens"`
	Pools     []PoolConfig  `json:"pools"`
}

// LoadMarket reads and validates a market definition file.
func LoadMarket(path string) (*MarketConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}
	return ParseMarket(data)
}

// ParseMarket parses and validates a market definition.
func ParseMarket(data []byte) (*MarketConfig, error) {
	var cfg MarketConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse market config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks addresses, token references, and fee sanity.
func (c *MarketConfig) Validate() error {
	if len(c.Tokens) == 0 {
		return fmt.Errorf("market config has no tokens")
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("market config has no pools")
	}
	if !common.IsHexAddress(c.BaseToken) {
		return fmt.Errorf("invalid base token address %q", c.BaseToken)
	}

	tokens := make(map[common.Address]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %d: invalid address %q", i, t.Address)
		}
		addr := common.HexToAddress(t.Address)
		if tokens[addr] {
			return fmt.Errorf("token %d: duplicate address %s", i, t.Address)
		}
		tokens[addr] = true
	}
	if !tokens[common.HexToAddress(c.BaseToken)] {
		return fmt.Errorf("base token %s is not in the token list", c.BaseToken)
	}

	pools := make(map[common.Address]bool, len(c.Pools))
	for i, p := range c.Pools {
		if !common.IsHexAddress(p.Address) {
			return fmt.Errorf("pool %d: invalid address %q", i, p.Address)
		}
		addr := common.HexToAddress(p.Address)
		if pools[addr] {
			return fmt.Errorf("pool %d: duplicate address %s", i, p.Address)
		}
		pools[addr] = true

		for _, side := range []string{p.Token0, p.Token1} {
			if !common.IsHexAddress(side) {
				return fmt.Errorf("pool %d (%s): invalid token address %q", i, p.Address, side)
			}
			if !tokens[common.HexToAddress(side)] {
				return fmt.Errorf("pool %d (%s): token %s is not in the token list", i, p.Address, side)
			}
		}
		if strings.EqualFold(p.Token0, p.Token1) {
			return fmt.Errorf("pool %d (%s): token0 and token1 are the same", i, p.Address)
		}
		if (p.FeeNumerator == 0) != (p.FeeDenominator == 0) {
			return fmt.Errorf("pool %d (%s): fee numerator and denominator must be set together", i, p.Address)
		}
		if p.FeeDenominator != 0 && p.FeeNumerator >= p.FeeDenominator {
			return fmt.Errorf("pool %d (%s): fee numerator %d must be below denominator %d", i, p.Address, p.FeeNumerator, p.FeeDenominator)
		}
	}

	return nil
}

// BaseTokenAddress returns the parsed base token address.
func (c *MarketConfig) BaseTokenAddress() common.Address {
	return common.HexToAddress(c.BaseToken)
}

// PoolIDs returns the parsed pool ids in file order.
func (c *MarketConfig) PoolIDs() []domain.PoolID {
	ids := make([]domain.PoolID, 0, len(c.Pools))
	for _, p := range c.Pools {
		ids = append(ids, domain.PoolID(common.HexToAddress(p.Address)))
	}
	return ids
}

// TokenTable returns token metadata keyed by address.
func (c *MarketConfig) TokenTable() map[common.Address]domain.Token {
	out := make(map[common.Address]domain.Token, len(c.Tokens))
	for _, t := range c.Tokens {
		addr := common.HexToAddress(t.Address)
		out[addr] = domain.NewToken(addr, t.Symbol, int(t.Decimals))
	}
	return out
}

// BuildGraph constructs the pool graph from the market definition.
// Validate must have passed first.
func (c *MarketConfig) BuildGraph() (*graph.PoolGraph, error) {
	g := graph.New()
	for _, p := range c.Pools {
		pool := domain.NewPool(
			domain.PoolID(common.HexToAddress(p.Address)),
			common.HexToAddress(p.Token0),
			common.HexToAddress(p.Token1),
		)
		if p.FeeNumerator != 0 {
			pool.FeeNumerator = p.FeeNumerator
			pool.FeeDenominator = p.FeeDenominator
		}
		pool.Enabled = !p.Disabled

		if err := g.AddOrUpdatePool(pool); err != nil {
			return nil, fmt.Errorf("add pool %s: %w", p.Address, err)
		}
	}
	return g, nil
}
