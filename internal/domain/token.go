// Package domain contains the pure data types shared across the engine:
// tokens, pools, swap paths, market snapshots and discovered opportunities.
// Types here carry no behavior beyond construction and validation.
package domain

import "github.com/ethereum/go-ethereum/common"

// Token identifies a fungible asset by its on-chain address.
// Immutable once created.
type Token struct {
	Address  common.Address
	Symbol   string // optional, for logs and reports
	Decimals int    // optional, 0 means unknown
}

// NewToken creates a token with metadata.
func NewToken(address common.Address, symbol string, decimals int) Token {
	return Token{Address: address, Symbol: symbol, Decimals: decimals}
}

// Label returns the symbol if known, otherwise the shortened address.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	hex := t.Address.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}
