package domain

import "github.com/ethereum/go-ethereum/common"

// PoolID identifies a liquidity pool by its contract address.
type PoolID common.Address

// Hex returns the checksummed hex representation of the pool address.
func (id PoolID) Hex() string {
	return common.Address(id).Hex()
}

// String implements fmt.Stringer.
func (id PoolID) String() string {
	return id.Hex()
}

// Default constant-product fee: 0.3%, expressed as 997/1000.
const (
	DefaultFeeNumerator   = 997
	DefaultFeeDenominator = 1000
)

// Pool is a constant-product liquidity pool trading an ordered token pair.
// Pools are created from configuration at startup and may be enabled or
// disabled at runtime; they are never deleted while the process runs.
// The Enabled flag is administrative and independent of reserve data.
type Pool struct {
	ID             PoolID
	Token0         common.Address
	Token1         common.Address
	FeeNumerator   uint64
	FeeDenominator uint64
	Enabled        bool
}

// NewPool creates an enabled pool with the default 0.3% fee.
func NewPool(id PoolID, token0, token1 common.Address) Pool {
	return Pool{
		ID:             id,
		Token0:         token0,
		Token1:         token1,
		FeeNumerator:   DefaultFeeNumerator,
		FeeDenominator: DefaultFeeDenominator,
		Enabled:        true,
	}
}

// Has reports whether the pool trades the given token.
func (p *Pool) Has(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Other returns the counterpart of the given token in the pair.
// ok is false when the pool does not trade the token at all.
func (p *Pool) Other(token common.Address) (common.Address, bool) {
	switch token {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	}
	return common.Address{}, false
}
