// Package amm implements exact constant-product swap arithmetic on 256-bit
// integers. All functions are pure and safe for concurrent use.
package amm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/Whisker17/swap-path/internal/domain"
)

var (
	// ErrZeroReserve is returned when a pool reserve is zero; the swap
	// formula has no meaningful result in that case.
	ErrZeroReserve = errors.New("zero pool reserve")

	// ErrOverflow is returned when an intermediate product exceeds 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrMissingReserves is returned when the snapshot has no reserve
	// entry for a pool the path traverses.
	ErrMissingReserves = errors.New("missing pool reserves")
)

// AmountOut computes the constant-product swap output for an input of
// amountIn against reserves (reserveIn, reserveOut) with the given
// proportional fee:
//
//	out = (amountIn * feeNum * reserveOut) / (reserveIn * feeDen + amountIn * feeNum)
//
// The computation is exact; rounding happens only in the final division,
// matching the on-chain formula.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeNum, feeDen uint64) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return uint256.NewInt(0), nil
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrZeroReserve
	}

	amountInWithFee := new(uint256.Int)
	if _, overflow := amountInWithFee.MulOverflow(amountIn, uint256.NewInt(feeNum)); overflow {
		return nil, ErrOverflow
	}

	numerator := new(uint256.Int)
	if _, overflow := numerator.MulOverflow(amountInWithFee, reserveOut); overflow {
		return nil, ErrOverflow
	}

	denominator := new(uint256.Int)
	if _, overflow := denominator.MulOverflow(reserveIn, uint256.NewInt(feeDen)); overflow {
		return nil, ErrOverflow
	}
	if _, overflow := denominator.AddOverflow(denominator, amountInWithFee); overflow {
		return nil, ErrOverflow
	}

	return new(uint256.Int).Div(numerator, denominator), nil
}

// PathAmountOut chains AmountOut across every hop of the path, orienting
// each pool's reserves by the path's token sequence. Returns
// ErrMissingReserves when the snapshot lacks a pool of the path.
func PathAmountOut(path *domain.SwapPath, snapshot *domain.MarketSnapshot, amountIn *uint256.Int) (*uint256.Int, error) {
	amount := amountIn
	tokens := path.Tokens()

	for i := 0; i < path.Hops(); i++ {
		pool := path.Pool(i)
		reserves, ok := snapshot.PoolReserves(pool.ID)
		if !ok {
			return nil, ErrMissingReserves
		}

		reserveIn, reserveOut := reserves.Reserve0, reserves.Reserve1
		if tokens[i] == pool.Token1 {
			reserveIn, reserveOut = reserves.Reserve1, reserves.Reserve0
		}

		out, err := AmountOut(amount, reserveIn, reserveOut, pool.FeeNumerator, pool.FeeDenominator)
		if err != nil {
			return nil, err
		}
		amount = out
	}

	return amount, nil
}
