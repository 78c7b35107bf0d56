package domain

import (
	"time"

	"github.com/holiman/uint256"
)

// ArbitrageOpportunity is the result record handed to the execution
// collaborator. All amounts are in base-token wei. Never mutated after
// creation.
type ArbitrageOpportunity struct {
	Path           *SwapPath
	OptimalInput   *uint256.Int
	ExpectedOutput *uint256.Int
	GrossProfit    *uint256.Int
	GasCost        *uint256.Int
	NetProfit      *uint256.Int
	// ProfitMargin is net profit as a percentage of gross profit.
	ProfitMargin float64
	// BlockNumber is the snapshot block this opportunity was computed from.
	BlockNumber uint64
	// DiscoveredAt is the discovery wall-clock time (Unix ms).
	DiscoveredAt int64
}

// NewArbitrageOpportunity derives net profit and margin from the gross
// profit and gas cost. Net profit is clamped at zero when gas exceeds the
// gross take; such records are filtered out by the profitability threshold.
func NewArbitrageOpportunity(
	path *SwapPath,
	optimalInput, expectedOutput, grossProfit, gasCost *uint256.Int,
	blockNumber uint64,
) *ArbitrageOpportunity {
	netProfit := uint256.NewInt(0)
	if grossProfit.Gt(gasCost) {
		netProfit.Sub(grossProfit, gasCost)
	}

	margin := 0.0
	if !grossProfit.IsZero() {
		margin = netProfit.Float64() / grossProfit.Float64() * 100.0
	}

	return &ArbitrageOpportunity{
		Path:           path,
		OptimalInput:   optimalInput,
		ExpectedOutput: expectedOutput,
		GrossProfit:    grossProfit,
		GasCost:        gasCost,
		NetProfit:      netProfit,
		ProfitMargin:   margin,
		BlockNumber:    blockNumber,
		DiscoveredAt:   time.Now().UnixMilli(),
	}
}
