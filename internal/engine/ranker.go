package engine

import (
	"sort"

	"github.com/Whisker17/swap-path/internal/domain"
)

// Rank orders opportunities by net profit descending; ties break toward
// fewer hops (cheaper and faster to execute), then by path signature so
// the order is fully deterministic. Pure: the input slice is not modified.
func Rank(opportunities []*domain.ArbitrageOpportunity) []*domain.ArbitrageOpportunity {
	ranked := append([]*domain.ArbitrageOpportunity(nil), opportunities...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if cmp := a.NetProfit.Cmp(b.NetProfit); cmp != 0 {
			return cmp > 0
		}
		if a.Path.Hops() != b.Path.Hops() {
			return a.Path.Hops() < b.Path.Hops()
		}
		return a.Path.Signature() < b.Path.Signature()
	})
	return ranked
}
