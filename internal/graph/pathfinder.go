package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Whisker17/swap-path/internal/domain"
)

// ErrBaseTokenNotFound is returned when the base token has no edges in the
// graph; no cycle can be anchored at it.
var ErrBaseTokenNotFound = errors.New("base token not found in graph")

// FindCycles enumerates every cyclic swap path of the requested hop counts
// anchored at baseToken, by depth-bounded DFS. Only pools enabled at
// enumeration time are traversed; pools disabled afterwards are handled by
// the profit calculator, not by re-enumeration.
//
// Properties of the result:
//   - every path starts and ends at baseToken,
//   - no token repeats except the shared start/end,
//   - no pool repeats within a path,
//   - paths are deduplicated by canonical signature (ordered pool ids) and
//     sorted by it, so the output is deterministic for a given graph.
//
// The two traversal directions of one cycle have distinct signatures and
// are both kept: they price differently.
//
// This runs once at startup and again only on administrative topology
// changes; the result is immutable and shared read-only by every
// subsequent evaluation pass.
func FindCycles(g *PoolGraph, baseToken common.Address, hopCounts []int) ([]*domain.SwapPath, error) {
	if len(hopCounts) == 0 {
		return nil, errors.New("no hop counts requested")
	}
	wantHops := make(map[int]bool, len(hopCounts))
	maxHops := 0
	for _, h := range hopCounts {
		if h < domain.MinHops || h > domain.MaxHops {
			return nil, fmt.Errorf("unsupported hop count %d, want %d..%d", h, domain.MinHops, domain.MaxHops)
		}
		wantHops[h] = true
		if h > maxHops {
			maxHops = h
		}
	}

	if len(g.Neighbors(baseToken)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBaseTokenNotFound, baseToken.Hex())
	}

	search := &cycleSearch{
		graph:     g,
		base:      baseToken,
		wantHops:  wantHops,
		maxHops:   maxHops,
		visited:   map[common.Address]struct{}{baseToken: {}},
		usedPools: make(map[domain.PoolID]struct{}, maxHops),
		seen:      make(map[string]struct{}),
	}
	search.tokens = append(search.tokens, baseToken)
	search.walk(baseToken)

	sort.Slice(search.found, func(i, j int) bool {
		return search.found[i].Signature() < search.found[j].Signature()
	})
	return search.found, nil
}

// cycleSearch carries the mutable DFS state. It lives for one enumeration
// only and is not safe for concurrent use.
type cycleSearch struct {
	graph    *PoolGraph
	base     common.Address
	wantHops map[int]bool
	maxHops  int

	tokens    []common.Address
	pools     []domain.Pool
	visited   map[common.Address]struct{}
	usedPools map[domain.PoolID]struct{}

	seen  map[string]struct{}
	found []*domain.SwapPath
}

func (s *cycleSearch) walk(current common.Address) {
	depth := len(s.pools)

	for _, n := range s.graph.Neighbors(current) {
		if _, used := s.usedPools[n.PoolID]; used {
			continue
		}
		pool, ok := s.graph.Pool(n.PoolID)
		if !ok || !pool.Enabled {
			continue
		}

		if n.Token == s.base {
			// Closing hop. Emit only at a requested length.
			if s.wantHops[depth+1] {
				s.emit(pool)
			}
			continue
		}

		if depth+1 >= s.maxHops {
			continue // no room left for the closing hop
		}
		if _, dup := s.visited[n.Token]; dup {
			continue
		}

		s.tokens = append(s.tokens, n.Token)
		s.pools = append(s.pools, pool)
		s.visited[n.Token] = struct{}{}
		s.usedPools[pool.ID] = struct{}{}

		s.walk(n.Token)

		delete(s.usedPools, pool.ID)
		delete(s.visited, n.Token)
		s.pools = s.pools[:len(s.pools)-1]
		s.tokens = s.tokens[:len(s.tokens)-1]
	}
}

func (s *cycleSearch) emit(closing domain.Pool) {
	tokens := append(append([]common.Address(nil), s.tokens...), s.base)
	pools := append(append([]domain.Pool(nil), s.pools...), closing)

	path, err := domain.NewSwapPath(tokens, pools)
	if err != nil {
		// The DFS maintains every SwapPath invariant as it extends;
		// a constructor rejection here is a bug, not bad input.
		panic(fmt.Sprintf("pathfinder produced invalid path: %v", err))
	}

	if _, dup := s.seen[path.Signature()]; dup {
		return
	}
	s.seen[path.Signature()] = struct{}{}
	s.found = append(s.found, path)
}
