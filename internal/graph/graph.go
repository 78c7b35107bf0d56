// Package graph holds the static token/pool topology and the pathfinder
// that enumerates cyclic trading routes over it.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Whisker17/swap-path/internal/domain"
)

var (
	// ErrInvalidPool is returned for malformed pool definitions
	// (missing id, missing token, self-referencing pair). Fatal at startup.
	ErrInvalidPool = errors.New("invalid pool definition")

	// ErrPoolNotFound is returned when toggling an unknown pool.
	ErrPoolNotFound = errors.New("pool not found")
)

// Neighbor is one adjacency entry: the token reachable from a vertex and
// the pool that connects them.
type Neighbor struct {
	Token  common.Address
	PoolID domain.PoolID
}

// PoolGraph is an undirected multigraph: vertices are tokens, edges are
// pools. Its topology changes only on administrative pool add/enable/
// disable, never on reserve updates.
//
// Access follows a reader-writer discipline: the evaluation hot path takes
// short read locks (or copies, via EnabledSet), administrative mutations
// take the rare write lock.
type PoolGraph struct {
	mu    sync.RWMutex
	pools map[domain.PoolID]domain.Pool
	adj   map[common.Address][]Neighbor
}

// New creates an empty pool graph.
func New() *PoolGraph {
	return &PoolGraph{
		pools: make(map[domain.PoolID]domain.Pool),
		adj:   make(map[common.Address][]Neighbor),
	}
}

// AddOrUpdatePool inserts a pool or updates the flags of an existing one.
// The token pair of an existing pool cannot change; pools are never
// deleted, only disabled.
func (g *PoolGraph) AddOrUpdatePool(pool domain.Pool) error {
	if pool.ID == (domain.PoolID{}) {
		return fmt.Errorf("%w: zero pool id", ErrInvalidPool)
	}
	if pool.Token0 == (common.Address{}) || pool.Token1 == (common.Address{}) {
		return fmt.Errorf("%w: pool %s has a zero token", ErrInvalidPool, pool.ID)
	}
	if pool.Token0 == pool.Token1 {
		return fmt.Errorf("%w: pool %s is self-referencing", ErrInvalidPool, pool.ID)
	}
	if pool.FeeNumerator == 0 || pool.FeeDenominator == 0 || pool.FeeNumerator >= pool.FeeDenominator {
		return fmt.Errorf("%w: pool %s has fee %d/%d", ErrInvalidPool, pool.ID, pool.FeeNumerator, pool.FeeDenominator)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.pools[pool.ID]; ok {
		if existing.Token0 != pool.Token0 || existing.Token1 != pool.Token1 {
			return fmt.Errorf("%w: pool %s token pair changed", ErrInvalidPool, pool.ID)
		}
		g.pools[pool.ID] = pool
		return nil
	}

	g.pools[pool.ID] = pool
	g.adj[pool.Token0] = append(g.adj[pool.Token0], Neighbor{Token: pool.Token1, PoolID: pool.ID})
	g.adj[pool.Token1] = append(g.adj[pool.Token1], Neighbor{Token: pool.Token0, PoolID: pool.ID})
	return nil
}

// SetEnabled toggles the administrative enabled flag of a pool. Cached
// swap paths through the pool are not removed; the profit calculator
// treats them as unevaluable while the pool stays disabled.
func (g *PoolGraph) SetEnabled(id domain.PoolID, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool, ok := g.pools[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	pool.Enabled = enabled
	g.pools[id] = pool
	return nil
}

// Neighbors returns a copy of the adjacency list of a token.
func (g *PoolGraph) Neighbors(token common.Address) []Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Neighbor(nil), g.adj[token]...)
}

// Pool returns a copy of the pool with the given id.
func (g *PoolGraph) Pool(id domain.PoolID) (domain.Pool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pool, ok := g.pools[id]
	return pool, ok
}

// Pools returns copies of all pools, ordered by id for determinism.
func (g *PoolGraph) Pools() []domain.Pool {
	g.mu.RLock()
	pools := make([]domain.Pool, 0, len(g.pools))
	for _, p := range g.pools {
		pools = append(pools, p)
	}
	g.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool {
		return pools[i].ID.Hex() < pools[j].ID.Hex()
	})
	return pools
}

// PoolIDs returns all pool ids, ordered for determinism.
func (g *PoolGraph) PoolIDs() []domain.PoolID {
	pools := g.Pools()
	ids := make([]domain.PoolID, len(pools))
	for i, p := range pools {
		ids[i] = p.ID
	}
	return ids
}

// IsEnabled reports whether a pool exists and is enabled.
func (g *PoolGraph) IsEnabled(id domain.PoolID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pool, ok := g.pools[id]
	return ok && pool.Enabled
}

// EnabledSet returns the set of currently enabled pool ids. The copy keeps
// the hot path's critical section bounded: one evaluation pass reads the
// flag state once instead of locking per path.
func (g *PoolGraph) EnabledSet() map[domain.PoolID]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := make(map[domain.PoolID]struct{}, len(g.pools))
	for id, pool := range g.pools {
		if pool.Enabled {
			set[id] = struct{}{}
		}
	}
	return set
}

// TokenCount returns the number of distinct tokens in the graph.
func (g *PoolGraph) TokenCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj)
}

// PoolCount returns the number of pools in the graph.
func (g *PoolGraph) PoolCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.pools)
}
