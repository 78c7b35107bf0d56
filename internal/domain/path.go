package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Supported cycle lengths. The pathfinder never produces anything else and
// the SwapPath constructor rejects anything else.
const (
	MinHops = 3
	MaxHops = 4
)

// ErrInvalidPath is returned when a swap path violates a structural
// invariant (length, connectivity, repeated tokens or pools).
var ErrInvalidPath = errors.New("invalid swap path")

// SwapPath is a cyclic trading route: an ordered pool sequence together
// with the token sequence it visits, starting and ending at the base token.
//
// Invariants, enforced by NewSwapPath:
//   - hop count is 3 or 4,
//   - tokens[0] == tokens[last] (the base token) and no other token repeats,
//   - pool i trades exactly tokens[i] and tokens[i+1],
//   - no pool appears twice.
//
// Paths are built once by the pathfinder and shared read-only afterwards.
type SwapPath struct {
	pools     []Pool
	tokens    []common.Address
	signature string
}

// NewSwapPath validates and constructs a swap path. The pools and tokens
// slices are copied; callers may reuse their buffers.
func NewSwapPath(tokens []common.Address, pools []Pool) (*SwapPath, error) {
	hops := len(pools)
	if hops < MinHops || hops > MaxHops {
		return nil, fmt.Errorf("%w: %d hops, want %d..%d", ErrInvalidPath, hops, MinHops, MaxHops)
	}
	if len(tokens) != hops+1 {
		return nil, fmt.Errorf("%w: %d tokens for %d hops", ErrInvalidPath, len(tokens), hops)
	}
	if tokens[0] != tokens[hops] {
		return nil, fmt.Errorf("%w: path does not return to its base token", ErrInvalidPath)
	}

	seenTokens := make(map[common.Address]struct{}, hops)
	for _, t := range tokens[:hops] {
		if _, dup := seenTokens[t]; dup {
			return nil, fmt.Errorf("%w: token %s repeats", ErrInvalidPath, t.Hex())
		}
		seenTokens[t] = struct{}{}
	}

	seenPools := make(map[PoolID]struct{}, hops)
	for i := range pools {
		p := &pools[i]
		if p.Token0 == p.Token1 {
			return nil, fmt.Errorf("%w: pool %s is self-referencing", ErrInvalidPath, p.ID)
		}
		if _, dup := seenPools[p.ID]; dup {
			return nil, fmt.Errorf("%w: pool %s repeats", ErrInvalidPath, p.ID)
		}
		seenPools[p.ID] = struct{}{}
		if !p.Has(tokens[i]) || !p.Has(tokens[i+1]) {
			return nil, fmt.Errorf("%w: pool %s does not trade hop %s -> %s",
				ErrInvalidPath, p.ID, tokens[i].Hex(), tokens[i+1].Hex())
		}
	}

	path := &SwapPath{
		pools:  append([]Pool(nil), pools...),
		tokens: append([]common.Address(nil), tokens...),
	}
	path.signature = computeSignature(path.pools)
	return path, nil
}

// computeSignature joins the ordered pool ids into a canonical key.
// Two paths are the same route iff their signatures are equal.
func computeSignature(pools []Pool) string {
	var b strings.Builder
	for i := range pools {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strings.ToLower(common.Address(pools[i].ID).Hex()))
	}
	return b.String()
}

// Hops returns the number of pool traversals.
func (p *SwapPath) Hops() int { return len(p.pools) }

// Pools returns the ordered pool sequence. The slice must not be modified.
func (p *SwapPath) Pools() []Pool { return p.pools }

// Pool returns the i-th pool of the path.
func (p *SwapPath) Pool(i int) *Pool { return &p.pools[i] }

// Tokens returns the visited token sequence, base token first and last.
// The slice must not be modified.
func (p *SwapPath) Tokens() []common.Address { return p.tokens }

// Base returns the token the cycle starts and ends at.
func (p *SwapPath) Base() common.Address { return p.tokens[0] }

// Signature returns the canonical ordered pool-id key of the path.
func (p *SwapPath) Signature() string { return p.signature }

// ContainsPool reports whether the path traverses the given pool.
func (p *SwapPath) ContainsPool(id PoolID) bool {
	for i := range p.pools {
		if p.pools[i].ID == id {
			return true
		}
	}
	return false
}

// String renders the token route for logs.
func (p *SwapPath) String() string {
	parts := make([]string, len(p.tokens))
	for i, t := range p.tokens {
		parts[i] = t.Hex()
	}
	return strings.Join(parts, " -> ")
}
