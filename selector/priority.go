package selector

import (
	"sort"

	"github.com/overtone/peerage/types"
)

// Priority selects the primary peer whenever it is healthy and under
// capacity, then falls through secondaries by ascending load.
type Priority struct{}

var _ types.SelectionStrategy = (*Priority)(nil)

// NewPriority creates the priority-with-capacity strategy.
//
// The algorithm:
//  1. Sort candidates primary-first, then by ascending load (ID as the
//     final tie-break for determinism)
//  2. Return the first peer under capacity
//  3. If every peer is at or above capacity, return the least-loaded one
//     anyway rather than refusing service
//
// Returns:
//   - *Priority: Initialized strategy
func NewPriority() *Priority {
	return &Priority{}
}

// Name returns the strategy identifier.
func (p *Priority) Name() string { return "priority" }

// Select picks a peer per the priority ordering.
func (p *Priority) Select(candidates []types.Peer, maxLoad int) (types.Peer, bool) {
	if len(candidates) == 0 {
		return types.Peer{}, false
	}

	ordered := make([]types.Peer, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Primary != ordered[j].Primary {
			return ordered[i].Primary
		}
		if ordered[i].Load != ordered[j].Load {
			return ordered[i].Load < ordered[j].Load
		}

		return ordered[i].ID < ordered[j].ID
	})

	for _, peer := range ordered {
		if peer.Load < maxLoad {
			return peer, true
		}
	}

	// All saturated: degrade to least-loaded instead of refusing.
	least := ordered[0]
	for _, peer := range ordered[1:] {
		if peer.Load < least.Load {
			least = peer
		}
	}

	return least, true
}
