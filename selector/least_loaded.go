package selector

import (
	"sort"

	"github.com/overtone/peerage/types"
)

// LeastLoaded selects the healthy peer with the fewest active sessions,
// ignoring the primary flag.
//
// This is the "round-robin" strategy in configuration: sorting by ascending
// load and taking the first is a deliberate simplification that favors even
// load over strict rotation, since a rotating pointer would need shared
// mutable state for no distribution benefit.
type LeastLoaded struct{}

var _ types.SelectionStrategy = (*LeastLoaded)(nil)

// NewLeastLoaded creates the least-loaded strategy.
func NewLeastLoaded() *LeastLoaded {
	return &LeastLoaded{}
}

// Name returns the strategy identifier.
func (l *LeastLoaded) Name() string { return "round-robin" }

// Select returns the least-loaded candidate, ID-ordered on ties. Capacity
// is not enforced; the least-loaded peer is returned even when saturated.
func (l *LeastLoaded) Select(candidates []types.Peer, _ /* maxLoad */ int) (types.Peer, bool) {
	if len(candidates) == 0 {
		return types.Peer{}, false
	}

	ordered := make([]types.Peer, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Load != ordered[j].Load {
			return ordered[i].Load < ordered[j].Load
		}

		return ordered[i].ID < ordered[j].ID
	})

	return ordered[0], true
}
