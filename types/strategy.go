package types

// SelectionStrategy chooses a peer for a new guild assignment.
//
// The balancer calls Select only when no active, healthy-owner assignment
// exists (sticky routing short-circuits it otherwise). Implementations:
//   - Priority: primary first, then ascending load, capacity-aware
//   - LeastLoaded: ascending load only
//   - Custom: user-defined algorithms
//
// Strategy implementations should:
//   - Be deterministic (same input → same output)
//   - Handle edge cases (no peers, all saturated)
//   - Be stateless (no side effects)
type SelectionStrategy interface {
	// Select picks a peer from the healthy candidates.
	//
	// candidates contains only healthy peers; maxLoad is the per-peer
	// session capacity. When every candidate is at or above maxLoad the
	// strategy should degrade to the least-loaded candidate rather than
	// refuse service.
	//
	// Parameters:
	//   - candidates: Healthy peer snapshots (order not significant)
	//   - maxLoad: Session capacity per peer
	//
	// Returns:
	//   - Peer: Selected peer
	//   - bool: false when candidates is empty
	Select(candidates []Peer, maxLoad int) (Peer, bool)

	// Name returns the strategy identifier used in configuration and
	// metrics labels.
	Name() string
}
