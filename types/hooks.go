package types

import "context"

// Hooks defines callbacks for cluster lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking routing or the health loop. Hooks receive the cluster's
// lifecycle context which is cancelled during shutdown.
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Make hooks idempotent (may be called multiple times)
//   - Handle errors gracefully (returned errors are logged, not retried)
type Hooks struct {
	// OnFailover is called when ownership of a guild moves between peers,
	// whether automatic or operator-forced.
	OnFailover func(ctx context.Context, guildID, fromPeer, toPeer string, reason Reason) error

	// OnPeerStatusChanged is called when a peer's health status changes.
	OnPeerStatusChanged func(ctx context.Context, peerID string, from, to PeerStatus) error

	// OnCommandDropped is called when no peer can handle a session command
	// because every secondary is busy in a different channel than the
	// requester. This is intentional degraded behavior, surfaced so
	// operators can alert on it.
	OnCommandDropped func(ctx context.Context, guildID string) error
}
