package types

import "context"

// LockTable is the short-lived mutual-exclusion primitive used to arbitrate
// routing races. At most one valid (non-expired) lock exists per guild.
//
// Locks are advisory everywhere except the final routing gate: all other
// checks (assignment lookup, health reads) may observe slightly stale data,
// but "at most one handler proceeds" rests entirely on Acquire's atomic
// check-and-set. There is no waiting or queueing anywhere; a failed Acquire
// means another peer is handling the guild and the caller must not act.
//
// The interface is injectable so the in-memory implementation can later be
// swapped for a store-backed one when peers are split across processes,
// without touching the router.
//
// Implementations can use:
//   - Shared-memory table (built-in, default for co-located peers)
//   - NATS KV optimistic locking (built-in, for split deployments)
type LockTable interface {
	// Acquire attempts to take the lock for guildID on behalf of peerID.
	//
	// Succeeds when no valid lock exists, when the existing lock has
	// expired, or when peerID already holds it (idempotent). Fails without
	// blocking when a different peer holds a valid lock.
	//
	// Returns:
	//   - bool: true if peerID holds the lock after the call
	Acquire(ctx context.Context, guildID, peerID string) bool

	// Release removes the lock only if peerID is the current owner.
	// A no-op otherwise, so a peer whose lock expired and was reacquired
	// by someone else cannot release the new owner's lock.
	Release(ctx context.Context, guildID, peerID string)

	// HasLock reports whether peerID currently owns a valid lock for
	// guildID. Expired entries encountered along the way are deleted.
	HasLock(ctx context.Context, guildID, peerID string) bool

	// Holder returns the current valid lock owner for guildID, lazily
	// expiring stale entries like HasLock.
	//
	// Returns:
	//   - string: Owner peer ID ("" when unlocked)
	//   - bool: true when a valid lock exists
	Holder(ctx context.Context, guildID string) (string, bool)
}
