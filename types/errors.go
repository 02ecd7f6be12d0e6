package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the peerage library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). Components should use sentinels for known conditions and wrap
// external errors with context using fmt.Errorf("...: %w", err).

// Cluster errors - public API errors returned by the Cluster.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoPeers is returned when the configuration registers no peers.
	ErrNoPeers = errors.New("no peers registered")

	// ErrNoPrimary is returned when no peer is marked primary.
	ErrNoPrimary = errors.New("no primary peer configured")

	// ErrMultiplePrimaries is returned when more than one peer is marked
	// primary.
	ErrMultiplePrimaries = errors.New("multiple primary peers configured")

	// ErrDuplicatePeerID is returned when two peers share an identifier.
	ErrDuplicatePeerID = errors.New("duplicate peer ID")

	// ErrUnknownPeer is returned when an operation names a peer that is
	// not registered.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrPeerUnhealthy is returned when a forced assignment targets an
	// unhealthy peer.
	ErrPeerUnhealthy = errors.New("peer is not healthy")

	// ErrNoPeerAvailable is returned when selection finds no healthy peer.
	// Callers surface this as a user-visible "no capacity" message; it is
	// not retried automatically.
	ErrNoPeerAvailable = errors.New("no peer available")

	// ErrAlreadyStarted is returned when Start is called on a running
	// cluster.
	ErrAlreadyStarted = errors.New("cluster already started")

	// ErrNotStarted is returned when operations require a started cluster.
	ErrNotStarted = errors.New("cluster not started")
)

// Store errors - assignment store component errors.
var (
	// ErrAssignmentNotFound is returned when no row exists for a guild.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrRevisionConflict is returned when an optimistic update lost a
	// concurrent write race. Callers re-read and retry.
	ErrRevisionConflict = errors.New("assignment revision conflict")

	// ErrConnectivity indicates a NATS/KV connectivity issue, used to
	// distinguish network failures from application errors so routing can
	// fall back to advisory defaults.
	ErrConnectivity = errors.New("connectivity issue")
)

// Session errors.
var (
	// ErrSessionExists is returned when BeginSession is called for a guild
	// that already has a session on this peer.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned when EndSession is called for a guild
	// with no session on this peer.
	ErrSessionNotFound = errors.New("session not found")
)

// IsNoKeysFoundError checks if an error indicates an empty KV bucket.
//
// NATS returns "no keys found" when listing keys of an empty bucket; the
// sweep and stats paths treat that as an empty result, not a failure. The
// error may arrive direct or wrapped, so the message is matched as well.
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "no keys found")
}
