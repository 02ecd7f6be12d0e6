package peerage

import (
	"errors"

	"github.com/overtone/peerage/types"
)

// Sentinel errors returned by the Cluster.
//
// The canonical definitions live in the types subpackage so internal
// components can return them without importing the root package; they are
// re-exported here so callers can write errors.Is(err, peerage.ErrNoPeers).
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrNATSConnectionRequired is returned when the NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrGatewayRequired is returned when the gateway is nil.
	ErrGatewayRequired = errors.New("gateway is required")

	// ErrSessionEngineRequired is returned when the session engine is nil.
	ErrSessionEngineRequired = errors.New("session engine is required")

	// ErrNoPeers is returned when the configuration registers no peers.
	ErrNoPeers = types.ErrNoPeers

	// ErrNoPrimary is returned when no peer is marked primary.
	ErrNoPrimary = types.ErrNoPrimary

	// ErrMultiplePrimaries is returned when more than one peer is marked primary.
	ErrMultiplePrimaries = types.ErrMultiplePrimaries

	// ErrDuplicatePeerID is returned when two peers share an identifier.
	ErrDuplicatePeerID = types.ErrDuplicatePeerID

	// ErrUnknownPeer is returned when an operation names an unregistered peer.
	ErrUnknownPeer = types.ErrUnknownPeer

	// ErrPeerUnhealthy is returned when a forced assignment targets an
	// unhealthy peer.
	ErrPeerUnhealthy = types.ErrPeerUnhealthy

	// ErrNoPeerAvailable is returned when selection finds no healthy peer.
	ErrNoPeerAvailable = types.ErrNoPeerAvailable

	// ErrAlreadyStarted is returned when Start is called on a running cluster.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when operations require a started cluster.
	ErrNotStarted = types.ErrNotStarted

	// ErrAssignmentNotFound is returned when no assignment row exists for a guild.
	ErrAssignmentNotFound = types.ErrAssignmentNotFound

	// ErrSessionExists is returned when BeginSession is called for a guild
	// that already has a session on the peer.
	ErrSessionExists = types.ErrSessionExists

	// ErrSessionNotFound is returned when EndSession is called for a guild
	// with no session on the peer.
	ErrSessionNotFound = types.ErrSessionNotFound
)
