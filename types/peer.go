package types

import "time"

// PeerStatus represents the self-reported health of a peer.
//
// Status progresses through a simple lifecycle:
//
//	StatusStarting → StatusAvailable ⇄ StatusInUse
//
// StatusOffline and StatusError are reached when the gateway connection is
// lost or an unrecoverable condition is reported. A peer whose heartbeat is
// stale is treated as StatusOffline regardless of its stored status.
type PeerStatus int

const (
	// StatusStarting indicates the peer process is initializing and not yet
	// ready to accept work.
	StatusStarting PeerStatus = iota

	// StatusAvailable indicates the peer is healthy and under capacity.
	StatusAvailable

	// StatusInUse indicates the peer is healthy but at or above its session
	// capacity. It keeps serving existing sessions but should not be
	// selected for new ones unless every peer is saturated.
	StatusInUse

	// StatusOffline indicates the peer's gateway connection is down or its
	// heartbeat has gone stale.
	StatusOffline

	// StatusError indicates the peer reported an unrecoverable condition.
	StatusError
)

// String returns the string representation of the status.
func (s PeerStatus) String() string {
	switch s {
	case StatusStarting:
		return "Starting"
	case StatusAvailable:
		return "Available"
	case StatusInUse:
		return "InUse"
	case StatusOffline:
		return "Offline"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Healthy reports whether a peer in this status may be selected for new
// sessions or command handling. Only Available and InUse peers are healthy;
// InUse peers remain eligible so capacity degradation can fall back to the
// least-loaded peer instead of refusing service.
func (s PeerStatus) Healthy() bool {
	return s == StatusAvailable || s == StatusInUse
}

// Peer is a read-only snapshot of one worker instance in the cluster.
//
// Exactly one peer cluster-wide is primary. Each peer owns its own health
// record; snapshots handed out by the registry are copies and safe to retain.
type Peer struct {
	// ID is the stable peer identifier. Secondary peers are ordered by
	// ascending ID for deterministic failover.
	ID string `json:"id"`

	// Name is the human-readable peer name.
	Name string `json:"name"`

	// Primary marks the peer that owns all non-session traffic.
	Primary bool `json:"primary"`

	// Status is the last self-reported health status.
	Status PeerStatus `json:"status"`

	// Load is the number of active sessions on the peer.
	Load int `json:"load"`

	// LastHeartbeat is when the peer last reported its status.
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// Stale reports whether the peer's heartbeat is older than threshold at the
// given instant. Stale peers are forced to StatusOffline by readers, which
// guards against a hung peer that stopped ticking but left a fresh-looking
// Available record behind.
func (p Peer) Stale(now time.Time, threshold time.Duration) bool {
	if p.LastHeartbeat.IsZero() {
		return true
	}

	return now.Sub(p.LastHeartbeat) > threshold
}

// EffectiveStatus returns the status with staleness applied.
func (p Peer) EffectiveStatus(now time.Time, threshold time.Duration) PeerStatus {
	if p.Stale(now, threshold) {
		return StatusOffline
	}

	return p.Status
}
