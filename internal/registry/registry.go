// Package registry holds the explicitly owned peer and session registry.
//
// There is no ambient global state: a Registry is constructed at cluster
// startup and passed to every component that needs a view of the peers, so
// tests can instantiate isolated clusters side by side.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/overtone/peerage/types"
)

// PeerConfig declares one peer at cluster construction time.
type PeerConfig struct {
	// ID is the stable peer identifier. Secondary peers fail over in
	// ascending ID order.
	ID string `yaml:"id"`

	// Name is the human-readable peer name.
	Name string `yaml:"name"`

	// ExternalID is the peer's bot-user identity on the chat platform.
	ExternalID string `yaml:"externalId"`

	// Primary marks the single primary peer.
	Primary bool `yaml:"primary"`
}

// peerState is the mutable record for one peer. The registry owns all
// mutation; callers only ever see value snapshots.
type peerState struct {
	mu       sync.RWMutex
	info     types.Peer
	external string

	// sessions maps guildID to the voice channel of the live session.
	sessions *xsync.Map[string, string]
}

// Registry tracks every peer in the cluster and the sessions each one is
// running. All methods are safe for concurrent use.
type Registry struct {
	peers       *xsync.Map[string, *peerState]
	primaryID   string
	secondaries []string // ascending ID, fixed at construction
	ordered     []string // all peer IDs, primary first then secondaries
}

// New builds a registry from the configured peers.
//
// Peer misconfiguration is fatal at startup: the cluster refuses to run
// without at least one peer, exactly one primary, and unique IDs.
//
// Parameters:
//   - peers: Declared peers
//
// Returns:
//   - *Registry: Initialized registry
//   - error: types.ErrNoPeers, types.ErrNoPrimary, types.ErrMultiplePrimaries
//     or types.ErrDuplicatePeerID on invalid configuration
func New(peers []PeerConfig) (*Registry, error) {
	if len(peers) == 0 {
		return nil, types.ErrNoPeers
	}

	r := &Registry{peers: xsync.NewMap[string, *peerState]()}

	for _, pc := range peers {
		if _, exists := r.peers.Load(pc.ID); exists {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicatePeerID, pc.ID)
		}

		if pc.Primary {
			if r.primaryID != "" {
				return nil, fmt.Errorf("%w: %s and %s", types.ErrMultiplePrimaries, r.primaryID, pc.ID)
			}
			r.primaryID = pc.ID
		} else {
			r.secondaries = append(r.secondaries, pc.ID)
		}

		r.peers.Store(pc.ID, &peerState{
			info: types.Peer{
				ID:      pc.ID,
				Name:    pc.Name,
				Primary: pc.Primary,
				Status:  types.StatusStarting,
			},
			external: pc.ExternalID,
			sessions: xsync.NewMap[string, string](),
		})
	}

	if r.primaryID == "" {
		return nil, types.ErrNoPrimary
	}

	// Deterministic failover ordering: ascending peer ID.
	sort.Strings(r.secondaries)
	r.ordered = append([]string{r.primaryID}, r.secondaries...)

	return r, nil
}

// Peer returns a snapshot of the peer with the given ID.
func (r *Registry) Peer(id string) (types.Peer, bool) {
	st, ok := r.peers.Load(id)
	if !ok {
		return types.Peer{}, false
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.info, true
}

// ExternalID returns the chat-platform identity of the peer.
func (r *Registry) ExternalID(id string) string {
	st, ok := r.peers.Load(id)
	if !ok {
		return ""
	}

	return st.external
}

// PrimaryID returns the ID of the primary peer.
func (r *Registry) PrimaryID() string {
	return r.primaryID
}

// SecondaryIDs returns the secondary peer IDs in ascending order. The slice
// is shared and must not be mutated.
func (r *Registry) SecondaryIDs() []string {
	return r.secondaries
}

// PeerIDs returns every peer ID, primary first then secondaries ascending.
// The slice is shared and must not be mutated.
func (r *Registry) PeerIDs() []string {
	return r.ordered
}

// Peers returns snapshots of all peers, primary first then secondaries
// ascending.
func (r *Registry) Peers() []types.Peer {
	out := make([]types.Peer, 0, len(r.ordered))
	for _, id := range r.ordered {
		if p, ok := r.Peer(id); ok {
			out = append(out, p)
		}
	}

	return out
}

// HealthyPeers returns snapshots of peers whose effective status (with
// staleness forcing applied) is healthy.
func (r *Registry) HealthyPeers(now time.Time, staleThreshold time.Duration) []types.Peer {
	var out []types.Peer
	for _, p := range r.Peers() {
		if p.EffectiveStatus(now, staleThreshold).Healthy() {
			out = append(out, p)
		}
	}

	return out
}

// UpdateHealth records a peer's self-reported status, load and heartbeat
// time.
//
// Returns:
//   - types.PeerStatus: The previous status
//   - bool: false when the peer is unknown
func (r *Registry) UpdateHealth(id string, status types.PeerStatus, load int, at time.Time) (types.PeerStatus, bool) {
	var prev types.PeerStatus

	st, ok := r.peers.Load(id)
	if !ok {
		return prev, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	prev = st.info.Status
	st.info.Status = status
	st.info.Load = load
	st.info.LastHeartbeat = at

	return prev, true
}

// SetSession records a live session for a peer.
func (r *Registry) SetSession(peerID, guildID, channelID string) {
	if st, ok := r.peers.Load(peerID); ok {
		st.sessions.Store(guildID, channelID)
	}
}

// ClearSession removes the session record for a guild on a peer.
func (r *Registry) ClearSession(peerID, guildID string) {
	if st, ok := r.peers.Load(peerID); ok {
		st.sessions.Delete(guildID)
	}
}

// SessionChannel returns the voice channel of the peer's session for a
// guild, if one exists.
func (r *Registry) SessionChannel(peerID, guildID string) (string, bool) {
	st, ok := r.peers.Load(peerID)
	if !ok {
		return "", false
	}

	return st.sessions.Load(guildID)
}

// SessionCount returns the number of live sessions on a peer.
func (r *Registry) SessionCount(peerID string) int {
	st, ok := r.peers.Load(peerID)
	if !ok {
		return 0
	}

	return st.sessions.Size()
}

// TotalSessions returns the number of live sessions across all peers.
func (r *Registry) TotalSessions() int {
	total := 0
	for _, id := range r.ordered {
		total += r.SessionCount(id)
	}

	return total
}
