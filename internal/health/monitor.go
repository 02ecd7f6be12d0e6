// Package health implements the periodic self-reported peer status model.
//
// Every tick the monitor recomputes each peer's status from live signals
// (gateway readiness, session load), persists a heartbeat record, and sweeps
// stale active assignments. Routing never waits on the monitor: it reads the
// best-effort, possibly slightly stale, registry view.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/overtone/peerage/internal/assignstore"
	"github.com/overtone/peerage/internal/registry"
	"github.com/overtone/peerage/types"
)

// Record is the wire form of one peer's persisted heartbeat.
type Record struct {
	PeerID    string           `json:"peerId"`
	Status    types.PeerStatus `json:"status"`
	Load      int              `json:"load"`
	Timestamp time.Time        `json:"timestamp"`
}

// Config carries the monitor's timing and capacity parameters.
type Config struct {
	// Interval is the tick period (typically 30s).
	Interval time.Duration

	// StaleThreshold is the heartbeat age beyond which a peer is forced
	// Offline (typically 60s).
	StaleThreshold time.Duration

	// InactivityThreshold is the assignment idle age swept each tick
	// (typically 300s).
	InactivityThreshold time.Duration

	// MaxSessionsPerPeer is the capacity above which a peer reports InUse.
	MaxSessionsPerPeer int
}

// Monitor runs the heartbeat loop for every local peer.
type Monitor struct {
	cfg     Config
	reg     *registry.Registry
	gateway types.Gateway
	store   *assignstore.Store
	kv      jetstream.KeyValue
	prefix  string
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks
	now     func() time.Time

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a health monitor.
//
// The KV bucket should be configured with TTL ≈ StaleThreshold so records
// of crashed processes expire server-side as well.
//
// Parameters:
//   - cfg: Timing and capacity parameters
//   - reg: Peer registry to read sessions from and write status to
//   - gateway: Connectivity source for readiness checks
//   - store: Assignment store for the stale sweep
//   - kv: JetStream KV bucket for heartbeat records
//   - prefix: Key prefix for heartbeat keys (e.g., "health")
//   - logger: Logger instance
//   - metrics: Metrics collector
//   - hooks: Lifecycle hooks (status change notifications)
func New(
	cfg Config,
	reg *registry.Registry,
	gateway types.Gateway,
	store *assignstore.Store,
	kv jetstream.KeyValue,
	prefix string,
	logger types.Logger,
	metrics types.MetricsCollector,
	hooks *types.Hooks,
) *Monitor {
	return &Monitor{
		cfg:     cfg,
		reg:     reg,
		gateway: gateway,
		store:   store,
		kv:      kv,
		prefix:  prefix,
		logger:  logger,
		metrics: metrics,
		hooks:   hooks,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetClock overrides the time source. Test use only.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Start runs the first tick immediately, then ticks on the configured
// interval until Stop or context cancellation.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()

		return types.ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.Tick(ctx)

	go m.loop(ctx)

	return nil
}

// Stop halts the loop and blocks until it exits.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()

		return
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	<-m.doneCh
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick recomputes and persists every peer's status, then sweeps stale
// assignments. Exposed so tests and operators can force a tick.
//
// Failures are logged and retried on the next tick; a tick never blocks
// command routing.
func (m *Monitor) Tick(ctx context.Context) {
	now := m.now()

	for _, peerID := range m.reg.PeerIDs() {
		status := m.computeStatus(peerID)
		load := m.reg.SessionCount(peerID)

		prev, ok := m.reg.UpdateHealth(peerID, status, load, now)
		if !ok {
			continue
		}

		if prev != status {
			m.logger.Info("peer status changed",
				"peer_id", peerID,
				"from", prev.String(),
				"to", status.String(),
				"load", load,
			)
			m.metrics.RecordPeerStatus(peerID, status)
			m.notifyStatusChange(ctx, peerID, prev, status)
		}

		if err := m.reportStatus(ctx, peerID, status, load, now); err != nil {
			// Retried next tick; the in-memory registry view stays fresh.
			m.logger.Warn("failed to persist heartbeat", "peer_id", peerID, "error", err)
			m.metrics.RecordHeartbeat(peerID, false)

			continue
		}

		m.metrics.RecordHeartbeat(peerID, true)
	}

	m.metrics.RecordActiveSessions(m.reg.TotalSessions())

	released, err := m.store.ReleaseStale(ctx, m.cfg.InactivityThreshold)
	if err != nil {
		m.logger.Warn("stale assignment sweep failed", "error", err)

		return
	}

	m.metrics.RecordStaleSweep(released)
}

// computeStatus derives a peer's status from live signals.
//
// Order matters: an unreachable gateway wins over load, and saturation wins
// over plain availability.
func (m *Monitor) computeStatus(peerID string) types.PeerStatus {
	if !m.gateway.IsReady(peerID) {
		return types.StatusOffline
	}

	if m.reg.SessionCount(peerID) >= m.cfg.MaxSessionsPerPeer {
		return types.StatusInUse
	}

	return types.StatusAvailable
}

// IsStale reports whether a peer's heartbeat is older than the stale
// threshold. Stale peers are treated as Offline by every reader regardless
// of their stored status.
func (m *Monitor) IsStale(peer types.Peer) bool {
	return peer.Stale(m.now(), m.cfg.StaleThreshold)
}

// reportStatus writes the peer's heartbeat record to KV.
func (m *Monitor) reportStatus(ctx context.Context, peerID string, status types.PeerStatus, load int, at time.Time) error {
	rec := Record{PeerID: peerID, Status: status, Load: load, Timestamp: at}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	key := fmt.Sprintf("%s.%s", m.prefix, peerID)
	if _, err := m.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to publish heartbeat for %s: %w", peerID, err)
	}

	return nil
}

// notifyStatusChange fires the status hook in the background.
func (m *Monitor) notifyStatusChange(ctx context.Context, peerID string, from, to types.PeerStatus) {
	if m.hooks == nil || m.hooks.OnPeerStatusChanged == nil {
		return
	}

	go func() {
		if err := m.hooks.OnPeerStatusChanged(ctx, peerID, from, to); err != nil {
			m.logger.Error("peer status hook error", "peer_id", peerID, "error", err)
		}
	}()
}
