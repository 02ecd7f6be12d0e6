// Package balancer implements peer selection and assignment management for
// new and existing guild sessions.
package balancer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/overtone/peerage/internal/assignstore"
	"github.com/overtone/peerage/internal/registry"
	"github.com/overtone/peerage/types"
)

// Config carries the balancer's selection parameters.
type Config struct {
	// MaxSessionsPerPeer is the per-peer capacity passed to the strategy.
	MaxSessionsPerPeer int

	// StaleThreshold is applied when filtering to healthy peers.
	StaleThreshold time.Duration
}

// Balancer obtains and maintains guild ownership.
//
// The central property is sticky routing: an active assignment with a
// healthy owner is touched and returned as-is, never migrated, so a live
// session is not disturbed by re-selection. Selection only runs when there
// is no usable assignment.
type Balancer struct {
	cfg      Config
	reg      *registry.Registry
	store    *assignstore.Store
	strategy types.SelectionStrategy
	logger   types.Logger
	metrics  types.MetricsCollector
	hooks    *types.Hooks
	now      func() time.Time
}

// New creates a balancer.
//
// Parameters:
//   - cfg: Selection parameters
//   - reg: Peer registry
//   - store: Assignment store
//   - strategy: Selection strategy (priority or least-loaded)
//   - logger: Logger instance
//   - metrics: Metrics collector
//   - hooks: Lifecycle hooks (failover notifications)
func New(
	cfg Config,
	reg *registry.Registry,
	store *assignstore.Store,
	strategy types.SelectionStrategy,
	logger types.Logger,
	metrics types.MetricsCollector,
	hooks *types.Hooks,
) *Balancer {
	return &Balancer{
		cfg:      cfg,
		reg:      reg,
		store:    store,
		strategy: strategy,
		logger:   logger,
		metrics:  metrics,
		hooks:    hooks,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (b *Balancer) SetClock(now func() time.Time) {
	b.now = now
}

// SelectPeer runs the strategy over the currently healthy peers.
//
// Returns:
//   - types.Peer: Selected peer
//   - error: types.ErrNoPeerAvailable when no healthy peer exists
func (b *Balancer) SelectPeer(_ context.Context) (types.Peer, error) {
	candidates := b.reg.HealthyPeers(b.now(), b.cfg.StaleThreshold)

	peer, ok := b.strategy.Select(candidates, b.cfg.MaxSessionsPerPeer)
	b.metrics.RecordSelection(b.strategy.Name(), ok)

	if !ok {
		return types.Peer{}, types.ErrNoPeerAvailable
	}

	return peer, nil
}

// Assign obtains or confirms ownership of a guild.
//
// If an active assignment with a healthy owner exists it is touched and
// returned unchanged (sticky routing). Otherwise a peer is selected and the
// row is created or reassigned. The returned error is a sentinel the
// command handler turns into a user-facing message; it is never retried
// automatically.
func (b *Balancer) Assign(ctx context.Context, guildID string) (*types.Assignment, error) {
	existing, err := b.store.Get(ctx, guildID)
	if err != nil && !errors.Is(err, types.ErrAssignmentNotFound) {
		return nil, fmt.Errorf("failed to read assignment: %w", err)
	}

	if existing != nil && existing.Active && b.ownerHealthy(existing.PeerID) {
		if err := b.store.Touch(ctx, guildID); err != nil {
			b.logger.Warn("failed to touch assignment", "guild_id", guildID, "error", err)
		}

		return existing, nil
	}

	peer, err := b.SelectPeer(ctx)
	if err != nil {
		return nil, err
	}

	externalID := b.reg.ExternalID(peer.ID)

	if existing == nil {
		asgn, err := b.store.GetOrCreate(ctx, guildID, peer.ID, externalID, types.ReasonAuto)
		if err != nil {
			return nil, err
		}

		b.logger.Info("assigned guild",
			"guild_id", guildID,
			"peer_id", asgn.PeerID,
			"strategy", b.strategy.Name(),
		)
		b.metrics.RecordAssignmentChange(types.ReasonAuto)

		return asgn, nil
	}

	if existing.PeerID == peer.ID {
		// Same owner, session just isn't live; refresh and reuse.
		if err := b.store.Touch(ctx, guildID); err != nil {
			b.logger.Warn("failed to touch assignment", "guild_id", guildID, "error", err)
		}

		return existing, nil
	}

	// Ownership moves. Reassignment back to the primary is recorded as a
	// priority takeover, everything else as failover.
	reason := types.ReasonFailover
	if peer.Primary {
		reason = types.ReasonPriority
	}

	asgn, err := b.store.Reassign(ctx, guildID, peer.ID, externalID, reason)
	if err != nil {
		return nil, err
	}

	b.logger.Info("reassigned guild",
		"guild_id", guildID,
		"from", existing.PeerID,
		"to", peer.ID,
		"reason", string(reason),
	)
	b.metrics.RecordAssignmentChange(reason)
	b.notifyFailover(ctx, guildID, existing.PeerID, peer.ID, reason)

	return asgn, nil
}

// Release deactivates the assignment for a guild when its session ends.
// A missing row is not an error.
func (b *Balancer) Release(ctx context.Context, guildID string) error {
	if _, err := b.store.Deactivate(ctx, guildID); err != nil {
		if errors.Is(err, types.ErrAssignmentNotFound) {
			return nil
		}

		return fmt.Errorf("failed to release assignment: %w", err)
	}

	return nil
}

// ForceAssign is the administrative override: it moves ownership of a guild
// to the named peer with reason manual.
//
// The target must exist and be healthy. A running session on the old owner
// is not touched; it drains naturally and the next session lands on the new
// owner.
func (b *Balancer) ForceAssign(ctx context.Context, guildID, peerID string) (*types.Assignment, error) {
	peer, ok := b.reg.Peer(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownPeer, peerID)
	}

	if !peer.EffectiveStatus(b.now(), b.cfg.StaleThreshold).Healthy() {
		return nil, fmt.Errorf("%w: %s is %s", types.ErrPeerUnhealthy, peerID, peer.Status.String())
	}

	externalID := b.reg.ExternalID(peerID)

	existing, err := b.store.GetOrCreate(ctx, guildID, peerID, externalID, types.ReasonManual)
	if err != nil {
		return nil, err
	}

	if existing.PeerID == peerID {
		return existing, nil
	}

	asgn, err := b.store.Reassign(ctx, guildID, peerID, externalID, types.ReasonManual)
	if err != nil {
		return nil, err
	}

	b.logger.Info("force-assigned guild",
		"guild_id", guildID,
		"from", existing.PeerID,
		"to", peerID,
	)
	b.metrics.RecordAssignmentChange(types.ReasonManual)
	b.notifyFailover(ctx, guildID, existing.PeerID, peerID, types.ReasonManual)

	return asgn, nil
}

// ownerHealthy reports whether the assignment owner can keep the session.
func (b *Balancer) ownerHealthy(peerID string) bool {
	peer, ok := b.reg.Peer(peerID)
	if !ok {
		return false
	}

	return peer.EffectiveStatus(b.now(), b.cfg.StaleThreshold).Healthy()
}

// notifyFailover fires the failover hook in the background.
func (b *Balancer) notifyFailover(ctx context.Context, guildID, from, to string, reason types.Reason) {
	if b.hooks == nil || b.hooks.OnFailover == nil {
		return
	}

	go func() {
		if err := b.hooks.OnFailover(ctx, guildID, from, to, reason); err != nil {
			b.logger.Error("failover hook error", "guild_id", guildID, "error", err)
		}
	}()
}
