package peerage

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

// Peer is the per-worker handle into the cluster.
//
// Every inbound command is offered to every peer; each peer asks its own
// handle ShouldHandle and acts only on true. Session lifecycle (BeginSession,
// EndSession) runs on whichever peer won the command.
//
// All methods are safe for concurrent use.
type Peer struct {
	cluster *Cluster
	id      string

	// sessions maps guildID to the live voice session owned by this peer.
	sessions *xsync.Map[string, Session]
}

func newPeer(c *Cluster, id string) *Peer {
	return &Peer{
		cluster:  c,
		id:       id,
		sessions: xsync.NewMap[string, Session](),
	}
}

// ID returns the stable peer identifier.
func (p *Peer) ID() string {
	return p.id
}

// Info returns a snapshot of the peer's current registry state.
func (p *Peer) Info() PeerInfo {
	info, _ := p.cluster.reg.Peer(p.id)

	return info
}

// Load returns the number of live sessions on this peer.
func (p *Peer) Load() int {
	return p.cluster.reg.SessionCount(p.id)
}

// ShouldHandle reports whether this peer should act on the command.
//
// Every peer evaluates independently against the shared lock table and
// assignment store; exactly one returns true for a session command. Before
// Start (or after Stop) every command is declined.
func (p *Peer) ShouldHandle(ctx context.Context, cmd Command) bool {
	return p.Evaluate(ctx, cmd).Handle
}

// Evaluate runs the routing decision and returns it with the rule that
// produced it, for callers that log or expose the reasoning.
func (p *Peer) Evaluate(ctx context.Context, cmd Command) Decision {
	if !p.cluster.isStarted() {
		return Decision{Handle: false, Rule: "not-started"}
	}

	return p.cluster.router.Evaluate(ctx, p.id, cmd)
}

// BeginSession creates a voice session for the guild in the given channel
// and records it against this peer.
//
// The assignment row is activated and the registry updated only after the
// engine succeeds; on any failure the partially created session is torn
// down before the error is returned, so no path leaks a half-open session.
//
// Parameters:
//   - ctx: Context for cancellation
//   - guildID: Guild the session belongs to
//   - channelID: Voice channel to join
//
// Returns:
//   - Session: Live session handle
//   - error: ErrSessionExists when this peer already has a session for the
//     guild, ErrNotStarted before Start, or the engine's error
func (p *Peer) BeginSession(ctx context.Context, guildID, channelID string) (Session, error) {
	if !p.cluster.isStarted() {
		return nil, ErrNotStarted
	}

	if _, exists := p.sessions.Load(guildID); exists {
		return nil, fmt.Errorf("%w: guild %s on peer %s", ErrSessionExists, guildID, p.id)
	}

	session, err := p.cluster.engine.Create(ctx, p.id, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if _, err := p.cluster.store.Activate(ctx, guildID, channelID); err != nil {
		p.teardown(ctx, guildID, session)

		return nil, fmt.Errorf("failed to activate assignment: %w", err)
	}

	p.sessions.Store(guildID, session)
	p.cluster.reg.SetSession(p.id, guildID, channelID)

	p.cluster.logger.Info("session started",
		"peer_id", p.id,
		"guild_id", guildID,
		"channel_id", channelID,
	)

	return session, nil
}

// EndSession tears down the guild's session on this peer.
//
// Teardown is a single sequential path: deactivate the assignment, release
// the guild lock, disconnect and destroy the session, clear the registry.
// Every step runs even when an earlier one fails; the first error is
// returned after cleanup completes.
//
// Parameters:
//   - ctx: Context for cancellation
//   - guildID: Guild whose session ends
//
// Returns:
//   - error: ErrSessionNotFound when this peer has no session for the guild
func (p *Peer) EndSession(ctx context.Context, guildID string) error {
	session, ok := p.sessions.LoadAndDelete(guildID)
	if !ok {
		return fmt.Errorf("%w: guild %s on peer %s", ErrSessionNotFound, guildID, p.id)
	}

	var firstErr error

	// Sessions only exist after Start, so the balancer is present; the
	// started check is skipped here so shutdown teardown still deactivates
	// rows.
	if p.cluster.balancer != nil {
		if err := p.cluster.balancer.Release(ctx, guildID); err != nil {
			p.cluster.logger.Error("failed to deactivate assignment",
				"peer_id", p.id, "guild_id", guildID, "error", err)
			firstErr = err
		}
	}

	p.cluster.locks.Release(ctx, guildID, p.id)

	if err := session.Disconnect(ctx); err != nil {
		p.cluster.logger.Error("failed to disconnect session",
			"peer_id", p.id, "guild_id", guildID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := session.Destroy(ctx); err != nil {
		p.cluster.logger.Error("failed to destroy session",
			"peer_id", p.id, "guild_id", guildID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	p.cluster.reg.ClearSession(p.id, guildID)

	p.cluster.logger.Info("session ended", "peer_id", p.id, "guild_id", guildID)

	return firstErr
}

// TouchActivity refreshes the assignment's last-activity timestamp so the
// inactivity sweep keeps its hands off a guild that is actively playing.
func (p *Peer) TouchActivity(ctx context.Context, guildID string) error {
	if !p.cluster.isStarted() {
		return ErrNotStarted
	}

	return p.cluster.store.Touch(ctx, guildID)
}

// teardown disposes of a session that never became live.
func (p *Peer) teardown(ctx context.Context, guildID string, session Session) {
	if err := session.Disconnect(ctx); err != nil {
		p.cluster.logger.Warn("failed to disconnect abandoned session",
			"peer_id", p.id, "guild_id", guildID, "error", err)
	}
	if err := session.Destroy(ctx); err != nil {
		p.cluster.logger.Warn("failed to destroy abandoned session",
			"peer_id", p.id, "guild_id", guildID, "error", err)
	}
	p.cluster.locks.Release(ctx, guildID, p.id)
}

// endAllSessions tears down every live session during cluster shutdown.
func (p *Peer) endAllSessions(ctx context.Context) error {
	var firstErr error

	p.sessions.Range(func(guildID string, _ Session) bool {
		if err := p.EndSession(ctx, guildID); err != nil && firstErr == nil {
			firstErr = err
		}

		return true
	})

	return firstErr
}
