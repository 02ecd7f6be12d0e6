// Package router implements the per-command routing decision each peer
// evaluates locally before acting.
//
// The chat platform broadcasts every command to every peer, so each peer
// must independently answer "do I own this, or must I defer". The decision
// is an ordered ladder of named rules evaluated first-match-wins; every
// input except the final lock acquisition is advisory and may be slightly
// stale. There is no waiting and no retry: a peer either proceeds now or
// stays silent for this event.
package router

import (
	"context"
	"errors"

	"github.com/overtone/peerage/internal/natsutil"
	"github.com/overtone/peerage/internal/registry"
	"github.com/overtone/peerage/types"
)

// AssignmentReader is the advisory view of the assignment store the router
// consults. Reads are best-effort; a failed read degrades to "row absent".
type AssignmentReader interface {
	Get(ctx context.Context, guildID string) (*types.Assignment, error)
}

// verdict is the action a matched rule prescribes.
type verdict int

const (
	// verdictNone means the rule did not match; evaluation continues.
	verdictNone verdict = iota

	// verdictHandle proceeds without touching the lock table.
	verdictHandle

	// verdictDefer stays silent for this event.
	verdictDefer

	// verdictAcquireHandle attempts the lock best-effort and proceeds
	// either way. Used only by the primary's default rule, whose
	// deference paths ran earlier in the ladder.
	verdictAcquireHandle

	// verdictAcquireOrDefer proceeds only if the lock is won; losing the
	// race is an expected outcome, not an error.
	verdictAcquireOrDefer
)

// rule is one named predicate in the ladder. Returning verdictNone passes
// evaluation to the next rule.
type rule struct {
	name string
	eval func(*evalContext) verdict
}

// evalContext carries one evaluation's precomputed inputs.
type evalContext struct {
	ctx    context.Context
	peer   types.Peer
	cmd    types.Command
	router *Router

	// asgn is the best-effort assignment row, read lazily on the first
	// rule that consults it. Non-session commands are decided without
	// ever paying the store round-trip. nil when absent or unreadable
	// (an unreadable row is treated as absent rather than failing the
	// command).
	asgn        *types.Assignment
	asgnFetched bool
}

// assignment returns the guild's assignment row, reading it from the store
// on first use and caching the result for the rest of the evaluation.
func (e *evalContext) assignment() *types.Assignment {
	if !e.asgnFetched {
		e.asgn = e.router.fetchAssignment(e.ctx, e.cmd.GuildID)
		e.asgnFetched = true
	}

	return e.asgn
}

// ownSession returns the channel of this peer's session for the guild.
func (e *evalContext) ownSession() (string, bool) {
	return e.router.reg.SessionChannel(e.peer.ID, e.cmd.GuildID)
}

// Router decides, for one peer and one inbound command, whether that peer
// should handle it.
type Router struct {
	reg     *registry.Registry
	locks   types.LockTable
	store   AssignmentReader
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	primaryRules   []rule
	secondaryRules []rule
}

// New creates a router over the cluster's shared state.
//
// Parameters:
//   - reg: Peer registry (session and health views)
//   - locks: Lock table (the authoritative routing gate)
//   - store: Assignment store (advisory reads)
//   - logger: Logger instance
//   - metrics: Metrics collector
//   - hooks: Lifecycle hooks (dropped-command notifications)
func New(
	reg *registry.Registry,
	locks types.LockTable,
	store AssignmentReader,
	logger types.Logger,
	metrics types.MetricsCollector,
	hooks *types.Hooks,
) *Router {
	r := &Router{
		reg:     reg,
		locks:   locks,
		store:   store,
		logger:  logger,
		metrics: metrics,
		hooks:   hooks,
	}

	// The ladders are fixed ordered lists so each tie-break stays
	// auditable and independently testable.
	r.primaryRules = []rule{
		{"primary-non-session", r.rulePrimaryNonSession},
		{"primary-busy-elsewhere", r.rulePrimaryBusyElsewhere},
		{"primary-owned-by-other", r.rulePrimaryOwnedByOther},
		{"primary-default", r.rulePrimaryDefault},
	}
	r.secondaryRules = []rule{
		{"secondary-non-session", r.ruleSecondaryNonSession},
		{"secondary-lock-held", r.ruleSecondaryLockHeld},
		{"secondary-own-session", r.ruleSecondaryOwnSession},
		{"secondary-owned-active", r.ruleSecondaryOwnedActive},
		{"secondary-no-signal", r.ruleSecondaryNoSignal},
		{"secondary-failover", r.ruleSecondaryFailover},
	}

	return r
}

// Evaluate runs the ladder for one peer and returns its decision.
//
// Evaluate never returns an error: store failures degrade to advisory
// defaults and a lock race loss is an expected defer, so command handlers
// only ever see a boolean with the rule that produced it.
func (r *Router) Evaluate(ctx context.Context, peerID string, cmd types.Command) types.Decision {
	peer, ok := r.reg.Peer(peerID)
	if !ok {
		r.logger.Error("routing for unknown peer", "peer_id", peerID, "guild_id", cmd.GuildID)

		return types.Decision{Handle: false, Rule: "unknown-peer"}
	}

	ec := &evalContext{
		ctx:    ctx,
		peer:   peer,
		cmd:    cmd,
		router: r,
	}

	ladder := r.secondaryRules
	if peer.Primary {
		ladder = r.primaryRules
	}

	for _, rl := range ladder {
		v := rl.eval(ec)
		if v == verdictNone {
			continue
		}

		return r.resolve(ec, rl.name, v)
	}

	// Ladders end in catch-all rules; reaching here means a rule set bug.
	r.logger.Error("routing ladder fell through", "peer_id", peerID, "guild_id", cmd.GuildID)

	return types.Decision{Handle: false, Rule: "fallthrough"}
}

// resolve turns a verdict into a final decision, performing the lock
// acquisition for the acquire verdicts.
func (r *Router) resolve(ec *evalContext, ruleName string, v verdict) types.Decision {
	handle := false

	switch v {
	case verdictHandle:
		handle = true

	case verdictDefer:
		handle = false

	case verdictAcquireHandle:
		got := r.locks.Acquire(ec.ctx, ec.cmd.GuildID, ec.peer.ID)
		r.metrics.RecordLockAcquire(got)
		// Best-effort: the primary's deference rules already ran, so it
		// proceeds even when the acquire is lost.
		handle = true

	case verdictAcquireOrDefer:
		got := r.locks.Acquire(ec.ctx, ec.cmd.GuildID, ec.peer.ID)
		r.metrics.RecordLockAcquire(got)
		handle = got

	case verdictNone:
		// Unreachable; resolve is only called on a match.
	}

	r.metrics.RecordRoutingDecision(ruleName, handle)
	r.logger.Debug("routing decision",
		"peer_id", ec.peer.ID,
		"guild_id", ec.cmd.GuildID,
		"rule", ruleName,
		"handle", handle,
	)

	return types.Decision{Handle: handle, Rule: ruleName}
}

// fetchAssignment reads the assignment row best-effort. Transient store
// failures are logged and the row treated as absent.
func (r *Router) fetchAssignment(ctx context.Context, guildID string) *types.Assignment {
	asgn, err := r.store.Get(ctx, guildID)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrAssignmentNotFound):
		case natsutil.IsConnectivityError(err):
			r.logger.Warn("assignment store unreachable, treating row as absent",
				"guild_id", guildID,
				"error", err,
			)
		default:
			r.logger.Warn("assignment unreadable, treating as absent",
				"guild_id", guildID,
				"error", err,
			)
		}

		return nil
	}

	return asgn
}
