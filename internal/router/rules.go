package router

// Primary ladder. The primary owns all non-session traffic unconditionally
// and keeps session traffic unless it is busy elsewhere or another peer
// already owns the live session.

// rulePrimaryNonSession: the primary answers every non-session command.
func (r *Router) rulePrimaryNonSession(ec *evalContext) verdict {
	if ec.cmd.SessionCommand {
		return verdictNone
	}

	return verdictHandle
}

// rulePrimaryBusyElsewhere: the primary is already running a session for
// this guild in a different channel than the requester; a failover peer
// must pick the command up.
func (r *Router) rulePrimaryBusyElsewhere(ec *evalContext) verdict {
	channel, ok := ec.ownSession()
	if !ok || channel == ec.cmd.RequesterChannel {
		return verdictNone
	}

	return verdictDefer
}

// rulePrimaryOwnedByOther: the durable record shows another peer owns the
// live session; do not interfere.
func (r *Router) rulePrimaryOwnedByOther(ec *evalContext) verdict {
	asgn := ec.assignment()
	if asgn == nil || !asgn.Active || asgn.PeerID == ec.peer.ID {
		return verdictNone
	}

	return verdictDefer
}

// rulePrimaryDefault: nothing stands in the way; take the lock best-effort
// and handle.
func (r *Router) rulePrimaryDefault(_ *evalContext) verdict {
	return verdictAcquireHandle
}

// Secondary ladder. Secondaries only ever touch session commands, and only
// when the primary cannot: continuity of their own session, durable
// ownership, or deterministic failover.

// ruleSecondaryNonSession: only the primary answers non-session commands.
func (r *Router) ruleSecondaryNonSession(ec *evalContext) verdict {
	if ec.cmd.SessionCommand {
		return verdictNone
	}

	return verdictDefer
}

// ruleSecondaryLockHeld: another peer is already arbitrating this guild.
func (r *Router) ruleSecondaryLockHeld(ec *evalContext) verdict {
	holder, ok := r.locks.Holder(ec.ctx, ec.cmd.GuildID)
	if !ok || holder == ec.peer.ID {
		return verdictNone
	}

	return verdictDefer
}

// ruleSecondaryOwnSession: this peer already runs the guild's session in
// the requester's channel; never abandon an in-progress session to routing
// re-evaluation.
func (r *Router) ruleSecondaryOwnSession(ec *evalContext) verdict {
	channel, ok := ec.ownSession()
	if !ok || channel != ec.cmd.RequesterChannel {
		return verdictNone
	}

	return verdictAcquireOrDefer
}

// ruleSecondaryOwnedActive: the durable record says this peer owns the live
// session.
func (r *Router) ruleSecondaryOwnedActive(ec *evalContext) verdict {
	asgn := ec.assignment()
	if asgn == nil || !asgn.Active || asgn.PeerID != ec.peer.ID {
		return verdictNone
	}

	return verdictAcquireOrDefer
}

// ruleSecondaryNoSignal: without a requester location there is no usable
// failover signal; leave the command to the primary's ladder.
func (r *Router) ruleSecondaryNoSignal(ec *evalContext) verdict {
	if ec.cmd.RequesterChannel != "" {
		return verdictNone
	}

	return verdictDefer
}

// ruleSecondaryFailover: the primary is busy in a different channel, so the
// first available secondary in ascending-ID order takes over. Every peer
// computes the same ordering, so exactly one elects itself; the lock
// resolves any remaining race.
func (r *Router) ruleSecondaryFailover(ec *evalContext) verdict {
	primaryChannel, primaryBusy := r.reg.SessionChannel(r.reg.PrimaryID(), ec.cmd.GuildID)
	if !primaryBusy || primaryChannel == ec.cmd.RequesterChannel {
		// Primary is free or co-located with the requester; it handles.
		return verdictDefer
	}

	first, found := r.firstAvailableSecondary(ec)
	if !found {
		// Every secondary is busy in a different channel than the
		// requester: the command is intentionally dropped. Logged and
		// surfaced so operators can see the degraded condition. Only the
		// lowest-ID secondary reports, so each drop is counted once even
		// though every secondary reaches this rule.
		if ids := r.reg.SecondaryIDs(); len(ids) > 0 && ids[0] == ec.peer.ID {
			r.logger.Warn("no failover peer available, dropping command",
				"guild_id", ec.cmd.GuildID,
				"requester_channel", ec.cmd.RequesterChannel,
			)
			r.metrics.RecordCommandDropped(ec.cmd.GuildID)
			r.notifyDropped(ec)
		}

		return verdictDefer
	}

	if first != ec.peer.ID {
		return verdictDefer
	}

	return verdictAcquireOrDefer
}

// firstAvailableSecondary returns the lowest-ID secondary that is available
// for this guild: no session, or a session already in the requester's
// channel.
func (r *Router) firstAvailableSecondary(ec *evalContext) (string, bool) {
	for _, id := range r.reg.SecondaryIDs() {
		channel, ok := r.reg.SessionChannel(id, ec.cmd.GuildID)
		if !ok || channel == ec.cmd.RequesterChannel {
			return id, true
		}
	}

	return "", false
}

// notifyDropped fires the dropped-command hook in the background.
func (r *Router) notifyDropped(ec *evalContext) {
	if r.hooks == nil || r.hooks.OnCommandDropped == nil {
		return
	}

	guildID := ec.cmd.GuildID
	ctx := ec.ctx

	go func() {
		if err := r.hooks.OnCommandDropped(ctx, guildID); err != nil {
			r.logger.Error("command dropped hook error", "guild_id", guildID, "error", err)
		}
	}()
}
