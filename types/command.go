package types

// Command is the routing-relevant view of one inbound gateway event.
//
// The chat platform delivers every command to every peer's gateway binding
// simultaneously. Each peer evaluates the command locally and at most one
// proceeds; Command carries the three inputs that decision needs.
type Command struct {
	// GuildID is the partition key the command targets.
	GuildID string

	// SessionCommand indicates the command category requires session
	// ownership (play, skip, stop). Non-session commands are answered by
	// the primary peer unconditionally.
	SessionCommand bool

	// RequesterChannel is the voice channel the requesting user is
	// currently in, empty when the requester is not in a channel.
	RequesterChannel string
}

// Decision is the outcome of one peer's local routing evaluation.
//
// Decisions are not persisted; they exist so callers can log which rule
// produced the verdict.
type Decision struct {
	// Handle is true when this peer should act on the command.
	Handle bool

	// Rule names the routing rule that produced the verdict.
	Rule string
}
