package types

import "context"

// Gateway is the chat-platform connection boundary.
//
// The gateway delivers inbound commands to every peer and exposes per-peer
// connectivity for health checks. Message delivery, permissions and rate
// limiting live entirely behind this interface; the core only consumes the
// readiness signal.
type Gateway interface {
	// IsReady reports whether the peer's gateway connection is established
	// and usable. A false result forces the peer to StatusOffline on the
	// next health tick.
	IsReady(peerID string) bool
}

// SessionEngine creates voice sessions. Media decoding, streaming and track
// search live behind this interface; the core only does lifecycle
// bookkeeping (assignment records and session tracking).
type SessionEngine interface {
	// Create establishes a voice session for the guild in the given
	// channel on behalf of the peer.
	Create(ctx context.Context, peerID, guildID, channelID string) (Session, error)
}

// Session is a live voice connection owned by one peer for one guild.
type Session interface {
	// ChannelID returns the voice channel the session is bound to.
	ChannelID() string

	// ActiveLoad returns the session's current load contribution
	// (listeners or queued tracks, engine-defined).
	ActiveLoad() int

	// Disconnect leaves the voice channel but keeps the session object
	// reusable.
	Disconnect(ctx context.Context) error

	// Destroy tears the session down permanently.
	Destroy(ctx context.Context) error
}
