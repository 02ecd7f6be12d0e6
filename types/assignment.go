package types

import "time"

// Reason records why an assignment was created or last changed owner.
type Reason string

const (
	// ReasonAuto marks an assignment created by normal selection.
	ReasonAuto Reason = "auto"

	// ReasonManual marks an operator-forced reassignment.
	ReasonManual Reason = "manual"

	// ReasonFailover marks an automatic reassignment away from an
	// unhealthy or busy owner.
	ReasonFailover Reason = "failover"

	// ReasonPriority marks an automatic reassignment back to the primary
	// peer.
	ReasonPriority Reason = "priority"
)

// Assignment is the durable record of which peer owns a guild.
//
// At most one assignment row exists per guild. Rows are never hard-deleted,
// only deactivated, so failover history and reuse are possible. Active=true
// implies a live session exists on PeerID.
type Assignment struct {
	// GuildID is the partition key this assignment covers.
	GuildID string `json:"guildId"`

	// PeerID is the current owner.
	PeerID string `json:"peerId"`

	// ExternalID is the owner's identity on the chat platform (the bot
	// user ID), kept so handlers can address the right gateway account.
	ExternalID string `json:"externalId"`

	// Active indicates a live session exists on PeerID.
	Active bool `json:"active"`

	// ChannelID is the voice channel of the active session, empty when
	// inactive.
	ChannelID string `json:"channelId"`

	// LastActivity is refreshed by Touch and on activation; active rows
	// idle past the inactivity threshold are swept to Active=false.
	LastActivity time.Time `json:"lastActivity"`

	// Reason records why ownership was last set.
	Reason Reason `json:"reason"`

	// PreviousPeerID is the owner before the most recent reassignment,
	// empty for rows that never changed hands.
	PreviousPeerID string `json:"previousPeerId,omitempty"`

	// CreatedAt is when the row was first created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the row was last mutated.
	UpdatedAt time.Time `json:"updatedAt"`
}
