// Package assignstore persists the durable guild-to-peer assignment records.
//
// One JSON row exists per guild in a NATS JetStream KV bucket. Rows are
// never hard-deleted, only deactivated, so failover history survives and a
// guild's row is reused on the next session. Every mutation targets a single
// row; no multi-document transactions are needed.
package assignstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/overtone/peerage/types"
)

// retryAttempts bounds optimistic-concurrency retries on read-modify-write
// operations. Contention on one guild's row is rare (two peers racing a
// reassign), so a small bound suffices.
const retryAttempts = 3

// Store reads and writes assignment rows in a KV bucket.
//
// Read-modify-write operations use the KV revision for optimistic
// concurrency: a concurrent writer invalidates the revision, the update
// fails, and the operation re-reads and retries.
type Store struct {
	kv     jetstream.KeyValue
	prefix string
	logger types.Logger
	now    func() time.Time
}

// New creates an assignment store over the given bucket.
//
// Parameters:
//   - kv: JetStream KV bucket for assignment rows (no TTL; rows persist)
//   - prefix: Key prefix for assignment keys (e.g., "assignment")
//   - logger: Logger for sweep reporting
//
// Returns:
//   - *Store: New store instance
func New(kv jetstream.KeyValue, prefix string, logger types.Logger) *Store {
	return &Store{kv: kv, prefix: prefix, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Test use only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) keyFor(guildID string) string {
	return fmt.Sprintf("%s.%s", s.prefix, guildID)
}

// Get returns the assignment row for a guild.
//
// Returns:
//   - *types.Assignment: The row, nil when absent
//   - error: types.ErrAssignmentNotFound when no row exists
func (s *Store) Get(ctx context.Context, guildID string) (*types.Assignment, error) {
	entry, err := s.kv.Get(ctx, s.keyFor(guildID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, types.ErrAssignmentNotFound
		}

		return nil, fmt.Errorf("failed to get assignment for guild %s: %w", guildID, err)
	}

	var asgn types.Assignment
	if err := json.Unmarshal(entry.Value(), &asgn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment for guild %s: %w", guildID, err)
	}

	return &asgn, nil
}

// GetOrCreate returns the existing row for a guild, or atomically creates
// one owned by peerID.
//
// Idempotent: an existing row is returned unchanged, whatever its owner.
// Reason is only recorded at creation. Two peers racing the first routing
// decision for a guild both end up with the winner's row: the loser's
// Create fails with ErrKeyExists and it re-reads.
func (s *Store) GetOrCreate(ctx context.Context, guildID, peerID, externalID string, reason types.Reason) (*types.Assignment, error) {
	if asgn, err := s.Get(ctx, guildID); err == nil {
		return asgn, nil
	} else if !errors.Is(err, types.ErrAssignmentNotFound) {
		return nil, err
	}

	now := s.now()
	asgn := types.Assignment{
		GuildID:      guildID,
		PeerID:       peerID,
		ExternalID:   externalID,
		Reason:       reason,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	value, err := json.Marshal(asgn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assignment: %w", err)
	}

	if _, err := s.kv.Create(ctx, s.keyFor(guildID), value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			// Lost the creation race; the winner's row is authoritative.
			return s.Get(ctx, guildID)
		}

		return nil, fmt.Errorf("failed to create assignment for guild %s: %w", guildID, err)
	}

	return &asgn, nil
}

// Reassign moves ownership of a guild to a new peer, recording the previous
// owner. Always succeeds when a row exists; this is the only path that
// changes ownership, used by both automatic failover and manual override.
func (s *Store) Reassign(ctx context.Context, guildID, newPeerID, externalID string, reason types.Reason) (*types.Assignment, error) {
	return s.update(ctx, guildID, func(asgn *types.Assignment) {
		if asgn.PeerID != newPeerID {
			asgn.PreviousPeerID = asgn.PeerID
		}
		asgn.PeerID = newPeerID
		asgn.ExternalID = externalID
		asgn.Reason = reason
	})
}

// Activate marks the row active and records the session channel.
func (s *Store) Activate(ctx context.Context, guildID, channelID string) (*types.Assignment, error) {
	return s.update(ctx, guildID, func(asgn *types.Assignment) {
		asgn.Active = true
		asgn.ChannelID = channelID
		asgn.LastActivity = s.now()
	})
}

// Deactivate marks the row inactive and clears the session channel.
// Ownership and history are untouched so the row can be reused.
func (s *Store) Deactivate(ctx context.Context, guildID string) (*types.Assignment, error) {
	return s.update(ctx, guildID, func(asgn *types.Assignment) {
		asgn.Active = false
		asgn.ChannelID = ""
	})
}

// Touch refreshes LastActivity without other side effects, keeping a live
// assignment from being swept.
func (s *Store) Touch(ctx context.Context, guildID string) error {
	_, err := s.update(ctx, guildID, func(asgn *types.Assignment) {
		asgn.LastActivity = s.now()
	})

	return err
}

// ReleaseStale deactivates every active row whose LastActivity is older
// than threshold. Rows are not deleted and ownership does not change; the
// sweep only marks the session as ended so a fresh selection can occur.
//
// Idempotent: deactivating an already-inactive row is a no-op, so running
// the sweep twice produces the same state as once.
//
// Returns:
//   - int: Number of rows deactivated
//   - error: Listing error; per-row failures are logged and skipped
func (s *Store) ReleaseStale(ctx context.Context, threshold time.Duration) (int, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-threshold)
	released := 0

	for _, asgn := range rows {
		if !asgn.Active || !asgn.LastActivity.Before(cutoff) {
			continue
		}

		if _, err := s.Deactivate(ctx, asgn.GuildID); err != nil {
			// Best-effort sweep; the row is retried on the next tick.
			s.logger.Warn("failed to release stale assignment",
				"guild_id", asgn.GuildID,
				"peer_id", asgn.PeerID,
				"error", err,
			)

			continue
		}

		s.logger.Info("released stale assignment",
			"guild_id", asgn.GuildID,
			"peer_id", asgn.PeerID,
			"idle", s.now().Sub(asgn.LastActivity).String(),
		)
		released++
	}

	return released, nil
}

// List returns every assignment row.
func (s *Store) List(ctx context.Context) ([]types.Assignment, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list assignment keys: %w", err)
	}

	var rows []types.Assignment
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // deleted between list and get
		}

		var asgn types.Assignment
		if err := json.Unmarshal(entry.Value(), &asgn); err != nil {
			s.logger.Warn("skipping corrupt assignment row", "key", key, "error", err)

			continue
		}

		rows = append(rows, asgn)
	}

	return rows, nil
}

// Counts returns the total and active assignment row counts.
func (s *Store) Counts(ctx context.Context) (total, active int, err error) {
	rows, err := s.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, asgn := range rows {
		total++
		if asgn.Active {
			active++
		}
	}

	return total, active, nil
}

// update applies mutate to the row under optimistic concurrency.
func (s *Store) update(ctx context.Context, guildID string, mutate func(*types.Assignment)) (*types.Assignment, error) {
	key := s.keyFor(guildID)

	var lastErr error

	for attempt := 0; attempt < retryAttempts; attempt++ {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return nil, types.ErrAssignmentNotFound
			}

			return nil, fmt.Errorf("failed to get assignment for guild %s: %w", guildID, err)
		}

		var asgn types.Assignment
		if err := json.Unmarshal(entry.Value(), &asgn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignment for guild %s: %w", guildID, err)
		}

		mutate(&asgn)
		asgn.UpdatedAt = s.now()

		value, err := json.Marshal(asgn)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal assignment: %w", err)
		}

		if _, err := s.kv.Update(ctx, key, value, entry.Revision()); err != nil {
			// Concurrent writer bumped the revision; re-read and retry.
			lastErr = fmt.Errorf("%w: %w", types.ErrRevisionConflict, err)

			continue
		}

		return &asgn, nil
	}

	return nil, fmt.Errorf("assignment update for guild %s failed after %d attempts: %w", guildID, retryAttempts, lastErr)
}
