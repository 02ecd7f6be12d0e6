package locktable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/overtone/peerage/types"
)

// KV is a lock table backed by a NATS JetStream KV bucket, for deployments
// where peers run in separate processes and shared memory is unavailable.
//
// Uses atomic KV operations for arbitration:
//   - Create (atomic): acquire when no entry exists
//   - Update (with revision): re-acquire an expired entry in place
//   - Delete: owner-checked release
//
// The bucket should be configured with TTL equal to the lock timeout so
// crashed owners are cleared server-side as well; expiry is still checked
// from the stored timestamp because KV TTL granularity is coarse.
//
// All operations are best-effort per the routing contract: a KV failure
// makes Acquire return false (the caller defers) and Release a no-op.
type KV struct {
	kv      jetstream.KeyValue
	prefix  string
	timeout time.Duration
	logger  types.Logger
	now     func() time.Time
}

var _ types.LockTable = (*KV)(nil)

// lockValue is the wire form of one KV lock entry.
type lockValue struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// NewKV creates a KV-backed lock table.
//
// Parameters:
//   - kv: JetStream KV bucket for lock entries (TTL ≈ timeout)
//   - prefix: Key prefix for lock keys (e.g., "lock")
//   - timeout: Lock validity window
//   - logger: Logger for best-effort failure reporting
//
// Returns:
//   - *KV: New lock table instance
func NewKV(kv jetstream.KeyValue, prefix string, timeout time.Duration, logger types.Logger) *KV {
	return &KV{kv: kv, prefix: prefix, timeout: timeout, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Test use only.
func (k *KV) SetClock(now func() time.Time) {
	k.now = now
}

func (k *KV) keyFor(guildID string) string {
	return fmt.Sprintf("%s.%s", k.prefix, guildID)
}

func (k *KV) encode(peerID string) []byte {
	b, _ := json.Marshal(lockValue{Owner: peerID, AcquiredAt: k.now()})

	return b
}

// Acquire attempts to take the lock via atomic Create, falling back to a
// revision-checked Update when the existing entry is expired or already
// owned by peerID.
func (k *KV) Acquire(ctx context.Context, guildID, peerID string) bool {
	key := k.keyFor(guildID)

	_, err := k.kv.Create(ctx, key, k.encode(peerID))
	if err == nil {
		return true
	}

	if !errors.Is(err, jetstream.ErrKeyExists) {
		k.logger.Warn("lock acquire failed", "guild_id", guildID, "peer_id", peerID, "error", err)

		return false
	}

	entry, err := k.kv.Get(ctx, key)
	if err != nil {
		// Entry vanished between Create and Get; treat as contended.
		return false
	}

	var val lockValue
	if err := json.Unmarshal(entry.Value(), &val); err != nil {
		k.logger.Warn("corrupt lock entry", "guild_id", guildID, "error", err)

		return false
	}

	expired := k.now().Sub(val.AcquiredAt) > k.timeout
	if val.Owner != peerID && !expired {
		return false
	}

	// Same owner re-acquire, or takeover of an expired entry. The revision
	// check makes the takeover atomic: if another peer won the same race,
	// Update fails and we defer.
	if _, err := k.kv.Update(ctx, key, k.encode(peerID), entry.Revision()); err != nil {
		return false
	}

	return true
}

// Release deletes the entry only when peerID is the recorded owner.
func (k *KV) Release(ctx context.Context, guildID, peerID string) {
	key := k.keyFor(guildID)

	entry, err := k.kv.Get(ctx, key)
	if err != nil {
		return
	}

	var val lockValue
	if err := json.Unmarshal(entry.Value(), &val); err != nil || val.Owner != peerID {
		return
	}

	if err := k.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision())); err != nil {
		k.logger.Debug("lock release skipped", "guild_id", guildID, "peer_id", peerID, "error", err)
	}
}

// HasLock reports whether peerID owns a valid lock for guildID.
func (k *KV) HasLock(ctx context.Context, guildID, peerID string) bool {
	owner, ok := k.Holder(ctx, guildID)

	return ok && owner == peerID
}

// Holder returns the valid lock owner, deleting an expired entry when it
// encounters one.
func (k *KV) Holder(ctx context.Context, guildID string) (string, bool) {
	key := k.keyFor(guildID)

	entry, err := k.kv.Get(ctx, key)
	if err != nil {
		return "", false
	}

	var val lockValue
	if err := json.Unmarshal(entry.Value(), &val); err != nil {
		return "", false
	}

	if k.now().Sub(val.AcquiredAt) > k.timeout {
		// Lazy expiry; ignore delete races with a concurrent takeover.
		_ = k.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))

		return "", false
	}

	return val.Owner, true
}
