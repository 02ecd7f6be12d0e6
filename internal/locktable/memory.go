package locktable

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/overtone/peerage/types"
)

// shardCount is a power of two so shard selection is a cheap mask.
const shardCount = 32

// entry is one ephemeral lock: (guild, owner, acquiredAt).
type entry struct {
	owner      string
	acquiredAt time.Time
}

// shard holds a slice of the key space under its own mutex. Correctness of
// at-most-one-owner depends on the whole check-and-set for a key running
// inside one critical section, which the per-shard mutex provides.
type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// Memory is the in-process lock table shared by co-located peers.
//
// Keys are distributed across shards by xxh3 hash so concurrent routing
// evaluations for different guilds do not contend on one mutex. Expiry is
// lazy: expired entries are replaced on the next Acquire or deleted by the
// next HasLock/Holder that observes them.
type Memory struct {
	shards  [shardCount]shard
	timeout time.Duration
	now     func() time.Time
}

// Compile-time assertion that Memory implements LockTable.
var _ types.LockTable = (*Memory)(nil)

// NewMemory creates an in-memory lock table with the given expiry timeout.
//
// Parameters:
//   - timeout: Lock validity window (typically 10s)
//
// Returns:
//   - *Memory: New lock table instance
func NewMemory(timeout time.Duration) *Memory {
	m := &Memory{timeout: timeout, now: time.Now}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]entry)
	}

	return m
}

// SetClock overrides the time source. Test use only.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Memory) shardFor(guildID string) *shard {
	return &m.shards[xxh3.HashString(guildID)&(shardCount-1)]
}

// Acquire attempts an atomic check-and-set of the lock for guildID.
//
// Succeeds when no entry exists, when the existing entry has expired, or
// when peerID already holds the lock (idempotent). Fails immediately when a
// different peer holds a valid lock; there is no waiting or queueing.
func (m *Memory) Acquire(_ context.Context, guildID, peerID string) bool {
	s := m.shardFor(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()

	e, ok := s.entries[guildID]
	if ok && e.owner != peerID && now.Sub(e.acquiredAt) <= m.timeout {
		return false
	}

	// No entry, expired entry, or re-acquire by the same owner.
	s.entries[guildID] = entry{owner: peerID, acquiredAt: now}

	return true
}

// Release removes the entry only if peerID is the current owner. A no-op
// otherwise, so a peer whose lock expired and was reacquired elsewhere
// cannot remove the new owner's lock.
func (m *Memory) Release(_ context.Context, guildID, peerID string) {
	s := m.shardFor(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[guildID]; ok && e.owner == peerID {
		delete(s.entries, guildID)
	}
}

// HasLock reports whether peerID owns a valid lock for guildID, deleting an
// expired entry if it encounters one.
func (m *Memory) HasLock(ctx context.Context, guildID, peerID string) bool {
	owner, ok := m.Holder(ctx, guildID)

	return ok && owner == peerID
}

// Holder returns the valid lock owner for guildID, lazily expiring stale
// entries.
func (m *Memory) Holder(_ context.Context, guildID string) (string, bool) {
	s := m.shardFor(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[guildID]
	if !ok {
		return "", false
	}

	if m.now().Sub(e.acquiredAt) > m.timeout {
		delete(s.entries, guildID)

		return "", false
	}

	return e.owner, true
}
