package locktable_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overtone/peerage/internal/locktable"
	peertest "github.com/overtone/peerage/testing"
)

func TestKV_AcquireRelease(t *testing.T) {
	_, nc := peertest.StartEmbeddedNATS(t)
	kv := peertest.CreateJetStreamKV(t, nc, "locks")
	ctx := t.Context()

	table := locktable.NewKV(kv, "lock", 10*time.Second, peertest.NewTestLogger(t))

	t.Run("first acquire wins", func(t *testing.T) {
		require.True(t, table.Acquire(ctx, "guild-1", "peer-a"))
		require.False(t, table.Acquire(ctx, "guild-1", "peer-b"))
	})

	t.Run("holder reports the owner", func(t *testing.T) {
		owner, ok := table.Holder(ctx, "guild-1")
		require.True(t, ok)
		require.Equal(t, "peer-a", owner)
		require.True(t, table.HasLock(ctx, "guild-1", "peer-a"))
		require.False(t, table.HasLock(ctx, "guild-1", "peer-b"))
	})

	t.Run("re-acquire by owner is idempotent", func(t *testing.T) {
		require.True(t, table.Acquire(ctx, "guild-1", "peer-a"))
	})

	t.Run("release by non-owner is a no-op", func(t *testing.T) {
		table.Release(ctx, "guild-1", "peer-b")
		require.True(t, table.HasLock(ctx, "guild-1", "peer-a"))
	})

	t.Run("release frees the key", func(t *testing.T) {
		table.Release(ctx, "guild-1", "peer-a")
		_, ok := table.Holder(ctx, "guild-1")
		require.False(t, ok)
		require.True(t, table.Acquire(ctx, "guild-1", "peer-b"))
	})
}

func TestKV_ExpiredTakeover(t *testing.T) {
	_, nc := peertest.StartEmbeddedNATS(t)
	kv := peertest.CreateJetStreamKV(t, nc, "locks-expiry")
	ctx := t.Context()

	table := locktable.NewKV(kv, "lock", time.Second, peertest.NewTestLogger(t))

	current := time.Now()
	table.SetClock(func() time.Time { return current })

	require.True(t, table.Acquire(ctx, "guild-1", "peer-a"))
	require.False(t, table.Acquire(ctx, "guild-1", "peer-b"))

	// Past the validity window another peer takes the entry over in place.
	current = current.Add(2 * time.Second)
	require.True(t, table.Acquire(ctx, "guild-1", "peer-b"))

	owner, ok := table.Holder(ctx, "guild-1")
	require.True(t, ok)
	require.Equal(t, "peer-b", owner)

	// The expired owner cannot release the new lock.
	table.Release(ctx, "guild-1", "peer-a")
	require.True(t, table.HasLock(ctx, "guild-1", "peer-b"))
}
