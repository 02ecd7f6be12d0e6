package balancer_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overtone/peerage/internal/assignstore"
	"github.com/overtone/peerage/internal/balancer"
	"github.com/overtone/peerage/internal/metrics"
	"github.com/overtone/peerage/internal/registry"
	"github.com/overtone/peerage/selector"
	peertest "github.com/overtone/peerage/testing"
	"github.com/overtone/peerage/types"
)

// spyStrategy wraps the priority strategy and counts invocations, so tests
// can prove sticky routing never re-selects.
type spyStrategy struct {
	inner types.SelectionStrategy
	calls atomic.Int32
}

func (s *spyStrategy) Name() string { return s.inner.Name() }

func (s *spyStrategy) Select(candidates []types.Peer, maxLoad int) (types.Peer, bool) {
	s.calls.Add(1)

	return s.inner.Select(candidates, maxLoad)
}

type fixture struct {
	bal   *balancer.Balancer
	reg   *registry.Registry
	store *assignstore.Store
	spy   *spyStrategy
	hooks *types.Hooks

	failovers chan string
}

func newFixture(t *testing.T, bucket string) *fixture {
	t.Helper()

	_, nc := peertest.StartEmbeddedNATS(t)
	kv := peertest.CreateJetStreamKV(t, nc, bucket)
	logger := peertest.NewTestLogger(t)

	reg, err := registry.New([]registry.PeerConfig{
		{ID: "peer-1", Name: "main", ExternalID: "ext-1", Primary: true},
		{ID: "peer-2", Name: "backup-a", ExternalID: "ext-2"},
		{ID: "peer-3", Name: "backup-b", ExternalID: "ext-3"},
	})
	require.NoError(t, err)

	f := &fixture{
		reg:       reg,
		store:     assignstore.New(kv, "assignment", logger),
		spy:       &spyStrategy{inner: selector.NewPriority()},
		failovers: make(chan string, 8),
	}
	f.hooks = &types.Hooks{
		OnFailover: func(_ context.Context, guildID, _, _ string, _ types.Reason) error {
			f.failovers <- guildID

			return nil
		},
	}

	f.bal = balancer.New(
		balancer.Config{MaxSessionsPerPeer: 100, StaleThreshold: time.Minute},
		reg, f.store, f.spy, logger, metrics.NewNop(), f.hooks,
	)

	return f
}

// markHealthy reports a fresh Available heartbeat for the given peers.
func (f *fixture) markHealthy(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, ok := f.reg.UpdateHealth(id, types.StatusAvailable, 0, time.Now())
		require.True(t, ok)
	}
}

func TestBalancer_Assign(t *testing.T) {
	f := newFixture(t, "balancer-assign")
	ctx := t.Context()
	f.markHealthy(t, "peer-1", "peer-2", "peer-3")

	t.Run("first assign selects the primary", func(t *testing.T) {
		asgn, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-1", asgn.PeerID)
		require.Equal(t, types.ReasonAuto, asgn.Reason)
		require.Equal(t, int32(1), f.spy.calls.Load())
	})

	t.Run("active assignment with healthy owner is sticky", func(t *testing.T) {
		_, err := f.store.Activate(ctx, "guild-1", "channel-a")
		require.NoError(t, err)

		before := f.spy.calls.Load()
		asgn, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-1", asgn.PeerID)

		// Sticky: the strategy is never consulted for a live assignment.
		require.Equal(t, before, f.spy.calls.Load())
	})

	t.Run("unhealthy owner triggers reassignment", func(t *testing.T) {
		// The primary goes offline; the assignment moves to the best
		// remaining secondary with reason failover.
		_, ok := f.reg.UpdateHealth("peer-1", types.StatusOffline, 0, time.Now())
		require.True(t, ok)

		asgn, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-2", asgn.PeerID)
		require.Equal(t, "peer-1", asgn.PreviousPeerID)
		require.Equal(t, types.ReasonFailover, asgn.Reason)

		select {
		case guildID := <-f.failovers:
			require.Equal(t, "guild-1", guildID)
		case <-time.After(time.Second):
			t.Fatal("failover hook not invoked")
		}
	})

	t.Run("recovered primary takes back with reason priority", func(t *testing.T) {
		f.markHealthy(t, "peer-1")
		_, ok := f.reg.UpdateHealth("peer-2", types.StatusOffline, 0, time.Now())
		require.True(t, ok)

		asgn, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-1", asgn.PeerID)
		require.Equal(t, types.ReasonPriority, asgn.Reason)
	})
}

func TestBalancer_AssignNoPeers(t *testing.T) {
	f := newFixture(t, "balancer-nopeers")
	ctx := t.Context()

	// No heartbeats at all: every peer is Starting and unhealthy.
	_, err := f.bal.Assign(ctx, "guild-1")
	require.ErrorIs(t, err, types.ErrNoPeerAvailable)
}

func TestBalancer_Release(t *testing.T) {
	f := newFixture(t, "balancer-release")
	ctx := t.Context()
	f.markHealthy(t, "peer-1")

	t.Run("missing row is not an error", func(t *testing.T) {
		require.NoError(t, f.bal.Release(ctx, "guild-none"))
	})

	t.Run("deactivates the row", func(t *testing.T) {
		_, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)
		_, err = f.store.Activate(ctx, "guild-1", "channel-a")
		require.NoError(t, err)

		require.NoError(t, f.bal.Release(ctx, "guild-1"))

		asgn, err := f.store.Get(ctx, "guild-1")
		require.NoError(t, err)
		require.False(t, asgn.Active)
	})
}

func TestBalancer_ForceAssign(t *testing.T) {
	f := newFixture(t, "balancer-force")
	ctx := t.Context()
	f.markHealthy(t, "peer-1", "peer-2")

	t.Run("unknown peer", func(t *testing.T) {
		_, err := f.bal.ForceAssign(ctx, "guild-1", "peer-99")
		require.ErrorIs(t, err, types.ErrUnknownPeer)
	})

	t.Run("unhealthy peer", func(t *testing.T) {
		_, err := f.bal.ForceAssign(ctx, "guild-1", "peer-3")
		require.ErrorIs(t, err, types.ErrPeerUnhealthy)
	})

	t.Run("moves ownership with reason manual", func(t *testing.T) {
		_, err := f.bal.Assign(ctx, "guild-1")
		require.NoError(t, err)

		asgn, err := f.bal.ForceAssign(ctx, "guild-1", "peer-2")
		require.NoError(t, err)
		require.Equal(t, "peer-2", asgn.PeerID)
		require.Equal(t, "peer-1", asgn.PreviousPeerID)
		require.Equal(t, types.ReasonManual, asgn.Reason)
	})

	t.Run("creates the row when missing", func(t *testing.T) {
		asgn, err := f.bal.ForceAssign(ctx, "guild-new", "peer-2")
		require.NoError(t, err)
		require.Equal(t, "peer-2", asgn.PeerID)
		require.Equal(t, types.ReasonManual, asgn.Reason)
	})
}
