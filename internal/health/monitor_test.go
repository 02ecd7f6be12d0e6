package health_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/overtone/peerage/internal/assignstore"
	"github.com/overtone/peerage/internal/health"
	"github.com/overtone/peerage/internal/metrics"
	"github.com/overtone/peerage/internal/registry"
	peertest "github.com/overtone/peerage/testing"
	"github.com/overtone/peerage/types"
)

type statusChange struct {
	peerID   string
	from, to types.PeerStatus
}

type fixture struct {
	monitor *health.Monitor
	reg     *registry.Registry
	gateway *peertest.FakeGateway
	store   *assignstore.Store
	kv      jetstream.KeyValue

	changes chan statusChange
}

func newFixture(t *testing.T, bucket string, maxSessions int) *fixture {
	t.Helper()

	_, nc := peertest.StartEmbeddedNATS(t)
	kv := peertest.CreateJetStreamKV(t, nc, bucket)
	logger := peertest.NewTestLogger(t)

	reg, err := registry.New([]registry.PeerConfig{
		{ID: "peer-1", Name: "main", ExternalID: "ext-1", Primary: true},
		{ID: "peer-2", Name: "backup-a", ExternalID: "ext-2"},
	})
	require.NoError(t, err)

	f := &fixture{
		reg:     reg,
		gateway: peertest.NewFakeGateway(),
		store:   assignstore.New(kv, "assignment", logger),
		kv:      kv,
		changes: make(chan statusChange, 16),
	}
	hooks := &types.Hooks{
		OnPeerStatusChanged: func(_ context.Context, peerID string, from, to types.PeerStatus) error {
			f.changes <- statusChange{peerID: peerID, from: from, to: to}

			return nil
		},
	}

	f.monitor = health.New(
		health.Config{
			Interval:            100 * time.Millisecond,
			StaleThreshold:      500 * time.Millisecond,
			InactivityThreshold: 2 * time.Second,
			MaxSessionsPerPeer:  maxSessions,
		},
		reg, f.gateway, f.store, kv, "health", logger, metrics.NewNop(), hooks,
	)

	return f
}

func (f *fixture) waitChange(t *testing.T) statusChange {
	t.Helper()
	select {
	case c := <-f.changes:
		return c
	case <-time.After(time.Second):
		t.Fatal("status change hook not invoked")

		return statusChange{}
	}
}

func (f *fixture) readRecord(t *testing.T, peerID string) health.Record {
	t.Helper()

	entry, err := f.kv.Get(t.Context(), "health."+peerID)
	require.NoError(t, err)

	var rec health.Record
	require.NoError(t, json.Unmarshal(entry.Value(), &rec))

	return rec
}

func TestMonitor_Tick(t *testing.T) {
	f := newFixture(t, "monitor-tick", 2)
	ctx := t.Context()

	t.Run("first tick marks ready peers available", func(t *testing.T) {
		f.monitor.Tick(ctx)

		for _, id := range []string{"peer-1", "peer-2"} {
			peer, ok := f.reg.Peer(id)
			require.True(t, ok)
			require.Equal(t, types.StatusAvailable, peer.Status)

			c := f.waitChange(t)
			require.Equal(t, types.StatusStarting, c.from)
			require.Equal(t, types.StatusAvailable, c.to)
		}
	})

	t.Run("persists a heartbeat record per peer", func(t *testing.T) {
		rec := f.readRecord(t, "peer-1")
		require.Equal(t, "peer-1", rec.PeerID)
		require.Equal(t, types.StatusAvailable, rec.Status)
		require.Equal(t, 0, rec.Load)
		require.WithinDuration(t, time.Now(), rec.Timestamp, 5*time.Second)
	})

	t.Run("gateway outage forces offline", func(t *testing.T) {
		f.gateway.SetReady("peer-2", false)
		f.monitor.Tick(ctx)

		peer, _ := f.reg.Peer("peer-2")
		require.Equal(t, types.StatusOffline, peer.Status)

		c := f.waitChange(t)
		require.Equal(t, "peer-2", c.peerID)
		require.Equal(t, types.StatusOffline, c.to)

		require.Equal(t, types.StatusOffline, f.readRecord(t, "peer-2").Status)
	})

	t.Run("recovery flows back to available", func(t *testing.T) {
		f.gateway.SetReady("peer-2", true)
		f.monitor.Tick(ctx)

		c := f.waitChange(t)
		require.Equal(t, "peer-2", c.peerID)
		require.Equal(t, types.StatusAvailable, c.to)
	})

	t.Run("saturation reports in-use", func(t *testing.T) {
		f.reg.SetSession("peer-1", "guild-1", "chan-a")
		f.reg.SetSession("peer-1", "guild-2", "chan-b")
		f.monitor.Tick(ctx)

		peer, _ := f.reg.Peer("peer-1")
		require.Equal(t, types.StatusInUse, peer.Status)

		rec := f.readRecord(t, "peer-1")
		require.Equal(t, types.StatusInUse, rec.Status)
		require.Equal(t, 2, rec.Load)
	})

	t.Run("unchanged status fires no hook", func(t *testing.T) {
		f.monitor.Tick(ctx)

		select {
		case c := <-f.changes:
			t.Fatalf("unexpected status change: %+v", c)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestMonitor_StaleSweep(t *testing.T) {
	f := newFixture(t, "monitor-sweep", 100)
	ctx := t.Context()

	_, err := f.store.GetOrCreate(ctx, "guild-1", "peer-1", "ext-1", types.ReasonAuto)
	require.NoError(t, err)
	_, err = f.store.Activate(ctx, "guild-1", "chan-a")
	require.NoError(t, err)

	// Age the row past the inactivity threshold, then tick with real time.
	past := time.Now().Add(-time.Minute)
	f.store.SetClock(func() time.Time { return past })
	require.NoError(t, f.store.Touch(ctx, "guild-1"))
	f.store.SetClock(time.Now)

	f.monitor.Tick(ctx)

	asgn, err := f.store.Get(ctx, "guild-1")
	require.NoError(t, err)
	require.False(t, asgn.Active)
}

func TestMonitor_Staleness(t *testing.T) {
	f := newFixture(t, "monitor-stale", 100)
	f.monitor.Tick(t.Context())

	peer, _ := f.reg.Peer("peer-1")
	require.False(t, f.monitor.IsStale(peer))

	f.monitor.SetClock(func() time.Time { return time.Now().Add(time.Minute) })
	require.True(t, f.monitor.IsStale(peer))
}

func TestMonitor_StartStop(t *testing.T) {
	f := newFixture(t, "monitor-lifecycle", 100)
	ctx := t.Context()

	require.NoError(t, f.monitor.Start(ctx))
	require.ErrorIs(t, f.monitor.Start(ctx), types.ErrAlreadyStarted)

	// Start ticks synchronously, so the registry is already populated.
	peer, _ := f.reg.Peer("peer-1")
	require.Equal(t, types.StatusAvailable, peer.Status)

	f.monitor.Stop()
	f.monitor.Stop()
}
