package peerage

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	peertest "github.com/overtone/peerage/testing"
)

type clusterFixture struct {
	cluster *Cluster
	conn    *nats.Conn
	gateway *peertest.FakeGateway
	engine  *peertest.FakeEngine
}

func newClusterFixture(t *testing.T, mutate func(*Config)) *clusterFixture {
	t.Helper()

	_, nc := peertest.StartEmbeddedNATS(t)

	cfg := validTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	f := &clusterFixture{
		conn:    nc,
		gateway: peertest.NewFakeGateway(),
		engine:  peertest.NewFakeEngine(),
	}

	cluster, err := NewCluster(&cfg, nc, f.gateway, f.engine,
		WithLogger(peertest.NewTestLogger(t)),
	)
	require.NoError(t, err)
	f.cluster = cluster

	return f
}

// start starts the cluster and registers a best-effort stop for cleanup.
func (f *clusterFixture) start(t *testing.T) {
	t.Helper()

	require.NoError(t, f.cluster.Start(t.Context()))
	t.Cleanup(func() {
		// Tests that stop explicitly make this a double stop; ignore it.
		_ = f.cluster.Stop(t.Context())
	})
}

func TestNewCluster_Validation(t *testing.T) {
	_, nc := peertest.StartEmbeddedNATS(t)
	gw := peertest.NewFakeGateway()
	engine := peertest.NewFakeEngine()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewCluster(nil, nc, gw, engine)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil connection", func(t *testing.T) {
		cfg := validTestConfig()
		_, err := NewCluster(&cfg, nil, gw, engine)
		require.ErrorIs(t, err, ErrNATSConnectionRequired)
	})

	t.Run("nil gateway", func(t *testing.T) {
		cfg := validTestConfig()
		_, err := NewCluster(&cfg, nc, nil, engine)
		require.ErrorIs(t, err, ErrGatewayRequired)
	})

	t.Run("nil engine", func(t *testing.T) {
		cfg := validTestConfig()
		_, err := NewCluster(&cfg, nc, gw, nil)
		require.ErrorIs(t, err, ErrSessionEngineRequired)
	})

	t.Run("invalid timing", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.StaleThreshold = cfg.HeartbeatInterval
		_, err := NewCluster(&cfg, nc, gw, engine)
		require.Error(t, err)
	})

	t.Run("no peers", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Peers = nil
		_, err := NewCluster(&cfg, nc, gw, engine)
		require.ErrorIs(t, err, ErrNoPeers)
	})

	t.Run("no primary", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Peers[0].Primary = false
		_, err := NewCluster(&cfg, nc, gw, engine)
		require.ErrorIs(t, err, ErrNoPrimary)
	})

	t.Run("multiple primaries", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Peers[1].Primary = true
		_, err := NewCluster(&cfg, nc, gw, engine)
		require.ErrorIs(t, err, ErrMultiplePrimaries)
	})

	t.Run("duplicate peer IDs", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Peers[1].ID = cfg.Peers[0].ID
		_, err := NewCluster(&cfg, nc, gw, engine)
		require.ErrorIs(t, err, ErrDuplicatePeerID)
	})
}

func TestCluster_Lifecycle(t *testing.T) {
	f := newClusterFixture(t, nil)
	ctx := t.Context()

	t.Run("operations before start are refused", func(t *testing.T) {
		_, err := f.cluster.Assign(ctx, "guild-1")
		require.ErrorIs(t, err, ErrNotStarted)

		require.ErrorIs(t, f.cluster.Stop(ctx), ErrNotStarted)

		p, err := f.cluster.Peer("peer-1")
		require.NoError(t, err)
		require.Equal(t, "not-started", p.Evaluate(ctx, Command{GuildID: "g"}).Rule)
	})

	t.Run("start is one-shot", func(t *testing.T) {
		require.NoError(t, f.cluster.Start(ctx))
		require.ErrorIs(t, f.cluster.Start(ctx), ErrAlreadyStarted)
	})

	t.Run("first tick completes before start returns", func(t *testing.T) {
		for _, info := range f.cluster.Peers() {
			require.Equal(t, StatusAvailable, info.Status)
		}
	})

	t.Run("stop is one-shot", func(t *testing.T) {
		require.NoError(t, f.cluster.Stop(ctx))
		require.ErrorIs(t, f.cluster.Stop(ctx), ErrNotStarted)
	})

	t.Run("operations after stop are refused", func(t *testing.T) {
		_, err := f.cluster.Assign(ctx, "guild-1")
		require.ErrorIs(t, err, ErrNotStarted)
	})
}

func TestCluster_Peer(t *testing.T) {
	f := newClusterFixture(t, nil)

	p, err := f.cluster.Peer("peer-1")
	require.NoError(t, err)
	require.Equal(t, "peer-1", p.ID())
	require.True(t, p.Info().Primary)
	require.Zero(t, p.Load())

	_, err = f.cluster.Peer("peer-99")
	require.ErrorIs(t, err, ErrUnknownPeer)

	require.Len(t, f.cluster.Peers(), 2)
}

func TestCluster_Assign(t *testing.T) {
	f := newClusterFixture(t, nil)
	f.start(t)
	ctx := t.Context()

	t.Run("assigns to the primary", func(t *testing.T) {
		asgn, err := f.cluster.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-1", asgn.PeerID)
	})

	t.Run("repeat assignment is stable", func(t *testing.T) {
		asgn, err := f.cluster.Assign(ctx, "guild-1")
		require.NoError(t, err)
		require.Equal(t, "peer-1", asgn.PeerID)
	})

	t.Run("force assign moves ownership", func(t *testing.T) {
		asgn, err := f.cluster.ForceAssign(ctx, "guild-1", "peer-2")
		require.NoError(t, err)
		require.Equal(t, "peer-2", asgn.PeerID)
		require.Equal(t, ReasonManual, asgn.Reason)

		_, err = f.cluster.ForceAssign(ctx, "guild-1", "peer-99")
		require.ErrorIs(t, err, ErrUnknownPeer)
	})

	t.Run("release deactivates", func(t *testing.T) {
		require.NoError(t, f.cluster.Release(ctx, "guild-1"))
		require.NoError(t, f.cluster.Release(ctx, "guild-never-assigned"))
	})
}

func TestCluster_Routing(t *testing.T) {
	f := newClusterFixture(t, nil)
	f.start(t)
	ctx := t.Context()

	primary, err := f.cluster.Peer("peer-1")
	require.NoError(t, err)
	secondary, err := f.cluster.Peer("peer-2")
	require.NoError(t, err)

	t.Run("primary answers non-session commands", func(t *testing.T) {
		cmd := Command{GuildID: "guild-1"}
		require.True(t, primary.ShouldHandle(ctx, cmd))
		require.False(t, secondary.ShouldHandle(ctx, cmd))
	})

	t.Run("free primary wins session commands", func(t *testing.T) {
		cmd := Command{GuildID: "guild-1", SessionCommand: true, RequesterChannel: "chan-a"}
		require.True(t, primary.ShouldHandle(ctx, cmd))
		require.False(t, secondary.ShouldHandle(ctx, cmd))
	})

	t.Run("busy primary fails over to the secondary", func(t *testing.T) {
		_, err := f.cluster.Assign(ctx, "guild-2")
		require.NoError(t, err)
		_, err = primary.BeginSession(ctx, "guild-2", "chan-other")
		require.NoError(t, err)
		defer func() { require.NoError(t, primary.EndSession(ctx, "guild-2")) }()

		cmd := Command{GuildID: "guild-2", SessionCommand: true, RequesterChannel: "chan-a"}
		require.False(t, primary.ShouldHandle(ctx, cmd))
		require.True(t, secondary.ShouldHandle(ctx, cmd))
	})
}

func TestPeer_Sessions(t *testing.T) {
	f := newClusterFixture(t, nil)
	f.start(t)
	ctx := t.Context()

	p, err := f.cluster.Peer("peer-1")
	require.NoError(t, err)

	_, err = f.cluster.Assign(ctx, "guild-1")
	require.NoError(t, err)

	t.Run("begin creates and records the session", func(t *testing.T) {
		session, err := p.BeginSession(ctx, "guild-1", "chan-a")
		require.NoError(t, err)
		require.Equal(t, "chan-a", session.ChannelID())
		require.Equal(t, 1, p.Load())
		require.Equal(t, 1, f.engine.Created())
	})

	t.Run("duplicate begin is refused", func(t *testing.T) {
		_, err := p.BeginSession(ctx, "guild-1", "chan-b")
		require.ErrorIs(t, err, ErrSessionExists)
	})

	t.Run("activity touch succeeds for a live session", func(t *testing.T) {
		require.NoError(t, p.TouchActivity(ctx, "guild-1"))
	})

	t.Run("end tears down and releases", func(t *testing.T) {
		require.NoError(t, p.EndSession(ctx, "guild-1"))
		require.Zero(t, p.Load())

		require.ErrorIs(t, p.EndSession(ctx, "guild-1"), ErrSessionNotFound)
	})

	t.Run("engine failure leaks nothing", func(t *testing.T) {
		f.engine.FailNext()

		_, err := p.BeginSession(ctx, "guild-1", "chan-a")
		require.Error(t, err)
		require.Zero(t, p.Load())

		// The next attempt succeeds cleanly.
		session, err := p.BeginSession(ctx, "guild-1", "chan-a")
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NoError(t, p.EndSession(ctx, "guild-1"))
	})
}

func TestCluster_Stats(t *testing.T) {
	f := newClusterFixture(t, nil)
	f.start(t)
	ctx := t.Context()

	_, err := f.cluster.Assign(ctx, "guild-1")
	require.NoError(t, err)

	p, err := f.cluster.Peer("peer-1")
	require.NoError(t, err)
	_, err = p.BeginSession(ctx, "guild-1", "chan-a")
	require.NoError(t, err)

	stats, err := f.cluster.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Peers)
	require.Equal(t, 2, stats.HealthyPeers)
	require.Equal(t, 1, stats.ActiveSessions)
	require.Equal(t, 1, stats.ActiveAssignments)
	require.Equal(t, 1, stats.TotalAssignments)
}

func TestCluster_StopTearsDownSessions(t *testing.T) {
	f := newClusterFixture(t, nil)
	ctx := t.Context()
	require.NoError(t, f.cluster.Start(ctx))

	p, err := f.cluster.Peer("peer-1")
	require.NoError(t, err)
	_, err = f.cluster.Assign(ctx, "guild-1")
	require.NoError(t, err)
	session, err := p.BeginSession(ctx, "guild-1", "chan-a")
	require.NoError(t, err)

	require.NoError(t, f.cluster.Stop(ctx))

	fake, ok := session.(*peertest.FakeSession)
	require.True(t, ok)
	require.True(t, fake.Disconnected())
	require.True(t, fake.Destroyed())
	require.Zero(t, p.Load())
}
