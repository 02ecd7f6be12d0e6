package peerage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/overtone/peerage/internal/assignstore"
	"github.com/overtone/peerage/internal/balancer"
	"github.com/overtone/peerage/internal/health"
	"github.com/overtone/peerage/internal/hooks"
	"github.com/overtone/peerage/internal/kvutil"
	"github.com/overtone/peerage/internal/locktable"
	"github.com/overtone/peerage/internal/logger"
	"github.com/overtone/peerage/internal/metrics"
	"github.com/overtone/peerage/internal/registry"
	"github.com/overtone/peerage/internal/router"
	"github.com/overtone/peerage/selector"
)

// Cluster coordinates a set of chat-bot peers sharing one logical workload.
//
// Cluster is the main entry point of the peerage library. It handles:
//   - Guild ownership records in NATS KV with sticky assignment
//   - Per-guild command locking so exactly one peer handles each command
//   - Health monitoring with heartbeat records and staleness detection
//   - Failover to the lowest-ID available secondary when the primary is busy
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Assignment updates use KV revision checks (optimistic concurrency)
//
// Lifecycle:
//   - Create with NewCluster()
//   - Call Start() to create KV buckets and begin the health loop
//   - Route inbound commands through Peer.ShouldHandle on every peer
//   - Call Stop() for graceful shutdown
type Cluster struct {
	cfg     Config
	conn    *nats.Conn
	gateway Gateway
	engine  SessionEngine

	reg      *registry.Registry
	strategy SelectionStrategy
	locks    LockTable
	hooks    *Hooks
	metrics  MetricsCollector
	logger   Logger
	clock    func() time.Time

	store    *assignstore.Store
	monitor  *health.Monitor
	balancer *balancer.Balancer
	router   *router.Router

	peers map[string]*Peer

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewCluster creates a new Cluster instance with the provided configuration.
//
// Returns a concrete *Cluster struct following the "accept interfaces,
// return structs" principle. Consumers can define their own interfaces for
// testing if needed.
//
// Peer misconfiguration (no peers, no primary, duplicate IDs) is fatal here,
// before anything touches the network.
//
// Parameters:
//   - cfg: Runtime configuration with parsed durations
//   - conn: NATS connection for the durable store
//   - gateway: Chat-platform connectivity source for health checks
//   - engine: Voice session factory
//   - opts: Optional configuration (hooks, metrics, logger, lock table, strategy)
//
// Returns:
//   - *Cluster: Initialized cluster instance
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := peerage.DefaultConfig()
//	cfg.Peers = []peerage.PeerConfig{
//	    {ID: "peer-1", Name: "main", ExternalID: "1096…", Primary: true},
//	    {ID: "peer-2", Name: "backup", ExternalID: "1104…"},
//	}
//	cluster, err := peerage.NewCluster(&cfg, nc, gw, engine)
func NewCluster(cfg *Config, conn *nats.Conn, gateway Gateway, engine SessionEngine, opts ...Option) (*Cluster, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if conn == nil {
		return nil, ErrNATSConnectionRequired
	}
	if gateway == nil {
		return nil, ErrGatewayRequired
	}
	if engine == nil {
		return nil, ErrSessionEngineRequired
	}

	// Fill in missing configuration values with defaults
	SetDefaults(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Apply options
	options := &clusterOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	// Validate with warnings after logger is available
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}

	strategyInstance := options.strategy
	if strategyInstance == nil {
		switch cfg.Strategy {
		case StrategyRoundRobin:
			strategyInstance = selector.NewLeastLoaded()
		default:
			strategyInstance = selector.NewPriority()
		}
	}

	peerConfigs := make([]registry.PeerConfig, len(cfg.Peers))
	for i, pc := range cfg.Peers {
		peerConfigs[i] = registry.PeerConfig{
			ID:         pc.ID,
			Name:       pc.Name,
			ExternalID: pc.ExternalID,
			Primary:    pc.Primary,
		}
	}

	reg, err := registry.New(peerConfigs)
	if err != nil {
		return nil, err
	}

	c := &Cluster{
		cfg:      *cfg,
		conn:     conn,
		gateway:  gateway,
		engine:   engine,
		reg:      reg,
		strategy: strategyInstance,
		locks:    options.lockTable,
		hooks:    hooksInstance,
		metrics:  metricsCollector,
		logger:   loggerInstance,
		clock:    options.clock,
		peers:    make(map[string]*Peer, len(cfg.Peers)),
	}

	for _, id := range reg.PeerIDs() {
		c.peers[id] = newPeer(c, id)
	}

	return c, nil
}

// Start creates the KV buckets and begins the health loop.
//
// The first health tick runs synchronously, so peers have a real status by
// the time Start returns.
//
// Parameters:
//   - ctx: Context for cancellation and timeout of bucket setup
//
// Returns:
//   - error: Startup error or context cancellation
func (c *Cluster) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx != nil {
		c.mu.Unlock()

		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	setupCtx := ctx
	if c.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		setupCtx, cancel = context.WithTimeout(ctx, c.cfg.OperationTimeout)
		defer cancel()
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}

	// Assignments have no TTL; rows are deactivated, never expired.
	assignmentKV, err := kvutil.EnsureBucket(setupCtx, js, jetstream.KeyValueConfig{
		Bucket:  c.cfg.KVBuckets.AssignmentBucket,
		History: 1,
	}, 3)
	if err != nil {
		return fmt.Errorf("failed to create assignment KV: %w", err)
	}

	// Health records expire server-side once stale, so a crashed process
	// leaves no permanent record behind.
	healthKV, err := kvutil.EnsureBucket(setupCtx, js, jetstream.KeyValueConfig{
		Bucket:  c.cfg.KVBuckets.HealthBucket,
		History: 1,
		TTL:     c.cfg.StaleThreshold,
	}, 3)
	if err != nil {
		return fmt.Errorf("failed to create health KV: %w", err)
	}

	c.store = assignstore.New(assignmentKV, "assignment", c.logger)

	if c.locks == nil {
		if c.cfg.KVBuckets.LockBucket != "" {
			lockKV, err := kvutil.EnsureBucket(setupCtx, js, jetstream.KeyValueConfig{
				Bucket:  c.cfg.KVBuckets.LockBucket,
				History: 1,
				TTL:     c.cfg.LockTimeout,
			}, 3)
			if err != nil {
				return fmt.Errorf("failed to create lock KV: %w", err)
			}
			c.locks = locktable.NewKV(lockKV, "lock", c.cfg.LockTimeout, c.logger)
		} else {
			c.locks = locktable.NewMemory(c.cfg.LockTimeout)
		}
	}

	c.balancer = balancer.New(
		balancer.Config{
			MaxSessionsPerPeer: c.cfg.MaxSessionsPerPeer,
			StaleThreshold:     c.cfg.StaleThreshold,
		},
		c.reg, c.store, c.strategy, c.logger, c.metrics, c.hooks,
	)

	c.router = router.New(c.reg, c.locks, c.store, c.logger, c.metrics, c.hooks)

	c.monitor = health.New(
		health.Config{
			Interval:            c.cfg.HeartbeatInterval,
			StaleThreshold:      c.cfg.StaleThreshold,
			InactivityThreshold: c.cfg.InactivityThreshold,
			MaxSessionsPerPeer:  c.cfg.MaxSessionsPerPeer,
		},
		c.reg, c.gateway, c.store, healthKV, "health", c.logger, c.metrics, c.hooks,
	)

	c.applyClock()

	if err := c.monitor.Start(c.ctx); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}

	c.logger.Info("cluster started",
		"peers", len(c.peers),
		"primary", c.reg.PrimaryID(),
		"strategy", c.strategy.Name(),
	)

	return nil
}

// applyClock pushes the overridden time source into every component that
// makes time-based decisions.
func (c *Cluster) applyClock() {
	if c.clock == nil {
		return
	}

	c.store.SetClock(c.clock)
	c.balancer.SetClock(c.clock)
	c.monitor.SetClock(c.clock)

	switch lt := c.locks.(type) {
	case *locktable.Memory:
		lt.SetClock(c.clock)
	case *locktable.KV:
		lt.SetClock(c.clock)
	}
}

// Stop gracefully shuts down the cluster.
//
// Live sessions are torn down sequentially, then the health loop is stopped.
// Safe to call multiple times - subsequent calls return ErrNotStarted.
//
// Parameters:
//   - ctx: Context for shutdown operations
//
// Returns:
//   - error: Shutdown error or timeout
func (c *Cluster) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.ctx == nil || c.stopped {
		c.mu.Unlock()

		return ErrNotStarted
	}
	c.stopped = true
	c.mu.Unlock()

	var shutdownErr error

	// Step 1: End live sessions while the store is still usable.
	for _, p := range c.peers {
		if err := p.endAllSessions(ctx); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("session teardown failed: %w", err)
		}
	}

	// Step 2: Stop the health loop, bounded by the shutdown timeout.
	done := make(chan struct{})
	go func() {
		c.monitor.Stop()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("cluster stopped gracefully")
	case <-time.After(c.cfg.ShutdownTimeout):
		c.logger.Warn("shutdown timeout exceeded, abandoning health loop",
			"timeout", c.cfg.ShutdownTimeout,
		)
		if shutdownErr == nil {
			shutdownErr = context.DeadlineExceeded
		}
	}

	// Step 3: Cancel the cluster context so hooks in flight wind down.
	c.cancel()

	return shutdownErr
}

// Peer returns the handle for the peer with the given ID.
//
// Returns:
//   - *Peer: Peer handle
//   - error: ErrUnknownPeer when the ID is not registered
func (c *Cluster) Peer(id string) (*Peer, error) {
	p, ok := c.peers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, id)
	}

	return p, nil
}

// Peers returns a snapshot of every registered peer.
func (c *Cluster) Peers() []PeerInfo {
	return c.reg.Peers()
}

// Assign obtains or confirms ownership of a guild.
//
// An active assignment with a healthy owner is returned unchanged (sticky
// routing); otherwise the configured strategy selects a new owner.
//
// Parameters:
//   - ctx: Context for cancellation
//   - guildID: Guild to assign
//
// Returns:
//   - *Assignment: Current assignment row
//   - error: ErrNoPeerAvailable when no healthy peer exists, ErrNotStarted
//     before Start
func (c *Cluster) Assign(ctx context.Context, guildID string) (*Assignment, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	return c.balancer.Assign(opCtx, guildID)
}

// Release deactivates the assignment for a guild. A missing row is not an
// error.
func (c *Cluster) Release(ctx context.Context, guildID string) error {
	if !c.isStarted() {
		return ErrNotStarted
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	return c.balancer.Release(opCtx, guildID)
}

// ForceAssign moves ownership of a guild to the named peer (administrative
// override, recorded with reason manual).
//
// The target must exist and be healthy. A running session on the old owner
// drains naturally; the next session lands on the new owner.
//
// Parameters:
//   - ctx: Context for cancellation
//   - guildID: Guild to move
//   - peerID: New owner
//
// Returns:
//   - *Assignment: Updated assignment row
//   - error: ErrUnknownPeer or ErrPeerUnhealthy on an invalid target
func (c *Cluster) ForceAssign(ctx context.Context, guildID, peerID string) (*Assignment, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	return c.balancer.ForceAssign(opCtx, guildID, peerID)
}

// Stats is the aggregate operator view of the cluster.
type Stats struct {
	// Peers is the number of registered peers.
	Peers int `json:"peers"`

	// HealthyPeers is the number of peers currently Available or InUse.
	HealthyPeers int `json:"healthyPeers"`

	// ActiveSessions is the number of live voice sessions across all peers.
	ActiveSessions int `json:"activeSessions"`

	// ActiveAssignments is the number of assignment rows marked active.
	ActiveAssignments int `json:"activeAssignments"`

	// TotalAssignments is the total number of assignment rows.
	TotalAssignments int `json:"totalAssignments"`
}

// Stats returns aggregate counts for dashboards and the operator surface.
func (c *Cluster) Stats(ctx context.Context) (Stats, error) {
	if !c.isStarted() {
		return Stats{}, ErrNotStarted
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	total, active, err := c.store.Counts(opCtx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count assignments: %w", err)
	}

	now := time.Now
	if c.clock != nil {
		now = c.clock
	}

	return Stats{
		Peers:             len(c.peers),
		HealthyPeers:      len(c.reg.HealthyPeers(now(), c.cfg.StaleThreshold)),
		ActiveSessions:    c.reg.TotalSessions(),
		ActiveAssignments: active,
		TotalAssignments:  total,
	}, nil
}

// isStarted reports whether Start has completed and Stop has not begun.
func (c *Cluster) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ctx != nil && !c.stopped
}

// opContext bounds a store operation with the configured timeout.
func (c *Cluster) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.cfg.OperationTimeout)
}
