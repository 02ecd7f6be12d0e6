package peerage

import "time"

// Option configures a Cluster with optional dependencies.
type Option func(*clusterOptions)

// clusterOptions holds optional Cluster configuration.
type clusterOptions struct {
	lockTable LockTable
	strategy  SelectionStrategy
	hooks     *Hooks
	metrics   MetricsCollector
	logger    Logger
	clock     func() time.Time
}

// WithLockTable sets a custom lock table.
//
// By default the cluster uses the in-process sharded lock table, or the
// KV-backed one when Config.KVBuckets.LockBucket names a bucket. This
// option overrides both.
//
// Parameters:
//   - table: LockTable implementation
//
// Returns:
//   - Option: Functional option for NewCluster
func WithLockTable(table LockTable) Option {
	return func(o *clusterOptions) {
		o.lockTable = table
	}
}

// WithStrategy sets a custom selection strategy, overriding Config.Strategy.
//
// Parameters:
//   - strategy: SelectionStrategy implementation
//
// Returns:
//   - Option: Functional option for NewCluster
//
// Example:
//
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine,
//	    peerage.WithStrategy(selector.NewLeastLoaded()))
func WithStrategy(strategy SelectionStrategy) Option {
	return func(o *clusterOptions) {
		o.strategy = strategy
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewCluster
//
// Example:
//
//	hooks := &peerage.Hooks{
//	    OnFailover: func(ctx context.Context, guildID, from, to string, reason peerage.Reason) error {
//	        return notifyOps(guildID, from, to)
//	    },
//	}
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine, peerage.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *clusterOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewCluster
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "peerage")
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine, peerage.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *clusterOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewCluster
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	c, err := peerage.NewCluster(&cfg, conn, gw, engine, peerage.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *clusterOptions) {
		o.logger = logger
	}
}

// WithClock overrides the time source used for staleness and expiry
// decisions. Test use only.
//
// Parameters:
//   - now: Replacement for time.Now
//
// Returns:
//   - Option: Functional option for NewCluster
func WithClock(now func() time.Time) Option {
	return func(o *clusterOptions) {
		o.clock = now
	}
}
