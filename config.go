package peerage

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PeerConfig declares one peer of the shared workload.
type PeerConfig struct {
	// ID is the stable peer identifier. Secondary peers fail over in
	// ascending ID order, so IDs double as failover priority.
	ID string `yaml:"id"`

	// Name is the human-readable peer name used in logs.
	Name string `yaml:"name"`

	// ExternalID is the peer's bot-user identity on the chat platform.
	ExternalID string `yaml:"externalId"`

	// Primary marks the single primary peer. Exactly one peer must be
	// primary; the cluster refuses to start otherwise.
	Primary bool `yaml:"primary"`
}

// KVBucketConfig configures NATS JetStream KV bucket names.
type KVBucketConfig struct {
	// AssignmentBucket is the bucket name for guild assignment rows.
	// Assignments have no TTL; they are deactivated, never expired.
	AssignmentBucket string `yaml:"assignmentBucket"`

	// HealthBucket is the bucket name for peer heartbeat records.
	// The bucket TTL equals StaleThreshold so records of crashed
	// processes expire server-side.
	HealthBucket string `yaml:"healthBucket"`

	// LockBucket is the bucket name for the KV-backed lock table.
	// Leave empty (the default) to use the in-process lock table;
	// set a name to coordinate locks through JetStream KV instead.
	LockBucket string `yaml:"lockBucket"`
}

// Config is the configuration for the Cluster.
//
// All duration fields accept standard Go duration strings like "30s", "5m".
type Config struct {
	// Peers declares every peer sharing the workload.
	Peers []PeerConfig `yaml:"peers"`

	// LockTimeout is how long a guild lock is held before it expires.
	// Commands complete in well under this window; expiry only matters
	// when a peer dies mid-command.
	// Recommended: 10 seconds.
	LockTimeout time.Duration `yaml:"lockTimeout"`

	// HeartbeatInterval is how often the health monitor recomputes and
	// publishes each peer's status.
	// Recommended: 30 seconds.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// StaleThreshold is the heartbeat age beyond which a peer is treated
	// as Offline regardless of its stored status. Must be at least
	// 2x HeartbeatInterval so one missed tick does not evict a peer.
	// Recommended: 60 seconds.
	StaleThreshold time.Duration `yaml:"staleThreshold"`

	// InactivityThreshold is the assignment idle age after which the
	// periodic sweep deactivates the row.
	// Recommended: 5 minutes.
	InactivityThreshold time.Duration `yaml:"inactivityThreshold"`

	// MaxSessionsPerPeer is the session count at which a peer reports
	// InUse and the priority strategy passes it over.
	// Recommended: 100.
	MaxSessionsPerPeer int `yaml:"maxSessionsPerPeer"`

	// Strategy selects the peer selection strategy: "priority" (primary
	// first, capacity-aware) or "round-robin" (least-loaded).
	Strategy string `yaml:"strategy"`

	// OperationTimeout is the timeout applied to KV operations
	// (get, put, update).
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Recommended: 10 seconds.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
}

// Selection strategy names accepted by Config.Strategy.
const (
	StrategyPriority   = "priority"
	StrategyRoundRobin = "round-robin"
)

// DefaultConfig returns a Config with sensible defaults.
//
// Peers are deployment-specific and deliberately left empty.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		LockTimeout:         10 * time.Second,
		HeartbeatInterval:   30 * time.Second,
		StaleThreshold:      60 * time.Second,
		InactivityThreshold: 5 * time.Minute,
		MaxSessionsPerPeer:  100,
		Strategy:            StrategyPriority,
		OperationTimeout:    10 * time.Second,
		ShutdownTimeout:     10 * time.Second,
		KVBuckets: KVBucketConfig{
			AssignmentBucket: "peerage-assignment",
			HealthBucket:     "peerage-health",
			LockBucket:       "", // In-process lock table by default
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = defaults.StaleThreshold
	}
	if cfg.InactivityThreshold == 0 {
		cfg.InactivityThreshold = defaults.InactivityThreshold
	}
	if cfg.MaxSessionsPerPeer == 0 {
		cfg.MaxSessionsPerPeer = defaults.MaxSessionsPerPeer
	}
	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.KVBuckets.AssignmentBucket == "" {
		cfg.KVBuckets.AssignmentBucket = defaults.KVBuckets.AssignmentBucket
	}
	if cfg.KVBuckets.HealthBucket == "" {
		cfg.KVBuckets.HealthBucket = defaults.KVBuckets.HealthBucket
	}
	// Note: an empty LockBucket is valid (in-process locks), so no default
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - LockTimeout > 0 (locks must expire)
//   - StaleThreshold >= 2 * HeartbeatInterval (allow 1 missed heartbeat)
//   - InactivityThreshold >= StaleThreshold (sweep lags staleness)
//   - MaxSessionsPerPeer > 0 (capacity must exist)
//   - Strategy is a known strategy name
//
// Peer list validation (at least one peer, exactly one primary, unique IDs)
// happens in NewCluster when the registry is built.
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.LockTimeout <= 0 {
		return fmt.Errorf("LockTimeout must be > 0, got %v", cfg.LockTimeout)
	}

	if cfg.StaleThreshold < 2*cfg.HeartbeatInterval {
		return fmt.Errorf(
			"StaleThreshold (%v) must be >= 2*HeartbeatInterval (%v) to allow one missed heartbeat",
			cfg.StaleThreshold, cfg.HeartbeatInterval,
		)
	}

	if cfg.InactivityThreshold < cfg.StaleThreshold {
		return fmt.Errorf(
			"InactivityThreshold (%v) must be >= StaleThreshold (%v); the sweep acts after staleness",
			cfg.InactivityThreshold, cfg.StaleThreshold,
		)
	}

	if cfg.MaxSessionsPerPeer <= 0 {
		return fmt.Errorf("MaxSessionsPerPeer must be > 0, got %d", cfg.MaxSessionsPerPeer)
	}

	if cfg.Strategy != StrategyPriority && cfg.Strategy != StrategyRoundRobin {
		return fmt.Errorf("unknown strategy %q (want %q or %q)", cfg.Strategy, StrategyPriority, StrategyRoundRobin)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values.
//
// This is called after Validate() in NewCluster() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.LockTimeout < time.Second {
		logger.Warn(
			"LockTimeout is very short, locks may expire mid-command",
			"lockTimeout", cfg.LockTimeout,
			"recommended", "10s",
		)
	}

	if cfg.HeartbeatInterval < 5*time.Second {
		logger.Warn(
			"HeartbeatInterval is very short, may cause excessive KV traffic",
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", "30s",
		)
	}
}

// LoadConfig reads a YAML configuration file.
//
// Missing values are NOT defaulted here; NewCluster applies SetDefaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: Parsed configuration
//   - error: Read or parse error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable
// rapid iteration without sacrificing test coverage. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := peerage.TestConfig()
//	cfg.Peers = testPeers
//	cluster, err := peerage.NewCluster(&cfg, nc, gw, engine)
func TestConfig() Config {
	cfg := DefaultConfig()

	// Fast timings for test execution (10-100x faster)
	cfg.LockTimeout = 200 * time.Millisecond       // 50x faster
	cfg.HeartbeatInterval = 100 * time.Millisecond // 300x faster
	cfg.StaleThreshold = 500 * time.Millisecond    // 120x faster
	cfg.InactivityThreshold = 2 * time.Second      // 150x faster
	cfg.OperationTimeout = 5 * time.Second         // 2x faster
	cfg.ShutdownTimeout = 5 * time.Second          // 2x faster

	return cfg
}
