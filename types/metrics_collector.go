package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better
// modularity.
type MetricsCollector interface {
	RoutingMetrics
	HealthMetrics
	AssignmentMetrics
}

// RoutingMetrics defines metrics for the per-command routing decision.
type RoutingMetrics interface {
	// RecordRoutingDecision records the outcome of one peer's local
	// routing evaluation.
	//
	// Parameters:
	//   - rule: Name of the rule that produced the verdict
	//   - handled: true when the peer proceeded with the command
	RecordRoutingDecision(rule string, handled bool)

	// RecordLockAcquire records a lock acquisition attempt.
	RecordLockAcquire(success bool)

	// RecordCommandDropped records a command no peer could handle
	// (all secondaries busy in other channels).
	RecordCommandDropped(guildID string)
}

// HealthMetrics defines metrics for the health monitor.
type HealthMetrics interface {
	// RecordHeartbeat records a health record write for a peer.
	RecordHeartbeat(peerID string, success bool)

	// RecordPeerStatus records a peer status transition.
	RecordPeerStatus(peerID string, status PeerStatus)

	// RecordStaleSweep records the result of a stale-assignment sweep.
	//
	// Parameters:
	//   - released: Number of assignments deactivated by the sweep
	RecordStaleSweep(released int)
}

// AssignmentMetrics defines metrics for assignment and selection.
type AssignmentMetrics interface {
	// RecordAssignmentChange records an ownership change on an
	// assignment row.
	RecordAssignmentChange(reason Reason)

	// RecordSelection records a peer selection attempt.
	//
	// Parameters:
	//   - strategy: Strategy name
	//   - success: false when no peer was available
	RecordSelection(strategy string, success bool)

	// RecordActiveSessions sets the current active session count
	// (gauge metric).
	RecordActiveSessions(count int)
}
