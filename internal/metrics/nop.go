package metrics

import "github.com/overtone/peerage/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	c := peerage.NewCluster(&cfg, conn, gw, engine, peerage.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RoutingMetrics implementation

// RecordRoutingDecision discards the routing decision metric.
func (n *NopMetrics) RecordRoutingDecision(_ /* rule */ string, _ /* handled */ bool) {
	// No-op
}

// RecordLockAcquire discards the lock acquisition metric.
func (n *NopMetrics) RecordLockAcquire(_ /* success */ bool) {
	// No-op
}

// RecordCommandDropped discards the dropped command metric.
func (n *NopMetrics) RecordCommandDropped(_ /* guildID */ string) {
	// No-op
}

// HealthMetrics implementation

// RecordHeartbeat discards the heartbeat metric.
func (n *NopMetrics) RecordHeartbeat(_ /* peerID */ string, _ /* success */ bool) {
	// No-op
}

// RecordPeerStatus discards the peer status transition metric.
func (n *NopMetrics) RecordPeerStatus(_ /* peerID */ string, _ /* status */ types.PeerStatus) {
	// No-op
}

// RecordStaleSweep discards the stale sweep metric.
func (n *NopMetrics) RecordStaleSweep(_ /* released */ int) {
	// No-op
}

// AssignmentMetrics implementation

// RecordAssignmentChange discards the assignment change metric.
func (n *NopMetrics) RecordAssignmentChange(_ /* reason */ types.Reason) {
	// No-op
}

// RecordSelection discards the peer selection metric.
func (n *NopMetrics) RecordSelection(_ /* strategy */ string, _ /* success */ bool) {
	// No-op
}

// RecordActiveSessions discards the active session gauge.
func (n *NopMetrics) RecordActiveSessions(_ /* count */ int) {
	// No-op
}
