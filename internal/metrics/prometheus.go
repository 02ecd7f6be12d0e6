package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/overtone/peerage/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metrics are registered lazily on first use, so constructing a collector
// that is never exercised does not pollute the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	routingDecisions *prometheus.CounterVec
	lockAcquires     *prometheus.CounterVec
	commandsDropped  prometheus.Counter

	heartbeats     *prometheus.CounterVec
	peerStatus     *prometheus.GaugeVec
	staleReleases  prometheus.Counter
	staleSweeps    prometheus.Counter
	activeSessions prometheus.Gauge

	assignmentChanges *prometheus.CounterVec
	selections        *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "peerage" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "peerage"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.routingDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Total routing decisions by rule and outcome.",
		}, []string{"rule", "outcome"})

		p.lockAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "router",
			Name:      "lock_acquires_total",
			Help:      "Total guild lock acquisition attempts by result.",
		}, []string{"result"})

		p.commandsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "router",
			Name:      "commands_dropped_total",
			Help:      "Session commands dropped because no peer was available.",
		})

		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "health",
			Name:      "heartbeats_total",
			Help:      "Total health record writes by peer and result.",
		}, []string{"peer_id", "result"})

		p.peerStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "health",
			Name:      "peer_status",
			Help:      "Current peer status (0=starting,1=available,2=in_use,3=offline,4=error).",
		}, []string{"peer_id"})

		p.staleReleases = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "health",
			Name:      "stale_assignments_released_total",
			Help:      "Assignments deactivated by the inactivity sweep.",
		})

		p.staleSweeps = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "health",
			Name:      "stale_sweeps_total",
			Help:      "Total inactivity sweep runs.",
		})

		p.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "health",
			Name:      "active_sessions",
			Help:      "Current number of active voice sessions across all local peers.",
		})

		p.assignmentChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "changes_total",
			Help:      "Total assignment ownership changes by reason.",
		}, []string{"reason"})

		p.selections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "selections_total",
			Help:      "Total peer selection attempts by strategy and result.",
		}, []string{"strategy", "result"})

		p.reg.MustRegister(p.routingDecisions)
		p.reg.MustRegister(p.lockAcquires)
		p.reg.MustRegister(p.commandsDropped)
		p.reg.MustRegister(p.heartbeats)
		p.reg.MustRegister(p.peerStatus)
		p.reg.MustRegister(p.staleReleases)
		p.reg.MustRegister(p.staleSweeps)
		p.reg.MustRegister(p.activeSessions)
		p.reg.MustRegister(p.assignmentChanges)
		p.reg.MustRegister(p.selections)
	})
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}

	return "failure"
}

// RoutingMetrics implementation

// RecordRoutingDecision counts a routing decision by rule and outcome.
func (p *PrometheusCollector) RecordRoutingDecision(rule string, handled bool) {
	p.ensureRegistered()
	outcome := "defer"
	if handled {
		outcome = "handle"
	}
	p.routingDecisions.WithLabelValues(rule, outcome).Inc()
}

// RecordLockAcquire counts a lock acquisition attempt by result.
func (p *PrometheusCollector) RecordLockAcquire(success bool) {
	p.ensureRegistered()
	p.lockAcquires.WithLabelValues(outcomeLabel(success)).Inc()
}

// RecordCommandDropped counts a dropped session command.
func (p *PrometheusCollector) RecordCommandDropped(_ string) {
	p.ensureRegistered()
	p.commandsDropped.Inc()
}

// HealthMetrics implementation

// RecordHeartbeat counts a health record write by peer and result.
func (p *PrometheusCollector) RecordHeartbeat(peerID string, success bool) {
	p.ensureRegistered()
	p.heartbeats.WithLabelValues(peerID, outcomeLabel(success)).Inc()
}

// RecordPeerStatus sets the status gauge for the given peer.
func (p *PrometheusCollector) RecordPeerStatus(peerID string, status types.PeerStatus) {
	p.ensureRegistered()
	p.peerStatus.WithLabelValues(peerID).Set(float64(status))
}

// RecordStaleSweep counts a sweep run and the assignments it released.
func (p *PrometheusCollector) RecordStaleSweep(released int) {
	p.ensureRegistered()
	p.staleSweeps.Inc()
	p.staleReleases.Add(float64(released))
}

// AssignmentMetrics implementation

// RecordAssignmentChange counts an ownership change by reason.
func (p *PrometheusCollector) RecordAssignmentChange(reason types.Reason) {
	p.ensureRegistered()
	p.assignmentChanges.WithLabelValues(string(reason)).Inc()
}

// RecordSelection counts a selection attempt by strategy and result.
func (p *PrometheusCollector) RecordSelection(strategy string, success bool) {
	p.ensureRegistered()
	p.selections.WithLabelValues(strategy, outcomeLabel(success)).Inc()
}

// RecordActiveSessions sets the active session gauge.
func (p *PrometheusCollector) RecordActiveSessions(count int) {
	p.ensureRegistered()
	p.activeSessions.Set(float64(count))
}
