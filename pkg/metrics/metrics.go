package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by method (local|google|github|refresh) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mikan_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// PermissionChecks counts workspace authorization decisions by action and result (allow|deny).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mikan_permission_checks_total",
			Help: "Total number of workspace permission checks",
		},
		[]string{"action", "result"},
	)

	// EventsPublished counts domain events handed to the bus, by event name and result (ok|error).
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mikan_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"event", "result"},
	)

	// EmailsSent counts notification emails by template and result (sent|failed|skipped).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mikan_emails_total",
			Help: "Total number of notification emails processed",
		},
		[]string{"template", "result"},
	)

	// MaintenanceRuns counts scheduled maintenance job executions.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mikan_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mikan_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result maps an error to the conventional ok/error label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
