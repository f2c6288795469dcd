// Package metrics exposes the Prometheus registry shared by every server,
// grounded in the teacher's ws/metrics.go and go-server-3/internal/metrics
// collector set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the counters and gauges common to every protocol server,
// plus the handful specific to Speed Daemon's ticket pipeline.
type Registry struct {
	ConnectionsTotal  *prometheus.CounterVec
	ConnectionsActive *prometheus.GaugeVec
	AcceptErrors      *prometheus.CounterVec

	SpeedDaemonTicketsIssued     prometheus.Counter
	SpeedDaemonTicketsDispatched prometheus.Counter
	SpeedDaemonPendingTickets    prometheus.Gauge
}

// NewRegistry registers and returns all collectors.
func NewRegistry() *Registry {
	return &Registry{
		ConnectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "protohackers_connections_total",
			Help: "Total number of accepted connections, by server.",
		}, []string{"server"}),
		ConnectionsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "protohackers_connections_active",
			Help: "Current number of open connections, by server.",
		}, []string{"server"}),
		AcceptErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "protohackers_accept_errors_total",
			Help: "Total number of listener accept errors, by server.",
		}, []string{"server"}),

		SpeedDaemonTicketsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "speeddaemon_tickets_issued_total",
			Help: "Total number of tickets appended to the pending queue.",
		}),
		SpeedDaemonTicketsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "speeddaemon_tickets_dispatched_total",
			Help: "Total number of tickets written to a dispatcher connection.",
		}),
		SpeedDaemonPendingTickets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "speeddaemon_pending_tickets",
			Help: "Current number of tickets awaiting a dispatcher.",
		}),
	}
}

// Handler returns the HTTP handler that serves the registry in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
