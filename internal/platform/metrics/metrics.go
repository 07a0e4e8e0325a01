package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics for the dashboard.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
}

// New creates and registers the HTTP metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nutridash_http_request_duration_seconds",
			Help:    "Latency of dashboard HTTP requests by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nutridash_active_sessions",
			Help: "Number of dashboard sessions holding a record cache",
		}),
	}
}

// ObserveRequest records the duration of a request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(method, route, status string, start time.Time) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}

// SetActiveSessions reports the live session count.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}
