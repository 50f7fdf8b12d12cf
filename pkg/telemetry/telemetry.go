// Package telemetry exposes Prometheus metrics for the gateway's upstream
// calls. Labels stay low-cardinality: the authority, the operation (method
// plus route template, never raw IDs) and the outcome.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssio_upstream_requests_total",
			Help: "Upstream requests by authority, operation and outcome.",
		},
		[]string{"authority", "operation", "outcome"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ssio_upstream_request_duration_seconds",
			Help:    "Upstream request latency by authority and operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"authority", "operation"},
	)
)

// ObserveUpstream records one upstream request. err reflects only
// transport-level failure; status mapping happens in the clients.
func ObserveUpstream(authority, operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "transport_error"
	}
	upstreamRequests.WithLabelValues(authority, operation, outcome).Inc()
	upstreamDuration.WithLabelValues(authority, operation).Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
