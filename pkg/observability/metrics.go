// Package observability provides Prometheus metrics for jwtguard: a
// collector that exports the security event counter's taxonomy, and
// histograms/gauges for the JWKS loader's HTTP behavior.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LoaderBuckets defines histogram buckets suited for JWKS HTTP fetch
// latencies, ranging from 10ms to 30s.
var LoaderBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

var (
	// LoaderAttemptsTotal counts JWKS fetch attempts by issuer and outcome
	// ("ok", "not_modified", "retryable_error", "permanent_error").
	LoaderAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwtguard_jwks_loader_attempts_total",
			Help: "JWKS fetch attempts by issuer and outcome",
		},
		[]string{"issuer", "outcome"},
	)

	// LoaderLatency records JWKS fetch latency in seconds by issuer.
	LoaderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jwtguard_jwks_loader_latency_seconds",
			Help:    "JWKS fetch latency by issuer",
			Buckets: LoaderBuckets,
		},
		[]string{"issuer"},
	)

	// IssuerStatus reports the current health of each configured issuer:
	// 0 = unready, 1 = healthy, 2 = degraded, matching issuer.Status.
	IssuerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jwtguard_issuer_status",
			Help: "Current issuer status (0=unready, 1=healthy, 2=degraded)",
		},
		[]string{"issuer"},
	)
)

func init() {
	prometheus.MustRegister(LoaderAttemptsTotal, LoaderLatency, IssuerStatus)
}
