// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the sellside gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// RequestBuckets defines histogram buckets for gateway request latencies,
// ranging from 5ms to 10s. Directory lookups dominate the auth path, so most
// observations land in the low buckets.
var RequestBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts HTTP requests by protocol surface, method, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sellside_requests_total",
			Help: "Total requests",
		},
		[]string{"protocol", "method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by protocol surface.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sellside_request_duration_seconds",
			Help:    "Request duration",
			Buckets: RequestBuckets,
		},
		[]string{"protocol"},
	)

	// TenantResolutionsTotal counts successful resolutions by resolution method.
	TenantResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sellside_tenant_resolutions_total",
			Help: "Tenant resolutions",
		},
		[]string{"method"},
	)

	// AuthFailuresTotal counts rejected requests by auth error code.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sellside_auth_failures_total",
			Help: "Authentication failures",
		},
		[]string{"code"},
	)

	// TokenCollisionsTotal counts tokens found under more than one tenant.
	TokenCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sellside_token_collisions_total",
			Help: "Access tokens shared across tenants",
		},
	)

	// TenantSignalConflictsTotal counts requests whose Host-derived tenant
	// disagreed with the explicit tenant header.
	TenantSignalConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sellside_tenant_signal_conflicts_total",
			Help: "Host and explicit tenant header disagreements",
		},
	)

	// BoundContextsActive tracks request contexts that are bound and not yet
	// released. A value that only grows indicates leaked bindings.
	BoundContextsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sellside_bound_contexts_active",
			Help: "Bound request contexts",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TenantResolutionsTotal,
		AuthFailuresTotal,
		TokenCollisionsTotal,
		TenantSignalConflictsTotal,
		BoundContextsActive,
	)
}
