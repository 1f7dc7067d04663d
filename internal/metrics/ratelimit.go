package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RateLimitChecks counts rate limit checks by type and result.
	RateLimitChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_ratelimit_checks_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"limit_type", "allowed"},
	)
)

func registerRateLimitMetrics() error {
	return registerAll(RateLimitChecks)
}
