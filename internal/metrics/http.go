package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterplane_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks currently processing requests.
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterplane_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// APIVersionRequests counts requests by negotiated microversion.
	APIVersionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_api_version_requests_total",
			Help: "Total number of requests per negotiated API microversion",
		},
		[]string{"version"},
	)
)

func registerHTTPMetrics() error {
	return registerAll(HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight, APIVersionRequests)
}
