// Package metrics provides Prometheus metrics for the clusterplane server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the global Prometheus registry for all metrics.
	Registry = prometheus.NewRegistry()

	initialized = false
)

// Init registers every collector with Registry. Calling it again is a no-op.
func Init() error {
	if initialized {
		return nil
	}

	if err := Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}

	for _, register := range []func() error{
		registerHTTPMetrics,
		registerRateLimitMetrics,
		registerDatabaseMetrics,
		registerDispatchMetrics,
		registerBusinessMetrics,
	} {
		if err := register(); err != nil {
			return err
		}
	}

	initialized = true
	return nil
}

// MustInit initializes metrics and panics on error.
func MustInit() {
	if err := Init(); err != nil {
		panic("failed to initialize metrics: " + err.Error())
	}
}

func registerAll(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func registerBusinessMetrics() error {
	return registerAll(ClusterOperations, QuotaRejections, ValidationFailures)
}

var (
	// ClusterOperations counts cluster API operations by outcome.
	ClusterOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_cluster_operations_total",
			Help: "Total number of cluster operations",
		},
		[]string{"operation", "status"},
	)

	// QuotaRejections counts creates refused by the quota guard.
	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clusterplane_quota_rejections_total",
			Help: "Total number of cluster creates rejected by quota",
		},
	)

	// ValidationFailures counts rejected driver values by COE and phase.
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_validation_failures_total",
			Help: "Total number of cluster template validation failures",
		},
		[]string{"coe", "phase"},
	)
)
