package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DBQueryDuration measures database query duration by operation.
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterplane_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"operation"},
	)

	// DBQueriesTotal counts total database queries by operation and status.
	DBQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	// DBConnectionsOpen tracks currently open database connections.
	DBConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterplane_db_connections_open",
			Help: "Number of currently open database connections",
		},
	)

	// DBConnectionsInUse tracks database connections currently in use.
	DBConnectionsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterplane_db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)
)

func registerDatabaseMetrics() error {
	return registerAll(DBQueryDuration, DBQueriesTotal, DBConnectionsOpen, DBConnectionsInUse)
}

// ObserveQuery records one query's duration and outcome.
func ObserveQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(operation, status).Inc()
}

// RecordDBStats copies connection pool statistics into the gauges.
func RecordDBStats(stats sql.DBStats) {
	DBConnectionsOpen.Set(float64(stats.OpenConnections))
	DBConnectionsInUse.Set(float64(stats.InUse))
}
