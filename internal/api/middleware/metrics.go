package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/clusterplane/internal/metrics"
)

// MetricsMiddleware creates a middleware that collects Prometheus metrics for HTTP requests.
//
// Requests are labelled with the matched route pattern so cluster identifiers
// do not explode label cardinality. Requests that negotiated an API version
// are also counted per version.
//
// Returns:
//   - Gin middleware handler function
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		if v := GetAPIVersion(c); !v.IsNull() {
			metrics.APIVersionRequests.WithLabelValues(v.String()).Inc()
		}
	}
}
