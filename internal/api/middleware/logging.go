// Package middleware provides HTTP middleware for the clusterplane REST API.
//
// This package implements request logging, metrics, rate limiting, CORS,
// API version negotiation and caller identity extraction.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/logging"
)

// RequestIDHeader carries the request ID back to the client.
const RequestIDHeader = "X-Openstack-Request-Id"

// RequestLogger creates a middleware that logs all HTTP requests using structured logging.
//
// This middleware:
// - Generates a unique request ID and echoes it in RequestIDHeader
// - Creates a request-scoped logger with standard fields
// - Stores the logger in both Gin and request context
// - Logs completion at a level chosen from the status code
//
// Parameters:
//   - logger: Zap logger instance
//
// Returns:
//   - Gin middleware handler function
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := "req-" + uuid.New().String()
		start := time.Now()

		requestLogger := logger.With(
			zap.String(logging.FieldRequestID, requestID),
			zap.String(logging.FieldMethod, c.Request.Method),
			zap.String(logging.FieldPath, c.Request.URL.Path),
			zap.String(logging.FieldRemoteAddr, c.ClientIP()),
			zap.String(logging.FieldUserAgent, c.Request.UserAgent()),
		)
		setLogger(c, requestLogger)
		c.Set(ContextKeyRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		requestLogger.Debug("request started")

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int(logging.FieldStatusCode, status),
			zap.Int64(logging.FieldDuration, duration.Milliseconds()),
			zap.Int("response_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		// Later middleware enriches the logger with identity and version.
		requestLogger = GetLogger(c)
		if status >= 500 {
			requestLogger.Error("request completed with server error", fields...)
		} else if status >= 400 {
			requestLogger.Warn("request completed with client error", fields...)
		} else {
			requestLogger.Info("request completed", fields...)
		}
	}
}
