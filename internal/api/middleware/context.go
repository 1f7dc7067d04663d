package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/logging"
)

// Gin context keys set by the middleware in this package.
const (
	// ContextKeyRequestID stores the unique request ID for tracing.
	ContextKeyRequestID = "request_id"

	// ContextKeyLogger stores the request-scoped logger.
	ContextKeyLogger = "logger"

	// ContextKeyAPIVersion stores the negotiated apiversion.Version.
	ContextKeyAPIVersion = "api_version"

	// ContextKeyIdentity stores the caller Identity.
	ContextKeyIdentity = "identity"
)

// Identity is the caller as asserted by the upstream authentication proxy.
type Identity struct {
	ProjectID string
	UserID    string
	DomainID  string
	Roles     []string
	IsAdmin   bool
}

// GetLogger retrieves the request-scoped logger from Gin context.
// Returns a no-op logger if not found.
func GetLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(ContextKeyLogger); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

// setLogger replaces the request-scoped logger in both the Gin context and
// the request context, so services called with c.Request.Context() see it.
func setLogger(c *gin.Context, logger *zap.Logger) {
	c.Set(ContextKeyLogger, logger)
	c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), logger))
}

// GetRequestID retrieves the request ID from Gin context.
// Returns empty string if not found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(ContextKeyRequestID); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// GetAPIVersion retrieves the negotiated version.
// Returns the null version when negotiation did not run.
func GetAPIVersion(c *gin.Context) apiversion.Version {
	if val, exists := c.Get(ContextKeyAPIVersion); exists {
		if v, ok := val.(apiversion.Version); ok {
			return v
		}
	}
	return apiversion.Version{}
}

// GetIdentity retrieves the caller identity.
// Returns false if the identity middleware did not run.
func GetIdentity(c *gin.Context) (Identity, bool) {
	if val, exists := c.Get(ContextKeyIdentity); exists {
		if id, ok := val.(Identity); ok {
			return id, true
		}
	}
	return Identity{}, false
}
