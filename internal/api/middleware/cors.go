package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/clusterplane/internal/apiversion"
)

var (
	corsAllowHeaders = strings.Join([]string{
		"Content-Type", apiversion.Header, ProjectIDHeader, UserIDHeader, DomainIDHeader, RolesHeader,
	}, ", ")

	corsExposeHeaders = strings.Join([]string{
		apiversion.Header, apiversion.MinimumHeader, apiversion.MaximumHeader, RequestIDHeader,
	}, ", ")
)

// CORS creates a middleware that handles Cross-Origin Resource Sharing.
//
// Parameters:
//   - allowOrigins: List of allowed origins; "*" allows any origin
//
// Returns:
//   - Gin middleware handler function
func CORS(allowOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range allowOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			} else if len(allowOrigins) == 1 && allowOrigins[0] == "*" {
				c.Header("Access-Control-Allow-Origin", "*")
			}

			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
			c.Header("Access-Control-Max-Age", "86400")

			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}

		c.Next()
	}
}
