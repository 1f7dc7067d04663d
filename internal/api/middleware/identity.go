package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/models"
)

// Identity headers set by the authenticating proxy in front of the API.
const (
	ProjectIDHeader = "X-Project-Id"
	UserIDHeader    = "X-User-Id"
	DomainIDHeader  = "X-Domain-Id"
	RolesHeader     = "X-Roles"
)

// AdminRole marks a caller as a cloud administrator.
const AdminRole = "admin"

// RequireIdentity creates a middleware that reads the caller identity from
// the proxy headers. Requests without a project are refused with 401.
//
// Returns:
//   - Gin middleware handler function
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := Identity{
			ProjectID: strings.TrimSpace(c.GetHeader(ProjectIDHeader)),
			UserID:    strings.TrimSpace(c.GetHeader(UserIDHeader)),
			DomainID:  strings.TrimSpace(c.GetHeader(DomainIDHeader)),
			Roles:     parseRoles(c.GetHeader(RolesHeader)),
		}
		if identity.ProjectID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:     "unauthorized",
				Message:   "Authentication required",
				RequestID: GetRequestID(c),
			})
			return
		}
		for _, role := range identity.Roles {
			if strings.EqualFold(role, AdminRole) {
				identity.IsAdmin = true
				break
			}
		}

		c.Set(ContextKeyIdentity, identity)
		setLogger(c, GetLogger(c).With(
			zap.String(logging.FieldProjectID, identity.ProjectID),
			zap.String(logging.FieldUserID, identity.UserID),
		))

		c.Next()
	}
}

func parseRoles(header string) []string {
	var roles []string
	for _, role := range strings.Split(header, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
