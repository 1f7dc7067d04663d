package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/models"
)

// APIVersion creates a middleware that negotiates the request microversion.
//
// The supported range is always advertised in the minimum and maximum
// headers. Blank, malformed or out-of-range requests are refused with 406; accepted
// ones get the negotiated version echoed back and stored under
// ContextKeyAPIVersion.
//
// Parameters:
//   - defaultHeader: Header value assumed when the client sends none
//   - latestHeader: Header value substituted for "latest"
//
// Returns:
//   - Gin middleware handler function
func APIVersion(defaultHeader, latestHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(apiversion.MinimumHeader, apiversion.BaseVersion.HeaderValue())
		c.Header(apiversion.MaximumHeader, apiversion.MaxVersion.HeaderValue())
		c.Header("Vary", apiversion.Header)

		v, err := apiversion.FromHeader(c.Request.Header, defaultHeader, latestHeader)
		if err == nil {
			err = apiversion.CheckSupported(v)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, models.ErrorResponse{
				Error:     "not_acceptable",
				Message:   err.Error(),
				RequestID: GetRequestID(c),
			})
			return
		}

		c.Header(apiversion.Header, v.HeaderValue())
		c.Set(ContextKeyAPIVersion, v)
		setLogger(c, GetLogger(c).With(zap.String(logging.FieldAPIVersion, v.String())))

		c.Next()
	}
}
