// Package handlers provides HTTP handlers for the clusterplane REST API.
//
// This package implements the root and version documents, health probes and
// the versioned cluster endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/api/middleware"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

// respondError sends a standardized error response.
//
// Parameters:
//   - c: Gin context
//   - statusCode: HTTP status code
//   - errorCode: Error code string (e.g., "not_found")
//   - message: Human-readable error message
func respondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
	})
}

// errorMapping ties a sentinel error to its HTTP status and error code.
type errorMapping struct {
	target error
	status int
	code   string
}

// clientErrors are matched in order; the first sentinel the error wraps wins.
var clientErrors = []errorMapping{
	{models.ErrNotAcceptable, http.StatusNotAcceptable, "not_acceptable"},
	{models.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{models.ErrResourceLimitExceeded, http.StatusForbidden, "resource_limit_exceeded"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrClusterNotFound, http.StatusNotFound, "not_found"},
	{models.ErrClusterTemplateNotFound, http.StatusNotFound, "not_found"},
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrZeroNodeCountNotSupported, http.StatusBadRequest, "zero_node_count_not_supported"},
	{models.ErrUnsupportedCOE, http.StatusBadRequest, "unsupported_coe"},
	{models.ErrPatchError, http.StatusBadRequest, "patch_error"},
	{models.ErrInvalidParameterValue, http.StatusBadRequest, "invalid_parameter_value"},
	{models.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{models.ErrConflict, http.StatusConflict, "conflict"},
	{models.ErrRateLimitExceeded, http.StatusTooManyRequests, "rate_limit_exceeded"},
}

// mapErrorToResponse converts an error from the service layer to an HTTP response.
//
// Client errors keep their reason in the message. Server errors are logged
// with the request logger and answered with a generic message.
//
// Parameters:
//   - c: Gin context
//   - err: Error from the service layer
func mapErrorToResponse(c *gin.Context, err error) {
	_ = c.Error(err)

	for _, m := range clientErrors {
		if errors.Is(err, m.target) {
			respondError(c, m.status, m.code, clientMessage(err))
			return
		}
	}

	logger := middleware.GetLogger(c)
	switch {
	case errors.Is(err, models.ErrServiceUnavailable):
		logger.Error("command transport unavailable", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable")
	case errors.Is(err, models.ErrNoSuchVersionedOperation):
		logger.Error("no handler registered for negotiated version", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	default:
		logger.Error("unhandled error", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

// clientMessage returns the reason shown to clients. Driver validation
// errors render their own sentence; everything else uses the wrapped text.
func clientMessage(err error) string {
	var driverErr *validation.DriverError
	if errors.As(err, &driverErr) {
		return driverErr.Error()
	}
	return err.Error()
}
