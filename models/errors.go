package models

import "errors"

// Common error types used throughout the clusterplane application.
// These errors provide semantic meaning and enable consistent error handling
// across different layers (API, service, repository, dispatcher). Callers add
// detail with fmt.Errorf("%w: ...") and match with errors.Is.

var (
	// ErrNotFound indicates the requested resource does not exist.
	// HTTP equivalent: 404 Not Found
	ErrNotFound = errors.New("resource not found")

	// ErrClusterNotFound indicates the requested cluster does not exist.
	// HTTP equivalent: 404 Not Found
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrClusterTemplateNotFound indicates the referenced cluster template does not exist.
	// HTTP equivalent: 404 Not Found (400 when raised while creating a cluster)
	ErrClusterTemplateNotFound = errors.New("cluster template not found")

	// ErrQuotaNotFound indicates no explicit quota exists for a project and resource.
	// Never surfaced to clients; the quota guard falls back to the default limit.
	ErrQuotaNotFound = errors.New("quota not found")

	// ErrUnauthorized indicates the request carries no usable identity.
	// HTTP equivalent: 401 Unauthorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the policy denied the action for the caller.
	// HTTP equivalent: 403 Forbidden
	ErrForbidden = errors.New("forbidden")

	// ErrNotAcceptable indicates the requested API version header is malformed or unsupported.
	// HTTP equivalent: 406 Not Acceptable
	ErrNotAcceptable = errors.New("not acceptable")

	// ErrInvalidRequest indicates the request body or parameters could not be decoded.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidParameterValue indicates a field holds a value the service refuses.
	// HTTP equivalent: 400 Bad Request
	ErrInvalidParameterValue = errors.New("invalid parameter value")

	// ErrUnsupportedCOE indicates the cluster template names an unknown orchestration engine.
	// HTTP equivalent: 400 Bad Request
	ErrUnsupportedCOE = errors.New("unsupported container orchestration engine")

	// ErrPatchError indicates a patch document is malformed or cannot be applied.
	// HTTP equivalent: 400 Bad Request
	ErrPatchError = errors.New("could not apply patch")

	// ErrZeroNodeCountNotSupported indicates node_count=0 under an API version that forbids it.
	// HTTP equivalent: 400 Bad Request
	ErrZeroNodeCountNotSupported = errors.New("setting node_count to zero is not supported")

	// ErrResourceLimitExceeded indicates the project reached its cluster quota.
	// HTTP equivalent: 403 Forbidden
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")

	// ErrConflict indicates the identifier is ambiguous or the resource already exists.
	// HTTP equivalent: 409 Conflict
	ErrConflict = errors.New("resource conflict")

	// ErrRateLimitExceeded indicates too many requests from this client.
	// HTTP equivalent: 429 Too Many Requests
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrNoSuchVersionedOperation indicates no handler is registered for an
	// operation at the negotiated version. This is a registration bug.
	// HTTP equivalent: 500 Internal Server Error
	ErrNoSuchVersionedOperation = errors.New("no such versioned operation")

	// ErrInternalError indicates an unexpected server-side error.
	// HTTP equivalent: 500 Internal Server Error
	ErrInternalError = errors.New("internal server error")

	// ErrDatabaseError indicates a database operation failed.
	// HTTP equivalent: 500 Internal Server Error
	ErrDatabaseError = errors.New("database error")

	// ErrServiceUnavailable indicates the command transport could not accept a command.
	// HTTP equivalent: 503 Service Unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	// Error is the error code (e.g., "not_found", "not_acceptable")
	Error string `json:"error"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// RequestID is the unique request ID for tracing
	RequestID string `json:"request_id,omitempty"`
}
