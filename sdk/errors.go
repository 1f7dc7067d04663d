package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Common SDK errors that clients can check with errors.Is.
var (
	// ErrInvalidConfig indicates the client configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid client configuration")

	// ErrAllInstancesFailed indicates every API endpoint was unreachable.
	ErrAllInstancesFailed = errors.New("all API instances failed")

	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("resource not found")
	ErrNotAcceptable = errors.New("API version not acceptable")
	ErrConflict      = errors.New("conflict with existing resource")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrServerError   = errors.New("internal server error")
	ErrUnavailable   = errors.New("service unavailable")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	return statusError(e.StatusCode) == target
}

func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusNotAcceptable:
		return ErrNotAcceptable
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	if status >= 500 {
		return ErrServerError
	}
	return nil
}
