package sdk

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig contains the configuration for creating a new SDK client.
type ClientConfig struct {
	// BaseURLs is the list of API endpoints (e.g., ["https://api1.example.com:9511"]).
	// Requests fail over to the next URL when an endpoint is unreachable.
	BaseURLs []string

	// ProjectID scopes every request. Required.
	ProjectID string

	// UserID is sent as the acting user. Optional.
	UserID string

	// DomainID is sent as the caller's domain. Optional.
	DomainID string

	// Roles are sent comma-separated in the roles header.
	Roles []string

	// APIVersion is the requested microversion, e.g. "1.10" or "latest".
	// Default: latest
	APIVersion string

	// RetryAttempts is the number of times idempotent requests are retried.
	// Default: 3
	RetryAttempts int

	// RetryWaitMin is the minimum wait time between retries.
	// Default: 1 second
	RetryWaitMin time.Duration

	// RetryWaitMax is the maximum wait time between retries.
	// Default: 30 seconds
	RetryWaitMax time.Duration

	// Timeout is the HTTP request timeout.
	// Default: 30 seconds
	Timeout time.Duration
}

// Validate checks the configuration and fills in defaults.
func (c *ClientConfig) Validate() error {
	if len(c.BaseURLs) == 0 {
		return fmt.Errorf("%w: at least one base URL is required", ErrInvalidConfig)
	}

	for i, url := range c.BaseURLs {
		url = strings.TrimSuffix(strings.TrimSpace(url), "/")
		if url == "" {
			return fmt.Errorf("%w: base URL at index %d is empty", ErrInvalidConfig, i)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("%w: base URL must start with http:// or https://", ErrInvalidConfig)
		}
		c.BaseURLs[i] = url
	}

	if strings.TrimSpace(c.ProjectID) == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidConfig)
	}

	if c.APIVersion == "" {
		c.APIVersion = "latest"
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryWaitMin == 0 {
		c.RetryWaitMin = 1 * time.Second
	}
	if c.RetryWaitMax == 0 {
		c.RetryWaitMax = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	return nil
}
