package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/models"
)

// RateLimiter implements token bucket rate limiting.
//
// This struct manages one limiter per identifier (client IP, project ID)
// and periodically drops limiters that have refilled completely.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - rps: Requests per second allowed
//   - burst: Burst size (number of requests that can be made in quick succession)
//   - cleanup: How often to clean up idle limiters (e.g., 1 minute)
//
// Returns:
//   - Configured RateLimiter; call Stop to end its cleanup goroutine
func NewRateLimiter(rps float64, burst int, cleanup time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		cleanup:  cleanup,
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether a request from identifier may proceed.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[identifier]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[identifier] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for identifier, limiter := range rl.limiters {
				if limiter.Tokens() >= float64(rl.burst) {
					delete(rl.limiters, identifier)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimitByIP creates middleware that rate limits requests by client IP address.
//
// Parameters:
//   - limiter: Shared limiter keyed by IP
//
// Returns:
//   - Gin middleware handler function
//
// Example:
//
//	router.Use(RateLimitByIP(NewRateLimiter(20, 40, time.Minute)))
func RateLimitByIP(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !check(limiter, "ip", c.ClientIP()) {
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

// RateLimitByProject creates middleware that rate limits requests by the
// caller's project. It must run after Identity; requests without an identity
// pass through.
//
// Parameters:
//   - limiter: Shared limiter keyed by project ID
//
// Returns:
//   - Gin middleware handler function
func RateLimitByProject(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.Next()
			return
		}

		if !check(limiter, "project", identity.ProjectID) {
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

func check(limiter *RateLimiter, limitType, identifier string) bool {
	allowed := limiter.Allow(identifier)
	metrics.RateLimitChecks.WithLabelValues(limitType, strconv.FormatBool(allowed)).Inc()
	return allowed
}

func abortRateLimited(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:     "rate_limit_exceeded",
		Message:   "Rate limit exceeded",
		RequestID: GetRequestID(c),
	})
}
