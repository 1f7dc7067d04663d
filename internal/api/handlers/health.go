package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readinessTimeout bounds one readiness probe.
const readinessTimeout = 2 * time.Second

// HealthHandler handles health check endpoints.
//
// This handler provides liveness and readiness checks for Kubernetes and
// load balancer health monitoring.
type HealthHandler struct {
	db         Pinger
	instanceID string
}

// NewHealthHandler creates a new health check handler.
//
// Parameters:
//   - db: Store checked by the readiness probe
//   - instanceID: This API instance's ID
func NewHealthHandler(db Pinger, instanceID string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		instanceID: instanceID,
	}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Database   string `json:"database"`
}

// Liveness handles GET /health/live.
//
// Response: 200 OK as long as the HTTP server is running.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:     "ok",
		InstanceID: h.instanceID,
	})
}

// Readiness handles GET /health/ready.
//
// Returns:
//   - 200 OK if the database answers a ping
//   - 503 Service Unavailable otherwise
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "unhealthy", "Database unavailable")
		return
	}

	c.JSON(http.StatusOK, ReadinessResponse{
		Status:     "ready",
		InstanceID: h.instanceID,
		Database:   "connected",
	})
}
