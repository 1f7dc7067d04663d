// Package api provides the REST API implementation for the clusterplane service.
//
// This package wires routing, middleware and handlers. It uses Gin for HTTP
// handling and delegates every cluster operation to the service layer.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/api/handlers"
	"github.com/yaroslav/clusterplane/internal/api/middleware"
	"github.com/yaroslav/clusterplane/internal/config"
	"github.com/yaroslav/clusterplane/internal/metrics"
)

// RouterConfig holds configuration for setting up the HTTP router.
type RouterConfig struct {
	// Clusters is the cluster business logic.
	Clusters handlers.ClusterService

	// DB is probed by the readiness endpoint.
	DB handlers.Pinger

	// Logger is the Zap logger for request logging.
	Logger *zap.Logger

	// InstanceID identifies this API instance in health responses.
	InstanceID string

	// AllowOrigins is the list of allowed CORS origins; empty disables CORS.
	AllowOrigins []string

	// RateLimit holds per-IP and per-project limits; a zero RPS disables a limiter.
	RateLimit config.RateLimitConfig

	// DefaultVersion is the version header assumed when a request sends none.
	DefaultVersion string

	// LatestVersion is the version header substituted for "latest".
	LatestVersion string
}

// Router is the configured engine plus the background resources it owns.
type Router struct {
	*gin.Engine
	limiters []*middleware.RateLimiter
}

// Close stops the rate limiter cleanup goroutines.
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

// SetupRouter creates and configures the Gin HTTP router with all routes and middleware.
//
// This function sets up:
// - Global middleware (recovery, metrics, logging, CORS, per-IP rate limiting)
// - Root and v1 version documents
// - Health check and metrics endpoints
// - Cluster endpoints (version negotiation, identity, per-project rate limiting)
//
// Parameters:
//   - config: Router configuration
//
// Returns:
//   - Configured Router ready to serve requests; call Close on shutdown
func SetupRouter(config *RouterConfig) *Router {
	router := &Router{Engine: gin.New()}

	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(config.Logger))

	if len(config.AllowOrigins) > 0 {
		router.Use(middleware.CORS(config.AllowOrigins))
	}

	if config.RateLimit.PerIPRPS > 0 {
		limiter := middleware.NewRateLimiter(config.RateLimit.PerIPRPS, config.RateLimit.PerIPBurst, time.Minute)
		router.limiters = append(router.limiters, limiter)
		router.Use(middleware.RateLimitByIP(limiter))
	}

	healthHandler := handlers.NewHealthHandler(config.DB, config.InstanceID)
	clusterHandler := handlers.NewClusterHandler(config.Clusters)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry,
		promhttp.HandlerOpts{},
	)))

	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Liveness)
		health.GET("/ready", healthHandler.Readiness)
	}

	router.GET("/", handlers.Root)
	router.GET("/v1/", handlers.V1)

	clusters := router.Group("/v1/clusters")
	clusters.Use(middleware.APIVersion(config.DefaultVersion, config.LatestVersion))
	clusters.Use(middleware.RequireIdentity())
	if config.RateLimit.PerProjectRPS > 0 {
		limiter := middleware.NewRateLimiter(config.RateLimit.PerProjectRPS, config.RateLimit.PerProjectBurst, 5*time.Minute)
		router.limiters = append(router.limiters, limiter)
		clusters.Use(middleware.RateLimitByProject(limiter))
	}
	{
		clusters.GET("", clusterHandler.List)
		clusters.POST("", clusterHandler.Create)
		clusters.GET("/detail", clusterHandler.Detail)
		clusters.GET("/:ident", clusterHandler.Get)
		clusters.PATCH("/:ident", clusterHandler.Patch)
		clusters.DELETE("/:ident", clusterHandler.Delete)
	}

	return router
}
