package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/api"
	"github.com/yaroslav/clusterplane/internal/config"
	"github.com/yaroslav/clusterplane/internal/dispatch"
	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/internal/policy"
	"github.com/yaroslav/clusterplane/internal/quota"
	"github.com/yaroslav/clusterplane/internal/service"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/internal/validation"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 15 * time.Second

// dbStatsInterval is how often pool statistics are exported.
const dbStatsInterval = 15 * time.Second

var (
	listenAddr  string
	logLevel    string
	logEnv      string
	backendURL  string
	policyFile  string
	instanceID  string
	corsOrigins string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server (default)",
	Long: `Run the cluster API server.

The server:
  - Serves /v1/clusters with microversion negotiation
  - Stores clusters and the command outbox in SQLite
  - Relays queued commands to --backend-url, or logs them when unset
  - Exposes /health/live, /health/ready and /metrics
  - Shuts down gracefully on SIGTERM/SIGINT`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringVar(&listenAddr, "listen", config.Env("LISTEN_ADDR", ""),
		"Address to listen on (overrides server.listen_addr)")
	fs.StringVar(&logLevel, "log-level", config.Env("LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (overrides logging.level)")
	fs.StringVar(&logEnv, "log-env", config.Env("LOG_ENV", ""),
		"Log environment: production (JSON) or development (console)")
	fs.StringVar(&backendURL, "backend-url", config.Env("BACKEND_URL", ""),
		"URL receiving command envelopes (overrides backend.url)")
	fs.StringVar(&policyFile, "policy-file", config.Env("POLICY_FILE", ""),
		"YAML policy rule overrides (overrides policy_file)")
	fs.StringVar(&instanceID, "instance-id", config.Env("INSTANCE_ID", ""),
		"API instance ID reported by health checks (auto-generated if not provided)")
	fs.StringVar(&corsOrigins, "cors-origins", config.Env("CORS_ORIGINS", ""),
		"Comma-separated list of allowed CORS origins (* for all)")
}

// applyOverrides copies non-empty flag and environment values over cfg.
func applyOverrides(cfg *config.Config) {
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logEnv != "" {
		cfg.Logging.Environment = logging.Environment(logEnv)
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if policyFile != "" {
		cfg.PolicyFile = policyFile
	}
	if origins := parseCORSOrigins(corsOrigins); len(origins) > 0 {
		cfg.Server.CORSOrigins = origins
	}
}

// parseCORSOrigins splits the comma-separated CORS origins string.
func parseCORSOrigins(origins string) []string {
	var result []string
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			result = append(result, origin)
		}
	}
	return result
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting clusterplane-server",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("instance_id", instanceID),
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("default_api_version", cfg.API.DefaultVersion),
		zap.String("latest_api_version", cfg.API.LatestVersion),
	)

	if err := metrics.Init(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Server.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	enforcer, err := loadPolicy(cfg.PolicyFile, logger)
	if err != nil {
		return err
	}

	outbox := dispatch.NewOutbox(db.DB(), logger)
	sink, closeSink := newSink(cfg.Backend, logger)
	defer closeSink()

	relay := dispatch.NewRelay(dispatch.RelayConfig{
		Interval:        cfg.Backend.RelayInterval,
		BatchSize:       cfg.Backend.RelayBatchSize,
		DeliveryTimeout: cfg.Backend.Timeout,
	}, outbox, sink, logger)
	relay.Start()
	defer relay.Stop()

	clusters := service.NewClusterService(service.Dependencies{
		Repository: db,
		Templates:  db,
		Chain:      validation.NewChain(cfg.ValidationConfig()),
		Quota:      quota.NewGuard(db, cfg.Quotas.MaxClustersPerProject, logger),
		Policy:     enforcer,
		Dispatcher: outbox,
		MaxLimit:   cfg.API.MaxLimit,
	}, logger)

	router := api.SetupRouter(&api.RouterConfig{
		Clusters:       clusters,
		DB:             db,
		Logger:         logger,
		InstanceID:     instanceID,
		AllowOrigins:   cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		DefaultVersion: cfg.API.DefaultVersion,
		LatestVersion:  cfg.API.LatestVersion,
	})
	defer router.Close()

	go exportDBStats(ctx, db)

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func loadPolicy(path string, logger *zap.Logger) (*policy.Enforcer, error) {
	if path == "" {
		return policy.New(nil, logger)
	}
	return policy.Load(path, logger)
}

// newSink returns the delivery target for relayed commands and its cleanup.
func newSink(cfg config.BackendConfig, logger *zap.Logger) (dispatch.Sink, func()) {
	if cfg.URL == "" {
		logger.Warn("no backend configured, relayed commands are only logged")
		return dispatch.NewLogSink(logger), func() {}
	}

	sink := dispatch.NewHTTPSink(cfg.URL, cfg.Timeout)
	return sink, func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close backend client", zap.Error(err))
		}
	}
}

func exportDBStats(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordDBStats(db.DB().Stats())
		}
	}
}
