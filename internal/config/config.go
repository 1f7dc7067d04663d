// Package config loads the clusterplane service configuration.
//
// Settings come from, in increasing precedence: Default(), an optional YAML
// file, CLUSTERPLANE_* environment variables and command-line flags (the
// last two are bound by the server command).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/internal/quota"
	"github.com/yaroslav/clusterplane/internal/validation"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "CLUSTERPLANE_"

// Config is the complete service configuration.
type Config struct {
	Server          ServerConfig                  `yaml:"server"`
	Logging         logging.Config                `yaml:"logging"`
	API             APIConfig                     `yaml:"api"`
	Quotas          QuotaConfig                   `yaml:"quotas"`
	ClusterTemplate map[string]DriverPolicyConfig `yaml:"cluster_template"`
	Backend         BackendConfig                 `yaml:"backend"`
	PolicyFile      string                        `yaml:"policy_file"`
}

// ServerConfig holds HTTP listener and storage settings.
type ServerConfig struct {
	ListenAddr   string          `yaml:"listen_addr"`
	DatabasePath string          `yaml:"database_path"`
	CORSOrigins  []string        `yaml:"cors_origins"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds token bucket settings. A zero RPS disables a limiter.
type RateLimitConfig struct {
	PerIPRPS        float64 `yaml:"per_ip_rps"`
	PerIPBurst      int     `yaml:"per_ip_burst"`
	PerProjectRPS   float64 `yaml:"per_project_rps"`
	PerProjectBurst int     `yaml:"per_project_burst"`
}

// APIConfig holds version negotiation and paging settings.
type APIConfig struct {
	// DefaultVersion is the header value assumed when a request sends none
	DefaultVersion string `yaml:"default_version"`

	// LatestVersion is the header value substituted for "latest"
	LatestVersion string `yaml:"latest_version"`

	// MaxLimit caps the page size of collection requests
	MaxLimit int `yaml:"max_limit"`
}

// QuotaConfig holds quota defaults.
type QuotaConfig struct {
	// MaxClustersPerProject applies to projects without an explicit quota; zero uses the built-in default
	MaxClustersPerProject int `yaml:"max_clusters_per_project"`
}

// DriverPolicyConfig is the network driver policy for one COE.
type DriverPolicyConfig struct {
	AllowedNetworkDrivers []string `yaml:"allowed_network_drivers"`
	DefaultNetworkDriver  string   `yaml:"default_network_driver"`
}

// BackendConfig controls delivery of commands to the orchestrator.
type BackendConfig struct {
	// URL receives command envelopes; empty logs commands instead
	URL string `yaml:"url"`

	// Timeout bounds one delivery request
	Timeout time.Duration `yaml:"timeout"`

	// RelayInterval is the outbox scan period
	RelayInterval time.Duration `yaml:"relay_interval"`

	// RelayBatchSize caps commands delivered per scan
	RelayBatchSize int `yaml:"relay_batch_size"`
}

// Default returns a configuration with every value set.
func Default() Config {
	drivers := make(map[string]DriverPolicyConfig)
	for coe, dc := range validation.DefaultConfig() {
		drivers[string(coe)] = DriverPolicyConfig{
			AllowedNetworkDrivers: append([]string(nil), dc.AllowedNetworkDrivers...),
			DefaultNetworkDriver:  dc.DefaultNetworkDriver,
		}
	}

	return Config{
		Server: ServerConfig{
			ListenAddr:   ":9511",
			DatabasePath: "./clusterplane.db",
			RateLimit: RateLimitConfig{
				PerIPRPS:        20,
				PerIPBurst:      40,
				PerProjectRPS:   10,
				PerProjectBurst: 20,
			},
		},
		Logging: logging.DefaultConfig(),
		API: APIConfig{
			DefaultVersion: apiversion.BaseVersion.HeaderValue(),
			LatestVersion:  apiversion.MaxVersion.HeaderValue(),
			MaxLimit:       1000,
		},
		Quotas: QuotaConfig{
			MaxClustersPerProject: quota.DefaultMaxClustersPerProject,
		},
		ClusterTemplate: drivers,
		Backend: BackendConfig{
			Timeout:        10 * time.Second,
			RelayInterval:  2 * time.Second,
			RelayBatchSize: 50,
		},
	}
}

// Load returns Default() overlaid with the YAML file at path. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.DatabasePath == "" {
		return fmt.Errorf("server.database_path is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	defaultVersion, err := apiversion.Negotiate(c.API.DefaultVersion, "", "")
	if err == nil {
		err = apiversion.CheckSupported(defaultVersion)
	}
	if err != nil {
		return fmt.Errorf("api.default_version: %w", err)
	}
	latestVersion, err := apiversion.Negotiate(c.API.LatestVersion, "", "")
	if err == nil {
		err = apiversion.CheckSupported(latestVersion)
	}
	if err != nil {
		return fmt.Errorf("api.latest_version: %w", err)
	}
	if latestVersion.LessThan(defaultVersion) {
		return fmt.Errorf("api.latest_version %s is older than api.default_version %s", latestVersion, defaultVersion)
	}
	if c.API.MaxLimit < 1 {
		return fmt.Errorf("api.max_limit must be at least 1")
	}

	if c.Quotas.MaxClustersPerProject < 0 {
		return fmt.Errorf("quotas.max_clusters_per_project must not be negative")
	}

	if err := c.ValidationConfig().Validate(); err != nil {
		return fmt.Errorf("cluster_template: %w", err)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Backend.RelayInterval <= 0 {
		return fmt.Errorf("backend.relay_interval must be positive")
	}
	if c.Backend.RelayBatchSize < 1 {
		return fmt.Errorf("backend.relay_batch_size must be at least 1")
	}
	return nil
}

// ValidationConfig converts the per-COE driver policies.
func (c *Config) ValidationConfig() validation.Config {
	out := make(validation.Config, len(c.ClusterTemplate))
	for coe, dp := range c.ClusterTemplate {
		out[validation.COE(coe)] = validation.DriverConfig{
			AllowedNetworkDrivers: dp.AllowedNetworkDrivers,
			DefaultNetworkDriver:  dp.DefaultNetworkDriver,
		}
	}
	return out
}

// Env returns the CLUSTERPLANE_<key> environment variable, or fallback when unset.
func Env(key, fallback string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return fallback
}
