// Package cmd provides CLI commands for clusterplane-server.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yaroslav/clusterplane/internal/config"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	configPath string
	dbPath     string
)

// rootCmd runs the server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "clusterplane-server",
	Short: "Container cluster control plane API",
	Long: `clusterplane-server serves the versioned container cluster API.

It validates cluster requests against their templates, enforces project
quotas and policy, stores clusters in SQLite and hands create, update and
delete commands to the orchestration backend without waiting for them.

Settings come from the YAML file given with --config, CLUSTERPLANE_*
environment variables and flags, in increasing precedence.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.Env("CONFIG", ""),
		"Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.Env("DB_PATH", ""),
		"Path to SQLite database file (overrides server.database_path)")

	addServeFlags(rootCmd.Flags())
}

// loadConfig reads the configuration file and applies the database override.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.Server.DatabasePath = dbPath
	}
	return cfg, nil
}

// versionString returns formatted version information
func versionString() string {
	return fmt.Sprintf("clusterplane-server %s (commit: %s, built: %s)",
		Version, Commit, BuildDate)
}
