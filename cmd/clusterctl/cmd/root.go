// Package cmd provides CLI commands for clusterctl.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaroslav/clusterplane/internal/config"
	"github.com/yaroslav/clusterplane/sdk"
)

var (
	// Version information (set at build time via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	apiURLs    []string
	projectID  string
	userID     string
	roles      []string
	apiVersion string
	timeout    time.Duration
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "clusterctl",
	Short: "Manage container clusters through the cluster API",
	Long: `clusterctl talks to one or more clusterplane-server instances.

Create, update and delete return as soon as the API accepts the request;
the backend finishes the work asynchronously. Use "clusterctl show" to
follow the cluster status.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&apiURLs, "url", splitList(config.Env("URL", "http://localhost:9511")),
		"API endpoint, repeat for failover")
	pf.StringVarP(&projectID, "project", "p", config.Env("PROJECT_ID", ""), "Project ID to act in")
	pf.StringVar(&userID, "user", config.Env("USER_ID", ""), "User ID to act as")
	pf.StringSliceVar(&roles, "roles", splitList(config.Env("ROLES", "")), "Roles of the caller")
	pf.StringVar(&apiVersion, "api-version", config.Env("API_VERSION", "latest"), "Requested API microversion")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	pf.StringVarP(&output, "output", "o", "table", "Output format: table or json")
}

func newClient() (*sdk.Client, error) {
	if output != "table" && output != "json" {
		return nil, fmt.Errorf("invalid output %q, expecting table or json", output)
	}
	return sdk.NewClient(sdk.ClientConfig{
		BaseURLs:   append([]string(nil), apiURLs...),
		ProjectID:  projectID,
		UserID:     userID,
		Roles:      roles,
		APIVersion: apiVersion,
		Timeout:    timeout,
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionString() string {
	return fmt.Sprintf("clusterctl %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
