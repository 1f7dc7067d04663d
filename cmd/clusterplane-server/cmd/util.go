package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yaroslav/clusterplane/internal/dispatch"
	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

var utilVerbose bool

var utilCmd = &cobra.Command{
	Use:   "util",
	Short: "Maintenance utilities operating directly on the database",
}

var compactCmd = &cobra.Command{
	Use:   "compact-db",
	Short: "Compact and optimize the database",
	Args:  cobra.NoArgs,
	RunE:  runCompact,
}

var seedTemplateCmd = &cobra.Command{
	Use:   "seed-template FILE",
	Short: "Create a cluster template from a YAML file",
	Long: `Create a cluster template from a YAML file.

Keys use the API attribute names (coe, network_driver, labels, ...). The
template is validated against the configured driver policy before it is
stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeedTemplate,
}

var setQuotaCmd = &cobra.Command{
	Use:   "set-quota PROJECT LIMIT",
	Short: "Set the cluster quota of a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetQuota,
}

var (
	commandStatus string
	commandLimit  int
)

var listCommandsCmd = &cobra.Command{
	Use:   "list-commands",
	Short: "List commands in the backend outbox",
	Args:  cobra.NoArgs,
	RunE:  runListCommands,
}

var analyze bool

func init() {
	rootCmd.AddCommand(utilCmd)
	utilCmd.AddCommand(compactCmd, seedTemplateCmd, setQuotaCmd, listCommandsCmd)

	utilCmd.PersistentFlags().BoolVarP(&utilVerbose, "verbose", "v", false, "Enable debug logging")
	compactCmd.Flags().BoolVar(&analyze, "analyze", true, "Run ANALYZE after VACUUM")
	listCommandsCmd.Flags().StringVar(&commandStatus, "status", "",
		"Only show commands in this state: pending, delivering, delivered or failed")
	listCommandsCmd.Flags().IntVar(&commandLimit, "limit", 50, "Maximum number of commands to show (0 for all)")
}

// openUtilStore loads the configuration and opens the database with a
// console logger.
func openUtilStore(ctx context.Context) (*store.Store, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Environment = logging.EnvironmentDevelopment
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.Level = "warn"
	if utilVerbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := store.Open(ctx, cfg.Server.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, logger, nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, logger, err := openUtilStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	if err := db.Compact(ctx, analyze); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Database compaction completed successfully")
	return nil
}

func runSeedTemplate(cmd *cobra.Command, args []string) error {
	tmpl, err := readTemplate(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	network, err := validation.ValidateClusterTemplate(validation.NewChain(cfg.ValidationConfig()), tmpl)
	if err != nil {
		return fmt.Errorf("template rejected: %w", err)
	}
	tmpl.NetworkDriver = network

	ctx := cmd.Context()
	db, logger, err := openUtilStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	if err := db.CreateTemplate(ctx, tmpl); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created cluster template %s (%s)\n", tmpl.Name, tmpl.UUID)
	return nil
}

// readTemplate decodes a YAML template file. The document is converted to
// JSON so the API attribute names in the model's json tags apply.
func readTemplate(path string) (*models.ClusterTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert template file %s: %w", path, err)
	}

	var tmpl models.ClusterTemplate
	if err := json.Unmarshal(encoded, &tmpl); err != nil {
		return nil, fmt.Errorf("invalid template file %s: %w", path, err)
	}
	if tmpl.Name == "" {
		return nil, fmt.Errorf("template file %s: name is required", path)
	}
	if tmpl.ServerType == "" {
		tmpl.ServerType = "vm"
	}
	return &tmpl, nil
}

func runSetQuota(cmd *cobra.Command, args []string) error {
	limit, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid limit %q: %w", args[1], err)
	}

	ctx := cmd.Context()
	db, logger, err := openUtilStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	q, err := db.SetQuota(ctx, args[0], models.QuotaResourceCluster, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Project %s may own %d clusters\n", q.ProjectID, q.HardLimit)
	return nil
}

func runListCommands(cmd *cobra.Command, args []string) error {
	status := models.CommandStatus(commandStatus)
	switch status {
	case "", models.CommandPending, models.CommandDelivering, models.CommandDelivered, models.CommandFailed:
	default:
		return fmt.Errorf("invalid status %q, expecting pending, delivering, delivered or failed", commandStatus)
	}

	ctx := cmd.Context()
	db, logger, err := openUtilStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer logger.Sync()

	commands, err := dispatch.NewOutbox(db.DB(), logger).List(ctx, status, commandLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tCLUSTER\tSTATUS\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, c := range commands {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Name, c.ClusterID, c.Status, c.Attempts,
			c.CreatedAt.Format("2006-01-02 15:04:05"), c.LastError)
	}
	return w.Flush()
}
