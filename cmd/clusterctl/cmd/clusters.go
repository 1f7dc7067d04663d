package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yaroslav/clusterplane/models"
	"github.com/yaroslav/clusterplane/sdk"
)

var (
	listOpts   sdk.ListOptions
	listAll    bool
	listDetail bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters of the project",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show IDENT",
	Short: "Show a cluster by uuid or name",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var (
	createReq         models.ClusterCreateRequest
	createNodeCount   int
	createMasterCount int
	createLabels      []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Request a new cluster",
	Args:  cobra.NoArgs,
	RunE:  runCreate,
}

var (
	updateSet      []string
	updateRemove   []string
	updateRollback bool
)

var updateCmd = &cobra.Command{
	Use:   "update IDENT",
	Short: "Patch a cluster",
	Long: `Patch a cluster with replace and remove operations.

--set takes PATH=VALUE. VALUE is decoded as JSON when possible and sent as
a string otherwise, so --set node_count=3 sends a number and
--set labels/kube_tag=v1.28.0 sends a string.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete IDENT",
	Short: "Request deletion of a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Show client version and the API versions offered by the server",
	Args:  cobra.NoArgs,
	RunE:  runVersions,
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, createCmd, updateCmd, deleteCmd, versionsCmd)

	listCmd.Flags().IntVar(&listOpts.Limit, "limit", 0, "Page size (server maximum when 0)")
	listCmd.Flags().StringVar(&listOpts.Marker, "marker", "", "UUID of the last cluster of the previous page")
	listCmd.Flags().StringVar(&listOpts.SortKey, "sort-key", "", "Attribute to sort by")
	listCmd.Flags().StringVar(&listOpts.SortDir, "sort-dir", "", "Sort direction: asc or desc")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Follow next links until the last page")
	listCmd.Flags().BoolVar(&listDetail, "detail", false, "Request the full cluster view")

	f := createCmd.Flags()
	f.StringVar(&createReq.Name, "name", "", "Cluster name (generated when empty)")
	f.StringVar(&createReq.ClusterTemplateID, "template", "", "Cluster template uuid or name")
	f.StringVar(&createReq.Keypair, "keypair", "", "Keypair (template value when empty)")
	f.IntVar(&createNodeCount, "node-count", 1, "Number of worker nodes")
	f.IntVar(&createMasterCount, "master-count", 1, "Number of master nodes")
	f.StringVar(&createReq.FlavorID, "flavor", "", "Worker flavor")
	f.StringVar(&createReq.MasterFlavorID, "master-flavor", "", "Master flavor")
	f.StringArrayVar(&createLabels, "label", nil, "Label KEY=VALUE, repeatable")
	f.BoolVar(&createReq.MergeLabels, "merge-labels", false, "Merge labels with the template labels")
	_ = createCmd.MarkFlagRequired("template")

	updateCmd.Flags().StringArrayVar(&updateSet, "set", nil, "Replace PATH=VALUE, repeatable")
	updateCmd.Flags().StringArrayVar(&updateRemove, "remove", nil, "Remove PATH, repeatable")
	updateCmd.Flags().BoolVar(&updateRollback, "rollback", false, "Roll back on failure")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()
	ctx := cmd.Context()

	if listDetail {
		page, err := client.ListClustersDetail(ctx, listOpts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	}

	var clusters []models.ClusterSummary
	next := ""
	if listAll {
		clusters, err = client.ListAllClusters(ctx, listOpts)
	} else {
		var page *sdk.ClusterList
		page, err = client.ListClusters(ctx, listOpts)
		if page != nil {
			clusters, next = page.Clusters, page.Next
		}
	}
	if err != nil {
		return err
	}

	if output == "json" {
		return printJSON(cmd.OutOrStdout(), sdk.ClusterList{Clusters: clusters, Next: next})
	}
	if err := printSummaries(cmd.OutOrStdout(), clusters); err != nil {
		return err
	}
	if next != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "more results: %s\n", next)
	}
	return nil
}

func printSummaries(w io.Writer, clusters []models.ClusterSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tSTATUS\tHEALTH\tMASTERS\tNODES")
	for _, c := range clusters {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			c.UUID, c.Name, c.Status, c.HealthStatus, c.MasterCount, c.NodeCount)
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	view, err := client.GetCluster(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if output == "json" {
		return printJSON(cmd.OutOrStdout(), view)
	}
	return printView(cmd.OutOrStdout(), view)
}

func printView(w io.Writer, v *models.ClusterView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "uuid\t%s\n", v.UUID)
	fmt.Fprintf(tw, "name\t%s\n", v.Name)
	fmt.Fprintf(tw, "status\t%s\n", v.Status)
	if v.StatusReason != "" {
		fmt.Fprintf(tw, "status_reason\t%s\n", v.StatusReason)
	}
	fmt.Fprintf(tw, "health_status\t%s\n", v.HealthStatus)
	fmt.Fprintf(tw, "cluster_template_id\t%s\n", v.ClusterTemplateID)
	fmt.Fprintf(tw, "master_count\t%d\n", v.MasterCount)
	fmt.Fprintf(tw, "node_count\t%d\n", v.NodeCount)
	fmt.Fprintf(tw, "api_address\t%s\n", v.APIAddress)
	fmt.Fprintf(tw, "labels\t%s\n", formatLabels(v.Labels))
	for group, reason := range v.Faults {
		fmt.Fprintf(tw, "fault[%s]\t%s\n", group, reason)
	}
	return tw.Flush()
}

func formatLabels(labels map[string]interface{}) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

func runCreate(cmd *cobra.Command, args []string) error {
	req := createReq
	if cmd.Flags().Changed("node-count") {
		req.NodeCount = &createNodeCount
	}
	if cmd.Flags().Changed("master-count") {
		req.MasterCount = &createMasterCount
	}
	labels, err := parseLabels(createLabels)
	if err != nil {
		return err
	}
	req.Labels = labels

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.CreateCluster(cmd.Context(), &req)
	if err != nil {
		return err
	}
	return printAccepted(cmd.OutOrStdout(), "create", id)
}

// parseLabels turns KEY=VALUE pairs into a label map.
func parseLabels(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	labels := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label %q, expecting KEY=VALUE", pair)
		}
		labels[key] = value
	}
	return labels, nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ops, err := buildPatch(updateSet, updateRemove)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.UpdateCluster(cmd.Context(), args[0], ops, sdk.UpdateOptions{Rollback: updateRollback})
	if err != nil {
		return err
	}
	return printAccepted(cmd.OutOrStdout(), "update", id)
}

// buildPatch converts --set and --remove flags into patch operations.
func buildPatch(set, remove []string) ([]sdk.PatchOp, error) {
	if len(set) == 0 && len(remove) == 0 {
		return nil, fmt.Errorf("nothing to update, use --set or --remove")
	}

	ops := make([]sdk.PatchOp, 0, len(set)+len(remove))
	for _, s := range set {
		path, raw, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q, expecting PATH=VALUE", s)
		}

		var value interface{} = raw
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			value = decoded
		}

		op, err := sdk.Replace(patchPath(path), value)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	for _, path := range remove {
		ops = append(ops, sdk.Remove(patchPath(path)))
	}
	return ops, nil
}

func patchPath(path string) string {
	return "/" + strings.TrimPrefix(path, "/")
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteCluster(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Delete of cluster %s accepted\n", args[0])
	return nil
}

func printAccepted(w io.Writer, action, id string) error {
	if output == "json" {
		return printJSON(w, models.ClusterID{UUID: id})
	}
	_, err := fmt.Fprintf(w, "✓ Request to %s cluster %s accepted\n", action, id)
	return err
}

func runVersions(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), versionString())

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	versions, err := client.Versions(cmd.Context())
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Fprintf(cmd.OutOrStdout(), "API %s (%s): %s - %s\n", v.ID, v.Status, v.MinVersion, v.MaxVersion)
	}
	return nil
}
