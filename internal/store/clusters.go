package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/util"
	"github.com/yaroslav/clusterplane/models"
)

// Sort directions accepted by List.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// sortColumns maps accepted sort keys to columns.
var sortColumns = map[string]string{
	"id":                  "c.id",
	"uuid":                "c.uuid",
	"name":                "c.name",
	"status":              "c.status",
	"health_status":       "c.health_status",
	"cluster_template_id": "c.cluster_template_id",
	"project_id":          "c.project_id",
	"created_at":          "c.created_at",
	"updated_at":          "c.updated_at",
}

// ListOptions controls paging and ordering of List.
type ListOptions struct {
	Limit   int
	Marker  string
	SortKey string
	SortDir string
}

const clusterColumns = `
	c.uuid, c.name, c.project_id, c.user_id, c.cluster_template_id, c.keypair,
	COALESCE((SELECT ng.node_count FROM nodegroups ng
		WHERE ng.cluster_id = c.uuid AND ng.is_default = 1 AND ng.role = 'worker'), 0),
	COALESCE((SELECT ng.node_count FROM nodegroups ng
		WHERE ng.cluster_id = c.uuid AND ng.is_default = 1 AND ng.role = 'master'), 0),
	c.docker_volume_size, c.labels, c.master_flavor_id, c.flavor_id, c.create_timeout,
	c.stack_id, c.status, c.status_reason, c.health_status, c.health_status_reason,
	c.discovery_url, c.api_address, c.coe_version, c.container_version,
	c.fixed_network, c.fixed_subnet, c.floating_ip_enabled, c.master_lb_enabled,
	c.node_addresses, c.master_addresses, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCluster(row rowScanner) (*models.Cluster, error) {
	var (
		c                               models.Cluster
		labels, healthReason            string
		nodeAddrs, masterAddrs          string
		floatingIP, masterLB            int
		status, healthStatus, createdAt string
		updatedAt                       sql.NullString
	)

	err := row.Scan(
		&c.UUID, &c.Name, &c.ProjectID, &c.UserID, &c.ClusterTemplateID, &c.Keypair,
		&c.NodeCount, &c.MasterCount,
		&c.DockerVolumeSize, &labels, &c.MasterFlavorID, &c.FlavorID, &c.CreateTimeout,
		&c.StackID, &status, &c.StatusReason, &healthStatus, &healthReason,
		&c.DiscoveryURL, &c.APIAddress, &c.COEVersion, &c.ContainerVersion,
		&c.FixedNetwork, &c.FixedSubnet, &floatingIP, &masterLB,
		&nodeAddrs, &masterAddrs, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = models.ClusterStatus(status)
	c.HealthStatus = models.HealthStatus(healthStatus)
	c.FloatingIPEnabled = floatingIP == 1
	c.MasterLBEnabled = masterLB == 1

	if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	if err := json.Unmarshal([]byte(healthReason), &c.HealthStatusReason); err != nil {
		return nil, fmt.Errorf("failed to decode health_status_reason: %w", err)
	}
	if err := json.Unmarshal([]byte(nodeAddrs), &c.NodeAddresses); err != nil {
		return nil, fmt.Errorf("failed to decode node_addresses: %w", err)
	}
	if err := json.Unmarshal([]byte(masterAddrs), &c.MasterAddresses); err != nil {
		return nil, fmt.Errorf("failed to decode master_addresses: %w", err)
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &c, nil
}

func scopeClause(scope Scope, args []interface{}) (string, []interface{}) {
	if scope.AllProjects {
		return "1 = 1", args
	}
	return "c.project_id = ?", append(args, scope.ProjectID)
}

// Get returns the cluster identified by a uuid or a name unique within scope.
//
// Returns:
//   - *models.Cluster: the cluster with node and master counts of its default groups
//   - error: models.ErrClusterNotFound, or models.ErrConflict when the name is ambiguous
func (s *Store) Get(ctx context.Context, scope Scope, ident string) (*models.Cluster, error) {
	start := time.Now()

	if util.IsUUID(ident) {
		where, args := scopeClause(scope, []interface{}{ident})
		query := `SELECT ` + clusterColumns + ` FROM clusters c WHERE c.uuid = ? AND ` + where

		c, err := scanCluster(s.db.QueryRowContext(ctx, query, args...))
		observe("cluster_get", start, err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrClusterNotFound, ident)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get cluster: %w", err)
		}
		return c, nil
	}

	where, args := scopeClause(scope, []interface{}{ident})
	query := `SELECT ` + clusterColumns + ` FROM clusters c WHERE c.name = ? AND ` + where + ` LIMIT 2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	observe("cluster_get_by_name", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	defer rows.Close()

	var found []*models.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		found = append(found, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clusters: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", models.ErrClusterNotFound, ident)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: multiple clusters exist with name %s, use the cluster uuid instead",
			models.ErrConflict, ident)
	}
}

// List returns one page of clusters in scope.
//
// The marker is the uuid of the last cluster of the previous page. Unknown
// sort keys and directions fail with models.ErrInvalidParameterValue.
func (s *Store) List(ctx context.Context, scope Scope, opts ListOptions) ([]*models.Cluster, error) {
	sortKey := opts.SortKey
	if sortKey == "" {
		sortKey = "id"
	}
	column, ok := sortColumns[sortKey]
	if !ok {
		return nil, fmt.Errorf("%w: invalid sort key %q", models.ErrInvalidParameterValue, sortKey)
	}

	sortDir := opts.SortDir
	if sortDir == "" {
		sortDir = SortAsc
	}
	if sortDir != SortAsc && sortDir != SortDesc {
		return nil, fmt.Errorf("%w: invalid sort direction %q, expecting asc or desc",
			models.ErrInvalidParameterValue, sortDir)
	}

	where, args := scopeClause(scope, nil)

	if opts.Marker != "" {
		cmpOp := ">"
		if sortDir == SortDesc {
			cmpOp = "<"
		}
		where += fmt.Sprintf(` AND (%s, c.id) %s (SELECT %s, c.id FROM clusters c WHERE c.uuid = ?)`,
			column, cmpOp, column)
		args = append(args, opts.Marker)
	}

	query := fmt.Sprintf(`SELECT %s FROM clusters c WHERE %s ORDER BY %s %s, c.id %s`,
		clusterColumns, where, column, sortDir, sortDir)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	observe("cluster_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]*models.Cluster, 0)
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clusters: %w", err)
	}

	return clusters, nil
}

// Exists reports whether a cluster with the uuid exists in scope.
func (s *Store) Exists(ctx context.Context, scope Scope, clusterUUID string) (bool, error) {
	where, args := scopeClause(scope, []interface{}{clusterUUID})
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters c WHERE c.uuid = ? AND `+where, args...).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check cluster: %w", err)
	}
	return n > 0, nil
}

// CountAll returns the number of clusters owned by projectID.
func (s *Store) CountAll(ctx context.Context, projectID string) (int, error) {
	start := time.Now()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clusters WHERE project_id = ?`, projectID).Scan(&count)
	observe("cluster_count", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count clusters: %w", err)
	}
	return count, nil
}

// Create inserts a cluster together with its node groups in one transaction.
// CreatedAt is set when zero.
func (s *Store) Create(ctx context.Context, c *models.Cluster, groups []models.NodeGroup) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	labels, err := encodeJSON(nonNilLabels(c.Labels))
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	healthReason, err := encodeJSON(nonNilStrings(c.HealthStatusReason))
	if err != nil {
		return fmt.Errorf("failed to encode health_status_reason: %w", err)
	}
	nodeAddrs, _ := encodeJSON(nonNilSlice(c.NodeAddresses))
	masterAddrs, _ := encodeJSON(nonNilSlice(c.MasterAddresses))

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertCluster := `
		INSERT INTO clusters (
			uuid, name, project_id, user_id, cluster_template_id, keypair,
			docker_volume_size, labels, master_flavor_id, flavor_id, create_timeout,
			stack_id, status, status_reason, health_status, health_status_reason,
			discovery_url, api_address, coe_version, container_version,
			fixed_network, fixed_subnet, floating_ip_enabled, master_lb_enabled,
			node_addresses, master_addresses, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertCluster,
		c.UUID, c.Name, c.ProjectID, c.UserID, c.ClusterTemplateID, c.Keypair,
		c.DockerVolumeSize, labels, c.MasterFlavorID, c.FlavorID, c.CreateTimeout,
		c.StackID, string(c.Status), c.StatusReason, string(c.HealthStatus), healthReason,
		c.DiscoveryURL, c.APIAddress, c.COEVersion, c.ContainerVersion,
		c.FixedNetwork, c.FixedSubnet, boolToInt(c.FloatingIPEnabled), boolToInt(c.MasterLBEnabled),
		nodeAddrs, masterAddrs, formatTime(c.CreatedAt),
	)
	if err != nil {
		observe("cluster_create", start, err)
		if isUniqueConstraint(err) {
			return fmt.Errorf("%w: cluster %s already exists", models.ErrConflict, c.UUID)
		}
		return fmt.Errorf("failed to insert cluster: %w", err)
	}

	insertGroup := `
		INSERT INTO nodegroups (
			uuid, cluster_id, name, role, node_count, status, status_reason, is_default, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range groups {
		ng := &groups[i]
		if ng.UUID == "" {
			ng.UUID = uuid.New().String()
		}
		ng.ClusterID = c.UUID
		if ng.CreatedAt.IsZero() {
			ng.CreatedAt = c.CreatedAt
		}
		_, err = tx.ExecContext(ctx, insertGroup,
			ng.UUID, ng.ClusterID, ng.Name, string(ng.Role), ng.NodeCount,
			string(ng.Status), ng.StatusReason, boolToInt(ng.IsDefault), formatTime(ng.CreatedAt),
		)
		if err != nil {
			observe("cluster_create", start, err)
			if isUniqueConstraint(err) {
				return fmt.Errorf("%w: node group %s already exists", models.ErrConflict, ng.Name)
			}
			return fmt.Errorf("failed to insert node group: %w", err)
		}
	}

	err = tx.Commit()
	observe("cluster_create", start, err)
	if err != nil {
		return fmt.Errorf("failed to commit cluster: %w", err)
	}

	s.logger.Debug("cluster stored",
		zap.String("cluster_id", c.UUID),
		zap.String("project_id", c.ProjectID),
		zap.Int("nodegroups", len(groups)),
	)
	return nil
}

// UpdateStatus sets the status and reason of a cluster.
func (s *Store) UpdateStatus(ctx context.Context, clusterUUID string, status models.ClusterStatus, reason string) error {
	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE clusters SET status = ?, status_reason = ?, updated_at = ? WHERE uuid = ?`,
		string(status), reason, formatTime(time.Now()), clusterUUID,
	)
	observe("cluster_update_status", start, err)
	if err != nil {
		return fmt.Errorf("failed to update cluster status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrClusterNotFound, clusterUUID)
	}
	return nil
}

// Destroy removes a cluster and its node groups.
func (s *Store) Destroy(ctx context.Context, clusterUUID string) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodegroups WHERE cluster_id = ?`, clusterUUID); err != nil {
		return fmt.Errorf("failed to delete node groups: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE uuid = ?`, clusterUUID)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", models.ErrClusterNotFound, clusterUUID)
	}

	err = tx.Commit()
	observe("cluster_destroy", start, err)
	if err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// NodeGroups returns the node groups of a cluster, default groups first.
func (s *Store) NodeGroups(ctx context.Context, clusterUUID string) ([]models.NodeGroup, error) {
	query := `
		SELECT uuid, cluster_id, name, role, node_count, status, status_reason, is_default, created_at
		FROM nodegroups
		WHERE cluster_id = ?
		ORDER BY is_default DESC, name ASC
	`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, clusterUUID)
	observe("nodegroup_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list node groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.NodeGroup, 0, 2)
	for rows.Next() {
		var (
			ng                      models.NodeGroup
			role, status, createdAt string
			isDefault               int
		)
		if err := rows.Scan(&ng.UUID, &ng.ClusterID, &ng.Name, &role, &ng.NodeCount,
			&status, &ng.StatusReason, &isDefault, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan node group: %w", err)
		}
		ng.Role = models.NodeGroupRole(role)
		ng.Status = models.ClusterStatus(status)
		ng.IsDefault = isDefault == 1
		if ng.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse node group created_at: %w", err)
		}
		groups = append(groups, ng)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node groups: %w", err)
	}
	return groups, nil
}

// UpdateNodeGroupStatus records a node group status reported by the backend.
func (s *Store) UpdateNodeGroupStatus(ctx context.Context, clusterUUID, name string, status models.ClusterStatus, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodegroups SET status = ?, status_reason = ? WHERE cluster_id = ? AND name = ?`,
		string(status), reason, clusterUUID, name,
	)
	if err != nil {
		return fmt.Errorf("failed to update node group status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: node group %s", models.ErrNotFound, name)
	}
	return nil
}

func nonNilLabels(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func nonNilStrings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
