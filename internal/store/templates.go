package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yaroslav/clusterplane/internal/util"
	"github.com/yaroslav/clusterplane/models"
)

const templateColumns = `
	uuid, name, project_id, coe, server_type, cluster_distro, keypair_id, labels,
	volume_driver, network_driver, docker_storage_driver, docker_volume_size,
	flavor_id, master_flavor_id, fixed_network, fixed_subnet,
	floating_ip_enabled, master_lb_enabled, public, created_at`

func scanTemplate(row rowScanner) (*models.ClusterTemplate, error) {
	var (
		t                              models.ClusterTemplate
		labels, createdAt              string
		floatingIP, masterLB, isPublic int
	)

	err := row.Scan(
		&t.UUID, &t.Name, &t.ProjectID, &t.COE, &t.ServerType, &t.ClusterDistro, &t.KeypairID, &labels,
		&t.VolumeDriver, &t.NetworkDriver, &t.DockerStorageDriver, &t.DockerVolumeSize,
		&t.FlavorID, &t.MasterFlavorID, &t.FixedNetwork, &t.FixedSubnet,
		&floatingIP, &masterLB, &isPublic, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.FloatingIPEnabled = floatingIP == 1
	t.MasterLBEnabled = masterLB == 1
	t.Public = isPublic == 1
	if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode template labels: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse template created_at: %w", err)
	}
	return &t, nil
}

// Template resolves a cluster template by uuid or name. Public templates and
// templates of scope's project are visible.
//
// Returns:
//   - *models.ClusterTemplate: the template
//   - error: models.ErrClusterTemplateNotFound, or models.ErrConflict for an ambiguous name
func (s *Store) Template(ctx context.Context, scope Scope, ident string) (*models.ClusterTemplate, error) {
	visible := "(public = 1 OR project_id = ?)"
	args := []interface{}{ident, scope.ProjectID}
	if scope.AllProjects {
		visible = "1 = 1"
		args = args[:1]
	}

	column := "name"
	if util.IsUUID(ident) {
		column = "uuid"
	}
	query := fmt.Sprintf(`SELECT %s FROM cluster_templates WHERE %s = ? AND %s LIMIT 2`, templateColumns, column, visible)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	observe("template_get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster template: %w", err)
	}
	defer rows.Close()

	var found []*models.ClusterTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster template: %w", err)
		}
		found = append(found, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cluster templates: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", models.ErrClusterTemplateNotFound, ident)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: multiple cluster templates exist with name %s, use the uuid instead",
			models.ErrConflict, ident)
	}
}

// TemplateByUUID returns a template regardless of project. It is used to
// compute label diffs for clusters already bound to the template.
func (s *Store) TemplateByUUID(ctx context.Context, templateUUID string) (*models.ClusterTemplate, error) {
	start := time.Now()
	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM cluster_templates WHERE uuid = ?`, templateUUID))
	observe("template_get_by_uuid", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrClusterTemplateNotFound, templateUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster template: %w", err)
	}
	return t, nil
}

// CreateTemplate stores a cluster template, generating its uuid when empty.
func (s *Store) CreateTemplate(ctx context.Context, t *models.ClusterTemplate) error {
	if t.UUID == "" {
		t.UUID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.ServerType == "" {
		t.ServerType = "vm"
	}

	labels, err := encodeJSON(nonNilLabels(t.Labels))
	if err != nil {
		return fmt.Errorf("failed to encode template labels: %w", err)
	}

	query := `
		INSERT INTO cluster_templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	start := time.Now()
	_, err = s.db.ExecContext(ctx, query,
		t.UUID, t.Name, t.ProjectID, t.COE, t.ServerType, t.ClusterDistro, t.KeypairID, labels,
		t.VolumeDriver, t.NetworkDriver, t.DockerStorageDriver, t.DockerVolumeSize,
		t.FlavorID, t.MasterFlavorID, t.FixedNetwork, t.FixedSubnet,
		boolToInt(t.FloatingIPEnabled), boolToInt(t.MasterLBEnabled), boolToInt(t.Public), formatTime(t.CreatedAt),
	)
	observe("template_create", start, err)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("%w: cluster template %s already exists", models.ErrConflict, t.UUID)
		}
		return fmt.Errorf("failed to insert cluster template: %w", err)
	}
	return nil
}
