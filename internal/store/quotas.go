package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yaroslav/clusterplane/models"
)

// GetQuota returns the explicit quota of projectID for resource.
// It fails with models.ErrQuotaNotFound when none is set.
func (s *Store) GetQuota(ctx context.Context, projectID, resource string) (*models.Quota, error) {
	var q models.Quota

	start := time.Now()
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, resource, hard_limit FROM quotas WHERE project_id = ? AND resource = ?`,
		projectID, resource,
	).Scan(&q.ID, &q.ProjectID, &q.Resource, &q.HardLimit)
	observe("quota_get", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrQuotaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get quota: %v", models.ErrDatabaseError, err)
	}
	return &q, nil
}

// SetQuota creates or replaces the explicit quota of projectID for resource.
func (s *Store) SetQuota(ctx context.Context, projectID, resource string, hardLimit int) (*models.Quota, error) {
	if hardLimit < 0 {
		return nil, fmt.Errorf("%w: hard_limit must not be negative", models.ErrInvalidParameterValue)
	}

	query := `
		INSERT INTO quotas (project_id, resource, hard_limit)
		VALUES (?, ?, ?)
		ON CONFLICT(project_id, resource) DO UPDATE SET hard_limit = excluded.hard_limit
	`
	start := time.Now()
	_, err := s.db.ExecContext(ctx, query, projectID, resource, hardLimit)
	observe("quota_set", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to set quota: %w", err)
	}

	return s.GetQuota(ctx, projectID, resource)
}
