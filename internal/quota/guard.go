// Package quota enforces the per-project cluster limit.
package quota

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/models"
)

// DefaultMaxClustersPerProject applies when neither configuration nor an
// explicit quota record sets a limit.
const DefaultMaxClustersPerProject = 20

// Source provides the counts and explicit limits the guard reads.
type Source interface {
	// GetQuota returns models.ErrQuotaNotFound when no explicit quota exists.
	GetQuota(ctx context.Context, projectID, resource string) (*models.Quota, error)
	CountAll(ctx context.Context, projectID string) (int, error)
}

// Guard checks whether a project may create another cluster.
//
// The check reads the count and the limit without holding a lock. Two
// concurrent creates can both pass before either cluster is counted.
type Guard struct {
	source       Source
	defaultLimit int
	logger       *zap.Logger
}

// NewGuard creates a guard. A non-positive defaultLimit uses DefaultMaxClustersPerProject.
func NewGuard(source Source, defaultLimit int, logger *zap.Logger) *Guard {
	if defaultLimit <= 0 {
		defaultLimit = DefaultMaxClustersPerProject
	}
	return &Guard{source: source, defaultLimit: defaultLimit, logger: logger}
}

// Limit returns the effective cluster limit for projectID.
func (g *Guard) Limit(ctx context.Context, projectID string) (int, error) {
	q, err := g.source.GetQuota(ctx, projectID, models.QuotaResourceCluster)
	if errors.Is(err, models.ErrQuotaNotFound) {
		return g.defaultLimit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load quota: %w", err)
	}
	return q.HardLimit, nil
}

// Check fails with models.ErrResourceLimitExceeded when the project already
// owns as many clusters as its limit allows.
func (g *Guard) Check(ctx context.Context, projectID string) error {
	limit, err := g.Limit(ctx, projectID)
	if err != nil {
		return err
	}

	count, err := g.source.CountAll(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to count clusters: %w", err)
	}

	if count >= limit {
		metrics.QuotaRejections.Inc()
		g.logger.Info("cluster quota reached",
			zap.String("project_id", projectID),
			zap.Int("limit", limit),
			zap.Int("count", count),
		)
		return fmt.Errorf("%w: you have reached the maximum clusters per project, %d. You may delete a cluster to make room for a new one",
			models.ErrResourceLimitExceeded, limit)
	}
	return nil
}
