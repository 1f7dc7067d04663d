// Package service implements the cluster API operations on top of the
// repository, the validation and mutation pipelines, the quota guard, the
// policy oracle and the command dispatcher.
package service

import (
	"context"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/policy"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/models"
)

// RequestContext carries the caller identity and negotiated API version.
type RequestContext struct {
	RequestID string
	ProjectID string
	UserID    string
	DomainID  string
	Roles     []string
	IsAdmin   bool
	Version   apiversion.Version
}

// Credentials returns the identity in the form the policy oracle reads.
func (rc RequestContext) Credentials() policy.Credentials {
	return policy.Credentials{
		ProjectID: rc.ProjectID,
		UserID:    rc.UserID,
		DomainID:  rc.DomainID,
		Roles:     rc.Roles,
		IsAdmin:   rc.IsAdmin,
	}
}

// Repository is the cluster persistence the service needs.
type Repository interface {
	Get(ctx context.Context, scope store.Scope, ident string) (*models.Cluster, error)
	List(ctx context.Context, scope store.Scope, opts store.ListOptions) ([]*models.Cluster, error)
	Exists(ctx context.Context, scope store.Scope, clusterUUID string) (bool, error)
	Create(ctx context.Context, c *models.Cluster, groups []models.NodeGroup) error
	UpdateStatus(ctx context.Context, clusterUUID string, status models.ClusterStatus, reason string) error
	Destroy(ctx context.Context, clusterUUID string) error
	NodeGroups(ctx context.Context, clusterUUID string) ([]models.NodeGroup, error)
}

// TemplateProvider resolves cluster templates.
type TemplateProvider interface {
	Template(ctx context.Context, scope store.Scope, ident string) (*models.ClusterTemplate, error)
	TemplateByUUID(ctx context.Context, templateUUID string) (*models.ClusterTemplate, error)
}

func clusterTarget(c *models.Cluster) map[string]string {
	return map[string]string{
		"project_id": c.ProjectID,
		"user_id":    c.UserID,
	}
}
