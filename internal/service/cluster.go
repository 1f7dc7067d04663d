package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/dispatch"
	"github.com/yaroslav/clusterplane/internal/logging"
	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/internal/mutation"
	"github.com/yaroslav/clusterplane/internal/namegen"
	"github.com/yaroslav/clusterplane/internal/policy"
	"github.com/yaroslav/clusterplane/internal/quota"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/internal/util"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

// DefaultMaxLimit caps list page sizes when no limit is configured.
const DefaultMaxLimit = 1000

// Dependencies are the collaborators of ClusterService.
type Dependencies struct {
	Repository Repository
	Templates  TemplateProvider
	Chain      *validation.Chain
	Quota      *quota.Guard
	Policy     *policy.Enforcer
	Dispatcher dispatch.Dispatcher
	Names      *namegen.Generator

	// MaxLimit caps list page sizes
	MaxLimit int
}

// ClusterService implements the cluster operations.
type ClusterService struct {
	repo       Repository
	templates  TemplateProvider
	chain      *validation.Chain
	quota      *quota.Guard
	policy     *policy.Enforcer
	dispatcher dispatch.Dispatcher
	names      *namegen.Generator
	maxLimit   int
	logger     *zap.Logger
}

// NewClusterService creates a cluster service.
//
// Parameters:
//   - deps: Collaborators; a nil Names uses a randomly seeded generator
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Configured ClusterService
func NewClusterService(deps Dependencies, logger *zap.Logger) *ClusterService {
	if deps.Names == nil {
		deps.Names = namegen.New()
	}
	if deps.MaxLimit <= 0 {
		deps.MaxLimit = DefaultMaxLimit
	}
	return &ClusterService{
		repo:       deps.Repository,
		templates:  deps.Templates,
		chain:      deps.Chain,
		quota:      deps.Quota,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		names:      deps.Names,
		maxLimit:   deps.MaxLimit,
		logger:     logger,
	}
}

// log returns the request logger carried by ctx, falling back to the
// service logger outside a request.
func (s *ClusterService) log(ctx context.Context) *zap.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

// ListParams are the paging and sorting parameters of a list request.
type ListParams struct {
	// Limit is the page size; zero means the configured maximum
	Limit int

	// Marker is the uuid of the last cluster of the previous page
	Marker string

	SortKey string
	SortDir string
}

// ClusterPage is one page of a list request.
type ClusterPage struct {
	Clusters []*models.Cluster

	// Views holds the expanded form of Clusters for detail requests
	Views []*models.ClusterView

	// Limit is the effective page size
	Limit int

	// More is true when the page is full and another may follow
	More bool
}

// List returns a page of clusters visible to the caller. Admins see every
// project when the *_all_projects policy passes.
func (s *ClusterService) List(ctx context.Context, rc RequestContext, params ListParams, detail bool) (page *ClusterPage, err error) {
	defer func() { recordOperation("list", err) }()

	creds := rc.Credentials()
	scope := store.ProjectScope(rc.ProjectID)
	action, allProjectsAction := policy.ActionGetAll, policy.ActionGetAllAllProjects
	if detail {
		action, allProjectsAction = policy.ActionDetail, policy.ActionDetailAllProjects
	}
	if rc.IsAdmin {
		if err := s.policy.Enforce(creds, allProjectsAction, nil); err != nil {
			return nil, err
		}
		scope.AllProjects = true
	}
	if err := s.policy.Enforce(creds, action, nil); err != nil {
		return nil, err
	}

	limit, err := s.validateLimit(params.Limit)
	if err != nil {
		return nil, err
	}

	if params.Marker != "" {
		ok, err := s.repo.Exists(ctx, scope, params.Marker)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: marker %s", models.ErrClusterNotFound, params.Marker)
		}
	}

	clusters, err := s.repo.List(ctx, scope, store.ListOptions{
		Limit:   limit,
		Marker:  params.Marker,
		SortKey: params.SortKey,
		SortDir: params.SortDir,
	})
	if err != nil {
		return nil, err
	}

	page = &ClusterPage{Clusters: clusters, Limit: limit, More: len(clusters) == limit}
	if detail {
		labels := make(map[string]map[string]interface{})
		for _, c := range clusters {
			view, err := s.expand(ctx, c, labels)
			if err != nil {
				return nil, err
			}
			page.Views = append(page.Views, view)
		}
	}
	return page, nil
}

func (s *ClusterService) validateLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must be positive", models.ErrInvalidParameterValue)
	}
	if limit == 0 || limit > s.maxLimit {
		return s.maxLimit, nil
	}
	return limit, nil
}

// Get returns one cluster with its label diff and, when failed, its faults.
func (s *ClusterService) Get(ctx context.Context, rc RequestContext, ident string) (view *models.ClusterView, err error) {
	defer func() { recordOperation("get", err) }()

	cluster, err := s.lookup(ctx, rc, ident, policy.ActionGetOneAllProjects, policy.ActionGet)
	if err != nil {
		return nil, err
	}

	return s.expand(ctx, cluster, nil)
}

// expand builds the full view of a cluster: its label diff against the
// template and, when failed, its faults. templateLabels caches template
// labels by uuid and may be nil.
func (s *ClusterService) expand(ctx context.Context, cluster *models.Cluster, templateLabels map[string]map[string]interface{}) (*models.ClusterView, error) {
	parent, cached := templateLabels[cluster.ClusterTemplateID]
	if !cached {
		tmpl, err := s.templates.TemplateByUUID(ctx, cluster.ClusterTemplateID)
		switch {
		case err == nil:
			parent = tmpl.Labels
		case errors.Is(err, models.ErrClusterTemplateNotFound):
			s.log(ctx).Warn("cluster template missing, reporting labels as added",
				zap.String("cluster_id", cluster.UUID),
				zap.String("cluster_template_id", cluster.ClusterTemplateID),
			)
		default:
			return nil, err
		}
		if templateLabels != nil {
			templateLabels[cluster.ClusterTemplateID] = parent
		}
	}

	view := &models.ClusterView{
		Cluster:   *cluster,
		LabelDiff: mutation.LabelsDiff(parent, cluster.Labels),
	}

	if cluster.Status.IsFailed() {
		groups, err := s.repo.NodeGroups(ctx, cluster.UUID)
		if err != nil {
			return nil, err
		}
		view.Faults = mutation.FaultInfo(groups)
	}
	return view, nil
}

// lookup resolves ident in the caller's scope and checks the per-cluster
// policy. Admins get all-projects scope when allProjectsAction passes.
func (s *ClusterService) lookup(ctx context.Context, rc RequestContext, ident, allProjectsAction, action string) (*models.Cluster, error) {
	creds := rc.Credentials()
	scope := store.ProjectScope(rc.ProjectID)
	if rc.IsAdmin {
		if err := s.policy.Enforce(creds, allProjectsAction, nil); err != nil {
			return nil, err
		}
		scope.AllProjects = true
	}

	cluster, err := s.repo.Get(ctx, scope, ident)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Enforce(creds, action, clusterTarget(cluster)); err != nil {
		return nil, err
	}
	return cluster, nil
}

// CreateOptions carry the version-dependent create rules.
type CreateOptions struct {
	// AllowZeroNodeCount permits a default worker group of size zero
	AllowZeroNodeCount bool
}

// Create validates a create request, stores the cluster as
// CREATE_IN_PROGRESS and dispatches cluster_create. It returns the new uuid
// without waiting for the backend.
func (s *ClusterService) Create(ctx context.Context, rc RequestContext, req *models.ClusterCreateRequest, opts CreateOptions) (id string, err error) {
	defer func() { recordOperation("create", err) }()

	if err := s.policy.Enforce(rc.Credentials(), policy.ActionCreate, nil); err != nil {
		return "", err
	}

	if !opts.AllowZeroNodeCount && req.EffectiveNodeCount() == 0 {
		return "", fmt.Errorf("%w: node_count must be at least 1 at API version %s",
			models.ErrZeroNodeCountNotSupported, rc.Version)
	}
	if req.EffectiveNodeCount() < 0 {
		return "", fmt.Errorf("%w: node_count must not be negative", models.ErrInvalidParameterValue)
	}
	if req.EffectiveCreateTimeout() < 0 {
		return "", fmt.Errorf("%w: create_timeout must not be negative", models.ErrInvalidParameterValue)
	}
	if req.Name != "" {
		if err := util.ValidateClusterName(req.Name); err != nil {
			return "", err
		}
	}

	if err := s.quota.Check(ctx, rc.ProjectID); err != nil {
		return "", err
	}

	if req.ClusterTemplateID == "" {
		return "", fmt.Errorf("%w: cluster_template_id is required", models.ErrInvalidParameterValue)
	}
	tmpl, err := s.templates.Template(ctx, store.ProjectScope(rc.ProjectID), req.ClusterTemplateID)
	if errors.Is(err, models.ErrClusterTemplateNotFound) {
		return "", fmt.Errorf("%w: cluster template %s not found", models.ErrInvalidParameterValue, req.ClusterTemplateID)
	}
	if err != nil {
		return "", err
	}

	if _, err := validation.ValidateClusterTemplate(s.chain, tmpl); err != nil {
		return "", err
	}
	if err := validation.ValidateVolumeStorageSize(tmpl, req.DockerVolumeSize); err != nil {
		return "", err
	}

	cluster, err := mutation.ApplyTemplateDefaults(req, tmpl)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateMasterCount(cluster.MasterCount, cluster.MasterLBEnabled); err != nil {
		return "", err
	}

	if cluster.Name == "" {
		cluster.Name = s.names.ClusterName()
	}

	cluster.UUID = uuid.New().String()
	cluster.ProjectID = rc.ProjectID
	cluster.UserID = rc.UserID
	cluster.Status = models.StatusCreateInProgress

	groups := []models.NodeGroup{
		{
			Name:      models.DefaultMasterGroupName,
			Role:      models.RoleMaster,
			NodeCount: cluster.MasterCount,
			Status:    models.StatusCreateInProgress,
			IsDefault: true,
		},
		{
			Name:      models.DefaultWorkerGroupName,
			Role:      models.RoleWorker,
			NodeCount: cluster.NodeCount,
			Status:    models.StatusCreateInProgress,
			IsDefault: true,
		},
	}
	if err := s.repo.Create(ctx, &cluster, groups); err != nil {
		return "", err
	}

	cmd := models.ClusterCreateCommand{
		Cluster:       cluster,
		MasterCount:   cluster.MasterCount,
		NodeCount:     cluster.NodeCount,
		CreateTimeout: cluster.CreateTimeout,
	}
	if err := s.dispatcher.Dispatch(ctx, models.CommandClusterCreate, cluster.UUID, cmd); err != nil {
		s.log(ctx).Warn("create dispatch failed, removing cluster",
			zap.String("cluster_id", cluster.UUID),
			zap.Error(err),
		)
		if derr := s.repo.Destroy(ctx, cluster.UUID); derr != nil {
			s.log(ctx).Error("failed to remove undispatched cluster",
				zap.String("cluster_id", cluster.UUID),
				zap.Error(derr),
			)
		}
		return "", err
	}

	s.log(ctx).Info("cluster create accepted",
		zap.String("cluster_id", cluster.UUID),
		zap.String("name", cluster.Name),
		zap.String("project_id", cluster.ProjectID),
		zap.String("cluster_template_id", tmpl.UUID),
		zap.Int("node_count", cluster.NodeCount),
		zap.Int("master_count", cluster.MasterCount),
	)
	return cluster.UUID, nil
}

// UpdateOptions carry the version-dependent update rules.
type UpdateOptions struct {
	// AllowZeroNodeCount permits resizing the default worker group to zero
	AllowZeroNodeCount bool

	// Rollback is forwarded to the backend; nil omits the flag entirely
	Rollback *bool
}

// Update applies a JSON patch to a snapshot of the cluster, checks that only
// node_count and the health fields changed and dispatches cluster_update.
func (s *ClusterService) Update(ctx context.Context, rc RequestContext, ident string, ops []mutation.PatchOp, opts UpdateOptions) (id string, err error) {
	defer func() { recordOperation("update", err) }()

	cluster, err := s.lookup(ctx, rc, ident, policy.ActionUpdateAllProjects, policy.ActionUpdate)
	if err != nil {
		return "", err
	}
	if err := s.policy.Enforce(rc.Credentials(), policy.ActionUpdateHealthStatus, nil); err != nil {
		return "", err
	}

	patched, err := mutation.ApplyPatch(*cluster, ops)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateClusterProperties(mutation.Delta(*cluster, patched)); err != nil {
		return "", err
	}

	groups, err := s.repo.NodeGroups(ctx, cluster.UUID)
	if err != nil {
		return "", err
	}
	workerCount := cluster.NodeCount
	if worker := models.DefaultWorker(groups); worker != nil {
		workerCount = worker.NodeCount
	}
	nodeCount := mutation.EffectiveNodeCount(workerCount, ops, patched)
	if !opts.AllowZeroNodeCount && nodeCount == 0 {
		return "", fmt.Errorf("%w: node_count must be at least 1 at API version %s",
			models.ErrZeroNodeCountNotSupported, rc.Version)
	}

	cmd := models.ClusterUpdateCommand{
		ClusterID:          cluster.UUID,
		NodeCount:          nodeCount,
		HealthStatus:       patched.HealthStatus,
		HealthStatusReason: patched.HealthStatusReason,
		Rollback:           opts.Rollback,
	}
	if err := s.dispatcher.Dispatch(ctx, models.CommandClusterUpdate, cluster.UUID, cmd); err != nil {
		return "", err
	}

	s.log(ctx).Info("cluster update accepted",
		zap.String("cluster_id", cluster.UUID),
		zap.Int("node_count", nodeCount),
		zap.String("health_status", string(patched.HealthStatus)),
		zap.Bool("rollback_flag", opts.Rollback != nil && *opts.Rollback),
	)
	return cluster.UUID, nil
}

// Delete marks the cluster DELETE_IN_PROGRESS and dispatches cluster_delete.
// The previous status is restored when the command cannot be dispatched.
func (s *ClusterService) Delete(ctx context.Context, rc RequestContext, ident string) (err error) {
	defer func() { recordOperation("delete", err) }()

	cluster, err := s.lookup(ctx, rc, ident, policy.ActionDeleteAllProjects, policy.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, cluster.UUID, models.StatusDeleteInProgress, ""); err != nil {
		return err
	}

	cmd := models.ClusterDeleteCommand{ClusterID: cluster.UUID}
	if err := s.dispatcher.Dispatch(ctx, models.CommandClusterDelete, cluster.UUID, cmd); err != nil {
		s.log(ctx).Warn("delete dispatch failed, restoring status",
			zap.String("cluster_id", cluster.UUID),
			zap.String("status", string(cluster.Status)),
			zap.Error(err),
		)
		if rerr := s.repo.UpdateStatus(ctx, cluster.UUID, cluster.Status, cluster.StatusReason); rerr != nil {
			s.log(ctx).Error("failed to restore cluster status",
				zap.String("cluster_id", cluster.UUID),
				zap.Error(rerr),
			)
		}
		return err
	}

	s.log(ctx).Info("cluster delete accepted", zap.String("cluster_id", cluster.UUID))
	return nil
}

func recordOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ClusterOperations.WithLabelValues(operation, status).Inc()
}
