package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/clusterplane/internal/api/middleware"
	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/mutation"
	"github.com/yaroslav/clusterplane/internal/service"
	"github.com/yaroslav/clusterplane/internal/versioned"
	"github.com/yaroslav/clusterplane/models"
)

// ClusterService is the cluster business logic the handlers drive.
type ClusterService interface {
	List(ctx context.Context, rc service.RequestContext, params service.ListParams, detail bool) (*service.ClusterPage, error)
	Get(ctx context.Context, rc service.RequestContext, ident string) (*models.ClusterView, error)
	Create(ctx context.Context, rc service.RequestContext, req *models.ClusterCreateRequest, opts service.CreateOptions) (string, error)
	Update(ctx context.Context, rc service.RequestContext, ident string, ops []mutation.PatchOp, opts service.UpdateOptions) (string, error)
	Delete(ctx context.Context, rc service.RequestContext, ident string) error
}

// Versioned operation names.
const (
	OpList   = "get_all"
	OpDetail = "detail"
	OpGet    = "get_one"
	OpCreate = "post"
	OpPatch  = "patch"
	OpDelete = "delete"
)

// Microversion boundaries of the cluster endpoints.
var (
	rollbackVersion = apiversion.Version{Major: 1, Minor: 3}
	zeroNodeVersion = apiversion.Version{Major: 1, Minor: 10}
	lastNoRollback  = apiversion.Version{Major: 1, Minor: 2}
	lastNonZeroNode = apiversion.Version{Major: 1, Minor: 9}
)

// ClusterHandler handles the /v1/clusters endpoints.
//
// Each route resolves a handler variant for the negotiated microversion from
// a versioned registry, so behaviour that changed between versions lives in
// separate functions.
type ClusterHandler struct {
	service  ClusterService
	registry *versioned.Registry[gin.HandlerFunc]
}

// NewClusterHandler creates a cluster handler and registers every versioned
// variant in ascending version order.
//
// Parameters:
//   - svc: Cluster business logic
//
// Returns:
//   - Configured ClusterHandler
func NewClusterHandler(svc ClusterService) *ClusterHandler {
	h := &ClusterHandler{
		service:  svc,
		registry: versioned.NewRegistry[gin.HandlerFunc](),
	}

	base, maxVersion := apiversion.BaseVersion, apiversion.MaxVersion
	r := h.registry
	r.MustRegister(OpList, base, maxVersion, h.list(false))
	r.MustRegister(OpDetail, base, maxVersion, h.list(true))
	r.MustRegister(OpGet, base, maxVersion, h.get)

	r.MustRegister(OpCreate, base, lastNonZeroNode, h.create(service.CreateOptions{}))
	r.MustRegister(OpCreate, zeroNodeVersion, maxVersion, h.create(service.CreateOptions{AllowZeroNodeCount: true}))

	r.MustRegister(OpPatch, base, lastNoRollback, h.patch(false, false))
	r.MustRegister(OpPatch, rollbackVersion, lastNonZeroNode, h.patch(true, false))
	r.MustRegister(OpPatch, zeroNodeVersion, maxVersion, h.patch(true, true))

	r.MustRegister(OpDelete, base, maxVersion, h.remove)
	return h
}

// Registry exposes the versioned variants, mainly for inspection in tests.
func (h *ClusterHandler) Registry() *versioned.Registry[gin.HandlerFunc] {
	return h.registry
}

// List handles GET /v1/clusters.
func (h *ClusterHandler) List(c *gin.Context) { h.serve(c, OpList) }

// Detail handles GET /v1/clusters/detail.
func (h *ClusterHandler) Detail(c *gin.Context) { h.serve(c, OpDetail) }

// Get handles GET /v1/clusters/:ident.
func (h *ClusterHandler) Get(c *gin.Context) { h.serve(c, OpGet) }

// Create handles POST /v1/clusters.
//
// Response: 202 Accepted with {"uuid": "..."}; the backend builds the
// cluster asynchronously.
func (h *ClusterHandler) Create(c *gin.Context) { h.serve(c, OpCreate) }

// Patch handles PATCH /v1/clusters/:ident.
//
// Response: 202 Accepted with {"uuid": "..."}.
func (h *ClusterHandler) Patch(c *gin.Context) { h.serve(c, OpPatch) }

// Delete handles DELETE /v1/clusters/:ident.
//
// Response: 204 No Content.
func (h *ClusterHandler) Delete(c *gin.Context) { h.serve(c, OpDelete) }

func (h *ClusterHandler) serve(c *gin.Context, op string) {
	handler, err := h.registry.Resolve(op, middleware.GetAPIVersion(c))
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	handler(c)
}

func (h *ClusterHandler) list(detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := service.ListParams{
			Marker:  c.Query("marker"),
			SortKey: c.Query("sort_key"),
			SortDir: c.Query("sort_dir"),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				mapErrorToResponse(c, fmt.Errorf("%w: limit must be an integer", models.ErrInvalidParameterValue))
				return
			}
			params.Limit = limit
		}

		page, err := h.service.List(c.Request.Context(), requestContext(c), params, detail)
		if err != nil {
			mapErrorToResponse(c, err)
			return
		}

		host := hostURL(c)
		collection := models.ClusterCollection{}
		if detail {
			views := make([]models.ClusterView, 0, len(page.Views))
			for _, v := range page.Views {
				v.Links = clusterLinks(host, v.UUID)
				views = append(views, *v)
			}
			collection.Clusters = views
		} else {
			summaries := make([]models.ClusterSummary, 0, len(page.Clusters))
			for _, cl := range page.Clusters {
				summaries = append(summaries, summarize(host, cl))
			}
			collection.Clusters = summaries
		}

		if page.More && len(page.Clusters) > 0 {
			path := "/v1/clusters"
			if detail {
				path += "/detail"
			}
			collection.Next = nextURL(host+path, page.Limit, page.Clusters[len(page.Clusters)-1].UUID, params)
		}

		c.JSON(http.StatusOK, collection)
	}
}

func (h *ClusterHandler) get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), requestContext(c), c.Param("ident"))
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}

	view.Links = clusterLinks(hostURL(c), view.UUID)
	c.JSON(http.StatusOK, view)
}

func (h *ClusterHandler) create(opts service.CreateOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ClusterCreateRequest
		if err := decodeJSON(c, &req); err != nil {
			mapErrorToResponse(c, err)
			return
		}

		id, err := h.service.Create(c.Request.Context(), requestContext(c), &req, opts)
		if err != nil {
			mapErrorToResponse(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.ClusterID{UUID: id})
	}
}

// patch builds a patch variant. withRollback enables the rollback query
// parameter; allowZero permits resizing the default worker group to zero.
func (h *ClusterHandler) patch(withRollback, allowZero bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := service.UpdateOptions{AllowZeroNodeCount: allowZero}
		if withRollback {
			rollback, err := parseBool(c.Query("rollback"))
			if err != nil {
				mapErrorToResponse(c, err)
				return
			}
			opts.Rollback = &rollback
		}

		var ops []mutation.PatchOp
		if err := decodeJSON(c, &ops); err != nil {
			mapErrorToResponse(c, err)
			return
		}

		id, err := h.service.Update(c.Request.Context(), requestContext(c), c.Param("ident"), ops, opts)
		if err != nil {
			mapErrorToResponse(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.ClusterID{UUID: id})
	}
}

func (h *ClusterHandler) remove(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), requestContext(c), c.Param("ident")); err != nil {
		mapErrorToResponse(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requestContext builds the service view of the caller from the values the
// middleware stored.
func requestContext(c *gin.Context) service.RequestContext {
	identity, _ := middleware.GetIdentity(c)
	return service.RequestContext{
		RequestID: middleware.GetRequestID(c),
		ProjectID: identity.ProjectID,
		UserID:    identity.UserID,
		DomainID:  identity.DomainID,
		Roles:     identity.Roles,
		IsAdmin:   identity.IsAdmin,
		Version:   middleware.GetAPIVersion(c),
	}
}

// decodeJSON decodes the request body into v, refusing unknown attributes.
func decodeJSON(c *gin.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", models.ErrInvalidRequest, err)
	}
	return nil
}

var (
	trueStrings  = []string{"1", "t", "true", "on", "y", "yes"}
	falseStrings = []string{"0", "f", "false", "off", "n", "no"}
)

// parseBool reads a boolean query value; an empty value is false.
func parseBool(raw string) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return false, nil
	}
	for _, s := range trueStrings {
		if value == s {
			return true, nil
		}
	}
	for _, s := range falseStrings {
		if value == s {
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: unrecognized boolean value %q", models.ErrInvalidParameterValue, raw)
}

func clusterLinks(host, id string) []models.Link {
	return []models.Link{
		{Href: host + "/v1/clusters/" + id, Rel: "self"},
		{Href: host + "/clusters/" + id, Rel: "bookmark"},
	}
}

func summarize(host string, c *models.Cluster) models.ClusterSummary {
	return models.ClusterSummary{
		UUID:              c.UUID,
		Name:              c.Name,
		ClusterTemplateID: c.ClusterTemplateID,
		Keypair:           c.Keypair,
		DockerVolumeSize:  c.DockerVolumeSize,
		Labels:            c.Labels,
		NodeCount:         c.NodeCount,
		MasterCount:       c.MasterCount,
		Status:            c.Status,
		MasterFlavorID:    c.MasterFlavorID,
		FlavorID:          c.FlavorID,
		CreateTimeout:     c.CreateTimeout,
		StackID:           c.StackID,
		HealthStatus:      c.HealthStatus,
		Links:             clusterLinks(host, c.UUID),
	}
}

func nextURL(base string, limit int, marker string, params service.ListParams) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("marker", marker)
	if params.SortKey != "" {
		q.Set("sort_key", params.SortKey)
	}
	if params.SortDir != "" {
		q.Set("sort_dir", params.SortDir)
	}
	return base + "?" + q.Encode()
}
