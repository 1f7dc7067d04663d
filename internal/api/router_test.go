package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/api/middleware"
	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/config"
	"github.com/yaroslav/clusterplane/internal/dispatch"
	"github.com/yaroslav/clusterplane/internal/namegen"
	"github.com/yaroslav/clusterplane/internal/policy"
	"github.com/yaroslav/clusterplane/internal/quota"
	"github.com/yaroslav/clusterplane/internal/service"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

type testAPI struct {
	router     *Router
	store      *store.Store
	dispatcher *dispatch.Memory
	template   *models.ClusterTemplate
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	s, err := store.OpenMemory(ctx, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tmpl := &models.ClusterTemplate{
		Name:                "k8s",
		ProjectID:           "p1",
		COE:                 "kubernetes",
		KeypairID:           "default-key",
		Labels:              map[string]interface{}{"kube_tag": "v1.27.3"},
		NetworkDriver:       "flannel",
		DockerStorageDriver: "overlay2",
		FlavorID:            "m1.small",
		MasterFlavorID:      "m1.medium",
		Public:              true,
	}
	require.NoError(t, s.CreateTemplate(ctx, tmpl))

	enforcer, err := policy.New(nil, logger)
	require.NoError(t, err)

	mem := dispatch.NewMemory(100, logger)
	svc := service.NewClusterService(service.Dependencies{
		Repository: s,
		Templates:  s,
		Chain:      validation.NewChain(validation.DefaultConfig()),
		Quota:      quota.NewGuard(s, 3, logger),
		Policy:     enforcer,
		Dispatcher: mem,
		Names:      namegen.NewSeeded(7, 7),
		MaxLimit:   2,
	}, logger)

	cfg := config.Default()
	router := SetupRouter(&RouterConfig{
		Clusters:       svc,
		DB:             s,
		Logger:         logger,
		InstanceID:     "test-instance",
		AllowOrigins:   []string{"*"},
		RateLimit:      config.RateLimitConfig{PerIPRPS: 1000, PerIPBurst: 1000, PerProjectRPS: 1000, PerProjectBurst: 1000},
		DefaultVersion: cfg.API.DefaultVersion,
		LatestVersion:  cfg.API.LatestVersion,
	})
	t.Cleanup(router.Close)

	return &testAPI{router: router, store: s, dispatcher: mem, template: tmpl}
}

// do sends a request as a member of project p1 at the given version; an
// empty version sends no version header.
func (a *testAPI) do(t *testing.T, method, path, version, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ProjectIDHeader, "p1")
	req.Header.Set(middleware.UserIDHeader, "u1")
	req.Header.Set(middleware.RolesHeader, "member")
	if version != "" {
		req.Header.Set(apiversion.Header, "container-infra "+version)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) create(t *testing.T, version, body string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/clusters", version, body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp models.ClusterID
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.UUID)
	return resp.UUID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRootDocuments(t *testing.T) {
	a := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"max_version":"1.10"`)
	assert.Contains(t, w.Body.String(), `"min_version":"1.1"`)

	req = httptest.NewRequest(http.MethodGet, "/v1/", nil)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"v1"`)
}

func TestHealth(t *testing.T) {
	a := setupAPI(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	require.NoError(t, a.store.Close())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVersionHeaders(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/v1/clusters", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "container-infra 1.1", w.Header().Get(apiversion.Header))
	assert.Equal(t, "container-infra 1.1", w.Header().Get(apiversion.MinimumHeader))
	assert.Equal(t, "container-infra 1.10", w.Header().Get(apiversion.MaximumHeader))

	w = a.do(t, http.MethodGet, "/v1/clusters", "latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "container-infra 1.10", w.Header().Get(apiversion.Header))
}

func TestVersionNotAcceptable(t *testing.T) {
	a := setupAPI(t)

	tests := []struct {
		name   string
		header string
	}{
		{"too new", "container-infra 1.11"},
		{"too old", "container-infra 1.0"},
		{"wrong service", "compute 1.5"},
		{"garbage version", "container-infra one.two"},
		{"single token", "container-infra"},
		{"blank", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/clusters", nil)
			req.Header.Set(apiversion.Header, tt.header)
			req.Header.Set(middleware.ProjectIDHeader, "p1")
			w := httptest.NewRecorder()
			a.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotAcceptable, w.Code)
			assert.Equal(t, "container-infra 1.10", w.Header().Get(apiversion.MaximumHeader))
			assert.Equal(t, "not_acceptable", decodeError(t, w).Error)
		})
	}
}

func TestIdentityRequired(t *testing.T) {
	a := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/clusters", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "unauthorized", resp.Error)
	assert.NotEmpty(t, resp.RequestID)
}

func TestCreate_ZeroNodeCountByVersion(t *testing.T) {
	a := setupAPI(t)
	body := `{"cluster_template_id":"k8s","node_count":0}`

	w := a.do(t, http.MethodPost, "/v1/clusters", "1.9", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "zero_node_count_not_supported", decodeError(t, w).Error)
	assert.Empty(t, a.dispatcher.Drain())

	id := a.create(t, "1.10", body)
	cmds := a.dispatcher.Drain()
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CommandClusterCreate, cmds[0].Name)
	assert.Equal(t, id, cmds[0].ClusterID)
}

func TestCreate_Errors(t *testing.T) {
	a := setupAPI(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed body", `{"cluster_template_id":`, http.StatusBadRequest, "invalid_request"},
		{"unknown attribute", `{"cluster_template_id":"k8s","bogus":1}`, http.StatusBadRequest, "invalid_request"},
		{"missing template", `{"name":"x"}`, http.StatusBadRequest, "invalid_parameter_value"},
		{"unknown template", `{"cluster_template_id":"nope"}`, http.StatusBadRequest, "invalid_parameter_value"},
		{"bad master count", `{"cluster_template_id":"k8s","master_count":0}`, http.StatusBadRequest, "invalid_parameter_value"},
		{"bad name", `{"cluster_template_id":"k8s","name":"1-bad"}`, http.StatusBadRequest, "invalid_parameter_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/v1/clusters", "1.10", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Error)
		})
	}
}

func TestCreate_Quota(t *testing.T) {
	a := setupAPI(t)

	for i := 0; i < 3; i++ {
		a.create(t, "1.10", `{"cluster_template_id":"k8s"}`)
	}

	w := a.do(t, http.MethodPost, "/v1/clusters", "1.10", `{"cluster_template_id":"k8s"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "resource_limit_exceeded", decodeError(t, w).Error)
}

func TestGetAndList(t *testing.T) {
	a := setupAPI(t)

	first := a.create(t, "1.10", `{"name":"alpha","cluster_template_id":"k8s","labels":{"kube_tag":"v1.28.0","extra":"1"}}`)
	a.create(t, "1.10", `{"name":"beta","cluster_template_id":"k8s"}`)
	a.create(t, "1.10", `{"name":"gamma","cluster_template_id":"k8s"}`)

	w := a.do(t, http.MethodGet, "/v1/clusters/alpha", "1.10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view models.ClusterView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, first, view.UUID)
	assert.Equal(t, "v1.28.0", view.Overridden["kube_tag"])
	assert.Equal(t, "1", view.Added["extra"])
	require.Len(t, view.Links, 2)
	assert.Equal(t, "http://example.com/v1/clusters/"+first, view.Links[0].Href)

	w = a.do(t, http.MethodGet, "/v1/clusters?sort_key=name", "1.10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Clusters []models.ClusterSummary `json:"clusters"`
		Next     string                  `json:"next"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Clusters, 2)
	assert.Equal(t, "alpha", page.Clusters[0].Name)
	assert.Contains(t, page.Next, "marker="+page.Clusters[1].UUID)
	assert.Contains(t, page.Next, "sort_key=name")
	assert.NotContains(t, w.Body.String(), "labels_added")

	w = a.do(t, http.MethodGet, "/v1/clusters/detail?limit=5", "1.10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "labels_added")

	w = a.do(t, http.MethodGet, "/v1/clusters?limit=abc", "1.10", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/v1/clusters/nope", "1.10", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatch_RollbackByVersion(t *testing.T) {
	a := setupAPI(t)
	id := a.create(t, "1.10", `{"cluster_template_id":"k8s","node_count":2}`)
	a.dispatcher.Drain()

	patch := `[{"op":"replace","path":"/node_count","value":3}]`

	w := a.do(t, http.MethodPatch, "/v1/clusters/"+id+"?rollback=true", "1.2", patch)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	cmds := a.dispatcher.Drain()
	require.Len(t, cmds, 1)
	var update models.ClusterUpdateCommand
	require.NoError(t, json.Unmarshal(cmds[0].Payload, &update))
	assert.Nil(t, update.Rollback)
	assert.Equal(t, 3, update.NodeCount)

	w = a.do(t, http.MethodPatch, "/v1/clusters/"+id+"?rollback=true", "1.3", patch)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	cmds = a.dispatcher.Drain()
	require.Len(t, cmds, 1)
	update = models.ClusterUpdateCommand{}
	require.NoError(t, json.Unmarshal(cmds[0].Payload, &update))
	require.NotNil(t, update.Rollback)
	assert.True(t, *update.Rollback)

	w = a.do(t, http.MethodPatch, "/v1/clusters/"+id+"?rollback=maybe", "1.3", patch)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatch_ZeroNodeCountByVersion(t *testing.T) {
	a := setupAPI(t)
	id := a.create(t, "1.10", `{"cluster_template_id":"k8s"}`)
	a.dispatcher.Drain()

	patch := `[{"op":"replace","path":"/node_count","value":0}]`

	w := a.do(t, http.MethodPatch, "/v1/clusters/"+id, "1.9", patch)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "zero_node_count_not_supported", decodeError(t, w).Error)

	w = a.do(t, http.MethodPatch, "/v1/clusters/"+id, "1.10", patch)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestPatch_Rejections(t *testing.T) {
	a := setupAPI(t)
	id := a.create(t, "1.10", `{"cluster_template_id":"k8s"}`)

	tests := []struct {
		name  string
		patch string
	}{
		{"name is immutable", `[{"op":"replace","path":"/name","value":"renamed"}]`},
		{"uuid is internal", `[{"op":"replace","path":"/uuid","value":"x"}]`},
		{"not an array", `{"op":"replace"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPatch, "/v1/clusters/"+id, "1.10", tt.patch)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestDelete(t *testing.T) {
	a := setupAPI(t)
	id := a.create(t, "1.10", `{"cluster_template_id":"k8s"}`)
	a.dispatcher.Drain()

	w := a.do(t, http.MethodDelete, "/v1/clusters/"+id, "1.10", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	cmds := a.dispatcher.Drain()
	require.Len(t, cmds, 1)
	assert.Equal(t, models.CommandClusterDelete, cmds[0].Name)

	w = a.do(t, http.MethodGet, "/v1/clusters/"+id, "1.10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.StatusDeleteInProgress))
}

func TestDispatchUnavailable(t *testing.T) {
	a := setupAPI(t)
	a.dispatcher.SetFailure(models.ErrServiceUnavailable)

	w := a.do(t, http.MethodPost, "/v1/clusters", "1.10", `{"cluster_template_id":"k8s"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service temporarily unavailable", decodeError(t, w).Message)
}

func TestMetricsEndpoint(t *testing.T) {
	a := setupAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
