package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/internal/api"
	"github.com/yaroslav/clusterplane/internal/config"
	"github.com/yaroslav/clusterplane/internal/dispatch"
	"github.com/yaroslav/clusterplane/internal/policy"
	"github.com/yaroslav/clusterplane/internal/quota"
	"github.com/yaroslav/clusterplane/internal/service"
	"github.com/yaroslav/clusterplane/internal/store"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ClientConfig
		wantErr bool
	}{
		{"valid", ClientConfig{BaseURLs: []string{"https://api.example.com/"}, ProjectID: "p1"}, false},
		{"no urls", ClientConfig{ProjectID: "p1"}, true},
		{"empty url", ClientConfig{BaseURLs: []string{" "}, ProjectID: "p1"}, true},
		{"bad scheme", ClientConfig{BaseURLs: []string{"ftp://api"}, ProjectID: "p1"}, true},
		{"no project", ClientConfig{BaseURLs: []string{"http://api"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://api.example.com", tt.config.BaseURLs[0])
			assert.Equal(t, "latest", tt.config.APIVersion)
			assert.Equal(t, 3, tt.config.RetryAttempts)
			assert.Equal(t, 30*time.Second, tt.config.Timeout)
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	err := error(&APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: "cluster not found"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.True(t, IsNotFound(err))

	assert.ErrorIs(t, &APIError{StatusCode: http.StatusBadGateway}, ErrServerError)
	assert.ErrorIs(t, &APIError{StatusCode: http.StatusServiceUnavailable}, ErrUnavailable)
	assert.Equal(t, "request failed with status 418", (&APIError{StatusCode: 418}).Error())
}

func TestPatchOps(t *testing.T) {
	op, err := Replace("/node_count", 3)
	require.NoError(t, err)
	assert.Equal(t, PatchOp{Op: "replace", Path: "/node_count", Value: []byte("3")}, op)

	_, err = Add("/labels", func() {})
	assert.Error(t, err)

	assert.Equal(t, PatchOp{Op: "remove", Path: "/node_count"}, Remove("/node_count"))
}

func TestNextMarker(t *testing.T) {
	marker, err := nextMarker("http://api/v1/clusters?limit=2&marker=abc&sort_key=name")
	require.NoError(t, err)
	assert.Equal(t, "abc", marker)

	_, err = nextMarker("http://[::1")
	assert.Error(t, err)
}

type testServer struct {
	url        string
	dispatcher *dispatch.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	s, err := store.OpenMemory(ctx, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateTemplate(ctx, &models.ClusterTemplate{
		Name:           "k8s",
		ProjectID:      "p1",
		COE:            "kubernetes",
		KeypairID:      "default-key",
		NetworkDriver:  "flannel",
		FlavorID:       "m1.small",
		MasterFlavorID: "m1.medium",
		Public:         true,
	}))

	enforcer, err := policy.New(nil, logger)
	require.NoError(t, err)

	mem := dispatch.NewMemory(100, logger)
	svc := service.NewClusterService(service.Dependencies{
		Repository: s,
		Templates:  s,
		Chain:      validation.NewChain(validation.DefaultConfig()),
		Quota:      quota.NewGuard(s, 10, logger),
		Policy:     enforcer,
		Dispatcher: mem,
		MaxLimit:   2,
	}, logger)

	cfg := config.Default()
	router := api.SetupRouter(&api.RouterConfig{
		Clusters:       svc,
		DB:             s,
		Logger:         logger,
		InstanceID:     "sdk-test",
		DefaultVersion: cfg.API.DefaultVersion,
		LatestVersion:  cfg.API.LatestVersion,
	})
	t.Cleanup(router.Close)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, dispatcher: mem}
}

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURLs:      urls,
		ProjectID:     "p1",
		UserID:        "u1",
		Roles:         []string{"member"},
		RetryAttempts: 1,
		RetryWaitMin:  time.Millisecond,
		RetryWaitMax:  5 * time.Millisecond,
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_ClusterLifecycle(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.url)
	ctx := context.Background()

	versions, err := client.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.10", versions[0].MaxVersion)

	zero := 0
	id, err := client.CreateCluster(ctx, &models.ClusterCreateRequest{
		Name:              "alpha",
		ClusterTemplateID: "k8s",
		NodeCount:         &zero,
		Labels:            map[string]interface{}{"extra": "1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	view, err := client.GetCluster(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, id, view.UUID)
	assert.Equal(t, 0, view.NodeCount)
	assert.Equal(t, "1", view.Added["extra"])

	op, err := Replace("/node_count", 2)
	require.NoError(t, err)
	updated, err := client.UpdateCluster(ctx, id, []PatchOp{op}, UpdateOptions{Rollback: true})
	require.NoError(t, err)
	assert.Equal(t, id, updated)

	require.NoError(t, client.DeleteCluster(ctx, id))

	cmds := srv.dispatcher.Drain()
	require.Len(t, cmds, 3)
	assert.Equal(t, models.CommandClusterCreate, cmds[0].Name)
	assert.Equal(t, models.CommandClusterUpdate, cmds[1].Name)
	assert.Equal(t, models.CommandClusterDelete, cmds[2].Name)
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.url)
	ctx := context.Background()

	_, err := client.GetCluster(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)

	_, err = client.CreateCluster(ctx, &models.ClusterCreateRequest{ClusterTemplateID: "nope"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestClient_ListAllClusters(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.url)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := client.CreateCluster(ctx, &models.ClusterCreateRequest{Name: name, ClusterTemplateID: "k8s"})
		require.NoError(t, err)
	}

	page, err := client.ListClusters(ctx, ListOptions{SortKey: "name"})
	require.NoError(t, err)
	assert.Len(t, page.Clusters, 2)
	assert.NotEmpty(t, page.Next)

	all, err := client.ListAllClusters(ctx, ListOptions{SortKey: "name"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "gamma", all[2].Name)

	detail, err := client.ListClustersDetail(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, detail.Clusters, 1)
	assert.NotEmpty(t, detail.Clusters[0].Links)
}

func TestClient_Failover(t *testing.T) {
	srv := newTestServer(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := newTestClient(t, deadURL, srv.url)
	_, err := client.Versions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.url, client.orderedURLs()[0])
}

func TestClient_AllInstancesFailed(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	client := newTestClient(t, deadURL)
	_, err := client.Versions(context.Background())
	assert.ErrorIs(t, err, ErrAllInstancesFailed)
}
