package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/internal/service"
	"github.com/yaroslav/clusterplane/internal/validation"
	"github.com/yaroslav/clusterplane/models"
)

func TestMapErrorToResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not acceptable", fmt.Errorf("%w: bad header", models.ErrNotAcceptable), http.StatusNotAcceptable, "not_acceptable", "not acceptable: bad header"},
		{"forbidden", models.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
		{"quota", fmt.Errorf("%w: 20 clusters", models.ErrResourceLimitExceeded), http.StatusForbidden, "resource_limit_exceeded", "resource limit exceeded: 20 clusters"},
		{"cluster missing", fmt.Errorf("%w: abc", models.ErrClusterNotFound), http.StatusNotFound, "not_found", "cluster not found: abc"},
		{"conflict", models.ErrConflict, http.StatusConflict, "conflict", "resource conflict"},
		{"patch", models.ErrPatchError, http.StatusBadRequest, "patch_error", "could not apply patch"},
		{"unsupported coe", models.ErrUnsupportedCOE, http.StatusBadRequest, "unsupported_coe", "unsupported container orchestration engine"},
		{"transport", fmt.Errorf("%w: queue full", models.ErrServiceUnavailable), http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable"},
		{"registry", models.ErrNoSuchVersionedOperation, http.StatusInternalServerError, "internal_error", "An internal error occurred"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			mapErrorToResponse(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestMapErrorToResponse_DriverError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	err := &validation.DriverError{
		Field:        "network driver",
		Phase:        validation.PhaseSupported,
		Value:        "weave",
		Alternatives: []string{"flannel", "calico", "unspecified"},
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	mapErrorToResponse(c, fmt.Errorf("template rejected: %w", err))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), err.Error())
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"1", "true", "True", "yes", "on", "y", "t"} {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.True(t, got, raw)
	}
	for _, raw := range []string{"", "0", "false", "NO", "off"} {
		got, err := parseBool(raw)
		require.NoError(t, err, raw)
		assert.False(t, got, raw)
	}

	_, err := parseBool("perhaps")
	assert.ErrorIs(t, err, models.ErrInvalidParameterValue)
}

func TestNextURL(t *testing.T) {
	got := nextURL("http://api/v1/clusters", 10, "abc", service.ListParams{SortKey: "name", SortDir: "desc"})
	assert.Equal(t, "http://api/v1/clusters?limit=10&marker=abc&sort_dir=desc&sort_key=name", got)
}

func TestRegistryRanges(t *testing.T) {
	h := NewClusterHandler(nil)

	tests := []struct {
		op       string
		versions []apiversion.Version
		variants int
	}{
		{OpCreate, []apiversion.Version{{Major: 1, Minor: 1}, {Major: 1, Minor: 9}, {Major: 1, Minor: 10}}, 2},
		{OpPatch, []apiversion.Version{{Major: 1, Minor: 1}, {Major: 1, Minor: 2}, {Major: 1, Minor: 3}, {Major: 1, Minor: 10}}, 3},
		{OpDelete, []apiversion.Version{{Major: 1, Minor: 1}, {Major: 1, Minor: 10}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			assert.Len(t, h.Registry().Methods(tt.op), tt.variants)
			for _, v := range tt.versions {
				_, err := h.Registry().Resolve(tt.op, v)
				assert.NoError(t, err, v.String())
			}
			_, err := h.Registry().Resolve(tt.op, apiversion.Version{Major: 1, Minor: 11})
			assert.ErrorIs(t, err, models.ErrNoSuchVersionedOperation)
		})
	}
}
