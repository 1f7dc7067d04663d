package mutation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaroslav/clusterplane/models"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func testTemplate() *models.ClusterTemplate {
	return &models.ClusterTemplate{
		UUID:              "5d12f6fd-a196-4bf0-ae4c-1f639a523a52",
		Name:              "k8s-template",
		COE:               "kubernetes",
		KeypairID:         "default-key",
		Labels:            map[string]interface{}{"a": "1", "b": "2"},
		DockerVolumeSize:  10,
		FlavorID:          "m1.small",
		MasterFlavorID:    "m1.medium",
		FixedNetwork:      "private",
		FixedSubnet:       "private-subnet",
		FloatingIPEnabled: true,
		MasterLBEnabled:   true,
	}
}

func TestApplyTemplateDefaults_FillsUnset(t *testing.T) {
	tmpl := testTemplate()
	req := &models.ClusterCreateRequest{ClusterTemplateID: "k8s-template"}

	c, err := ApplyTemplateDefaults(req, tmpl)
	require.NoError(t, err)

	assert.Equal(t, tmpl.UUID, c.ClusterTemplateID)
	assert.Equal(t, "default-key", c.Keypair)
	assert.Equal(t, 10, c.DockerVolumeSize)
	assert.Equal(t, "m1.small", c.FlavorID)
	assert.Equal(t, "m1.medium", c.MasterFlavorID)
	assert.Equal(t, "private", c.FixedNetwork)
	assert.Equal(t, "private-subnet", c.FixedSubnet)
	assert.True(t, c.FloatingIPEnabled)
	assert.True(t, c.MasterLBEnabled)
	assert.Equal(t, 1, c.NodeCount)
	assert.Equal(t, 1, c.MasterCount)
	assert.Equal(t, models.DefaultCreateTimeout, c.CreateTimeout)
	assert.Equal(t, map[string]interface{}{"a": "1", "b": "2"}, c.Labels)
}

func TestApplyTemplateDefaults_ClientValuesWin(t *testing.T) {
	tmpl := testTemplate()
	req := &models.ClusterCreateRequest{
		ClusterTemplateID: tmpl.UUID,
		Keypair:           "mine",
		NodeCount:         intPtr(0),
		MasterCount:       intPtr(3),
		DockerVolumeSize:  20,
		FlavorID:          "m1.large",
		FloatingIPEnabled: boolPtr(false),
		MasterLBEnabled:   boolPtr(false),
		CreateTimeout:     intPtr(15),
	}

	c, err := ApplyTemplateDefaults(req, tmpl)
	require.NoError(t, err)

	assert.Equal(t, "mine", c.Keypair)
	assert.Equal(t, 0, c.NodeCount)
	assert.Equal(t, 3, c.MasterCount)
	assert.Equal(t, 20, c.DockerVolumeSize)
	assert.Equal(t, "m1.large", c.FlavorID)
	assert.Equal(t, "m1.medium", c.MasterFlavorID)
	assert.False(t, c.FloatingIPEnabled)
	assert.False(t, c.MasterLBEnabled)
	assert.Equal(t, 15, c.CreateTimeout)
	assert.True(t, tmpl.FloatingIPEnabled, "template must not be modified")
}

func TestMergeLabels(t *testing.T) {
	tmplLabels := map[string]interface{}{"a": 1, "b": 2}
	client := map[string]interface{}{"b": 3, "c": 4}

	merged, err := MergeLabels(tmplLabels, client, true)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3, "c": 4}, merged)

	replaced, err := MergeLabels(tmplLabels, client, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"b": 3, "c": 4}, replaced)

	inherited, err := MergeLabels(tmplLabels, nil, true)
	require.NoError(t, err)
	assert.Equal(t, tmplLabels, inherited)

	inherited["z"] = 9
	merged["y"] = 8
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, tmplLabels, "template labels must not be mutated")

	diff := LabelsDiff(tmplLabels, map[string]interface{}{"a": 1, "b": 3, "c": 4})
	assert.Equal(t, map[string]interface{}{"b": 3}, diff.Overridden)
	assert.Equal(t, map[string]interface{}{"c": 4}, diff.Added)
	assert.Equal(t, map[string]interface{}{}, diff.Skipped)

	diff = LabelsDiff(tmplLabels, client)
	assert.Equal(t, map[string]interface{}{"b": 3}, diff.Overridden)
	assert.Equal(t, map[string]interface{}{"c": 4}, diff.Added)
	assert.Equal(t, map[string]interface{}{"a": 1}, diff.Skipped)
}

func TestLabelsDiff_NilMaps(t *testing.T) {
	diff := LabelsDiff(nil, nil)
	assert.NotNil(t, diff.Overridden)
	assert.NotNil(t, diff.Added)
	assert.NotNil(t, diff.Skipped)
	assert.Empty(t, diff.Added)
}

func existingCluster() models.Cluster {
	return models.Cluster{
		UUID:              "0b7b8c4f-7d2f-4b9b-9d17-4c2a5c0f1a11",
		Name:              "zeta-22-cluster",
		ClusterTemplateID: "5d12f6fd-a196-4bf0-ae4c-1f639a523a52",
		Keypair:           "default-key",
		NodeCount:         3,
		MasterCount:       1,
		Labels:            map[string]interface{}{"kube_tag": "v1.27.3", "max_pods": 110},
		CreateTimeout:     60,
		Status:            models.StatusCreateComplete,
		ProjectID:         "project-a",
		UserID:            "user-a",
	}
}

func ops(t *testing.T, doc string) []PatchOp {
	t.Helper()
	var out []PatchOp
	require.NoError(t, json.Unmarshal([]byte(doc), &out))
	return out
}

func TestApplyPatch_NodeCountOnly(t *testing.T) {
	orig := existingCluster()
	patch := ops(t, `[{"op":"replace","path":"/node_count","value":5}]`)

	patched, err := ApplyPatch(orig, patch)
	require.NoError(t, err)

	assert.Equal(t, 5, patched.NodeCount)
	assert.Equal(t, 3, orig.NodeCount, "original must not change")
	assert.Equal(t, []string{"node_count"}, Delta(orig, patched))
	assert.Equal(t, 5, EffectiveNodeCount(3, patch, patched))
}

func TestApplyPatch_HealthFields(t *testing.T) {
	orig := existingCluster()
	patch := ops(t, `[
		{"op":"replace","path":"/health_status","value":"UNHEALTHY"},
		{"op":"add","path":"/health_status_reason/api","value":"down"}
	]`)

	patched, err := ApplyPatch(orig, patch)
	require.NoError(t, err)

	assert.Equal(t, models.HealthUnhealthy, patched.HealthStatus)
	assert.Equal(t, map[string]string{"api": "down"}, patched.HealthStatusReason)
	assert.Equal(t, []string{"health_status", "health_status_reason"}, Delta(orig, patched))
	assert.Equal(t, 4, EffectiveNodeCount(4, patch, patched), "default worker size is used when node_count is untouched")
}

func TestApplyPatch_NameShowsInDelta(t *testing.T) {
	orig := existingCluster()
	patched, err := ApplyPatch(orig, ops(t, `[{"op":"replace","path":"/name","value":"renamed"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, Delta(orig, patched))
}

func TestApplyPatch_RemoveNodeCountResetsDefault(t *testing.T) {
	orig := existingCluster()
	patch := ops(t, `[{"op":"remove","path":"/node_count"}]`)

	patched, err := ApplyPatch(orig, patch)
	require.NoError(t, err)
	assert.Equal(t, 1, patched.NodeCount)
	assert.Equal(t, 1, EffectiveNodeCount(3, patch, patched))
}

func TestApplyPatch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"empty", `[]`, models.ErrPatchError},
		{"bad op", `[{"op":"move","path":"/node_count","from":"/master_count"}]`, models.ErrPatchError},
		{"bad path", `[{"op":"replace","path":"node_count","value":1}]`, models.ErrPatchError},
		{"internal attr", `[{"op":"replace","path":"/uuid","value":"x"}]`, models.ErrPatchError},
		{"internal nested", `[{"op":"add","path":"/node_addresses/0","value":"10.0.0.1"}]`, models.ErrPatchError},
		{"mandatory remove", `[{"op":"remove","path":"/cluster_template_id"}]`, models.ErrPatchError},
		{"missing value", `[{"op":"replace","path":"/node_count"}]`, models.ErrPatchError},
		{"null value", `[{"op":"replace","path":"/node_count","value":null}]`, models.ErrPatchError},
		{"null label", `[{"op":"add","path":"/labels/kube_tag","value": null }]`, models.ErrPatchError},
		{"unknown field", `[{"op":"add","path":"/bogus","value":1}]`, models.ErrPatchError},
		{"remove missing", `[{"op":"remove","path":"/labels/nope"}]`, models.ErrPatchError},
		{"wrong type", `[{"op":"replace","path":"/node_count","value":"many"}]`, models.ErrPatchError},
		{"negative count", `[{"op":"replace","path":"/node_count","value":-1}]`, models.ErrInvalidParameterValue},
		{"bad health", `[{"op":"replace","path":"/health_status","value":"SICK"}]`, models.ErrInvalidParameterValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPatch(existingCluster(), ops(t, tt.doc))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyPatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelta_EquateEmpty(t *testing.T) {
	a := existingCluster()
	b := existingCluster()
	a.HealthStatusReason = nil
	b.HealthStatusReason = map[string]string{}

	if got := Delta(a, b); len(got) != 0 {
		t.Errorf("Delta() = %v, want none", got)
	}
}

func TestFaultInfo(t *testing.T) {
	groups := []models.NodeGroup{
		{Name: "default-master", Status: models.StatusCreateComplete},
		{Name: "default-worker", Status: models.StatusCreateFailed, StatusReason: "quota exceeded"},
		{Name: "gpu", Status: models.StatusUpdateFailed, StatusReason: "flavor missing"},
	}

	want := map[string]string{"default-worker": "quota exceeded", "gpu": "flavor missing"}
	if got := FaultInfo(groups); !reflect.DeepEqual(got, want) {
		t.Errorf("FaultInfo() = %v, want %v", got, want)
	}
}
