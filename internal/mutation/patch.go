package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/yaroslav/clusterplane/models"
)

// Patch operation kinds accepted from clients.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// PatchOp is one operation of a JSON patch document.
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

var patchPathPattern = regexp.MustCompile(`^(/[\w-]+)+$`)

// internalAttrs are read-only or server managed and never patchable.
var internalAttrs = map[string]struct{}{
	"/created_at":              {},
	"/id":                      {},
	"/links":                   {},
	"/updated_at":              {},
	"/uuid":                    {},
	"/project_id":              {},
	"/user_id":                 {},
	"/api_address":             {},
	"/node_addresses":          {},
	"/master_addresses":        {},
	"/stack_id":                {},
	"/ca_cert_ref":             {},
	"/magnum_cert_ref":         {},
	"/trust_id":                {},
	"/trustee_user_name":       {},
	"/trustee_password":        {},
	"/trustee_user_id":         {},
	"/etcd_ca_cert_ref":        {},
	"/front_proxy_ca_cert_ref": {},
}

// mandatoryAttrs may be replaced but not removed.
var mandatoryAttrs = map[string]struct{}{
	"/cluster_template_id": {},
}

// ValidatePatchOps checks the shape of every operation before it is applied.
func ValidatePatchOps(ops []PatchOp) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: patch document is empty", models.ErrPatchError)
	}

	for i, op := range ops {
		switch op.Op {
		case OpAdd, OpReplace, OpRemove:
		default:
			return fmt.Errorf("%w: operation %d: unsupported op %q", models.ErrPatchError, i, op.Op)
		}

		if !patchPathPattern.MatchString(op.Path) {
			return fmt.Errorf("%w: operation %d: invalid path %q", models.ErrPatchError, i, op.Path)
		}

		if _, ok := internalAttrs[topLevel(op.Path)]; ok {
			return fmt.Errorf("%w: '%s' is an internal attribute and can not be updated", models.ErrPatchError, op.Path)
		}

		if op.Op == OpRemove {
			if _, ok := mandatoryAttrs[op.Path]; ok {
				return fmt.Errorf("%w: '%s' is a mandatory attribute and can not be removed", models.ErrPatchError, op.Path)
			}
			continue
		}

		if len(op.Value) == 0 {
			return fmt.Errorf("%w: operation %d: 'add' and 'replace' operations need a value", models.ErrPatchError, i)
		}
		if bytes.Equal(bytes.TrimSpace(op.Value), []byte("null")) {
			return fmt.Errorf("%w: operation %d: '%s' can not be set to null, use 'remove' instead", models.ErrPatchError, i, op.Path)
		}
	}
	return nil
}

// ApplyPatch applies ops to a snapshot of cluster and returns the patched copy.
// The input cluster is not modified. Removed attributes fall back to their
// create defaults.
func ApplyPatch(cluster models.Cluster, ops []PatchOp) (models.Cluster, error) {
	if err := ValidatePatchOps(ops); err != nil {
		return models.Cluster{}, err
	}

	if cluster.Labels == nil {
		cluster.Labels = map[string]interface{}{}
	}
	if cluster.HealthStatusReason == nil {
		cluster.HealthStatusReason = map[string]string{}
	}

	doc, err := json.Marshal(cluster)
	if err != nil {
		return models.Cluster{}, fmt.Errorf("failed to snapshot cluster: %w", err)
	}

	raw, err := json.Marshal(ops)
	if err != nil {
		return models.Cluster{}, fmt.Errorf("%w: %v", models.ErrPatchError, err)
	}

	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return models.Cluster{}, fmt.Errorf("%w: %v", models.ErrPatchError, err)
	}

	patched, err := patch.Apply(doc)
	if err != nil {
		return models.Cluster{}, fmt.Errorf("%w: %v", models.ErrPatchError, err)
	}

	out := models.Cluster{
		NodeCount:     1,
		MasterCount:   1,
		CreateTimeout: models.DefaultCreateTimeout,
	}
	dec := json.NewDecoder(bytes.NewReader(patched))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return models.Cluster{}, fmt.Errorf("%w: %v", models.ErrPatchError, err)
	}

	if out.NodeCount < 0 {
		return models.Cluster{}, fmt.Errorf("%w: node_count must be at least 0, got %d", models.ErrInvalidParameterValue, out.NodeCount)
	}
	if !out.HealthStatus.IsValid() {
		return models.Cluster{}, fmt.Errorf("%w: invalid health_status %q", models.ErrInvalidParameterValue, out.HealthStatus)
	}

	return out, nil
}

// EffectiveNodeCount returns the default worker group size to send to the
// backend: the current size, or the patched value when the patch addressed
// /node_count.
func EffectiveNodeCount(defaultWorkerCount int, ops []PatchOp, patched models.Cluster) int {
	for _, op := range ops {
		if op.Path == "/node_count" {
			return patched.NodeCount
		}
	}
	return defaultWorkerCount
}

func topLevel(path string) string {
	if i := strings.Index(path[1:], "/"); i >= 0 {
		return path[:i+1]
	}
	return path
}
