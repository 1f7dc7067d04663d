package mutation

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/yaroslav/clusterplane/models"
)

// clusterFields lists every client visible cluster attribute in a fixed order.
var clusterFields = []struct {
	name string
	get  func(c *models.Cluster) interface{}
}{
	{"name", func(c *models.Cluster) interface{} { return c.Name }},
	{"cluster_template_id", func(c *models.Cluster) interface{} { return c.ClusterTemplateID }},
	{"keypair", func(c *models.Cluster) interface{} { return c.Keypair }},
	{"node_count", func(c *models.Cluster) interface{} { return c.NodeCount }},
	{"master_count", func(c *models.Cluster) interface{} { return c.MasterCount }},
	{"docker_volume_size", func(c *models.Cluster) interface{} { return c.DockerVolumeSize }},
	{"labels", func(c *models.Cluster) interface{} { return normalizeLabels(c.Labels) }},
	{"master_flavor_id", func(c *models.Cluster) interface{} { return c.MasterFlavorID }},
	{"flavor_id", func(c *models.Cluster) interface{} { return c.FlavorID }},
	{"create_timeout", func(c *models.Cluster) interface{} { return c.CreateTimeout }},
	{"status", func(c *models.Cluster) interface{} { return c.Status }},
	{"status_reason", func(c *models.Cluster) interface{} { return c.StatusReason }},
	{"health_status", func(c *models.Cluster) interface{} { return c.HealthStatus }},
	{"health_status_reason", func(c *models.Cluster) interface{} { return c.HealthStatusReason }},
	{"discovery_url", func(c *models.Cluster) interface{} { return c.DiscoveryURL }},
	{"coe_version", func(c *models.Cluster) interface{} { return c.COEVersion }},
	{"container_version", func(c *models.Cluster) interface{} { return c.ContainerVersion }},
	{"fixed_network", func(c *models.Cluster) interface{} { return c.FixedNetwork }},
	{"fixed_subnet", func(c *models.Cluster) interface{} { return c.FixedSubnet }},
	{"floating_ip_enabled", func(c *models.Cluster) interface{} { return c.FloatingIPEnabled }},
	{"master_lb_enabled", func(c *models.Cluster) interface{} { return c.MasterLBEnabled }},
}

// Delta returns the names of the attributes whose values differ between orig
// and patched. Nil and empty maps compare equal.
func Delta(orig, patched models.Cluster) []string {
	var changed []string
	for _, f := range clusterFields {
		if !cmp.Equal(f.get(&orig), f.get(&patched), cmpopts.EquateEmpty()) {
			changed = append(changed, f.name)
		}
	}
	return changed
}

// normalizeLabels round-trips labels through JSON so numeric values built in
// code compare equal to the same values decoded from a request.
func normalizeLabels(labels map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if len(labels) == 0 {
		return out
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return labels
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return labels
	}
	return out
}
