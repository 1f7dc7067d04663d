// Package mutation builds and changes cluster state: template defaults on
// create, label comparison for responses, JSON patch application and the
// delta of fields a patch changed.
package mutation

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/mitchellh/copystructure"

	"github.com/yaroslav/clusterplane/models"
)

// clusterDefaults are the attributes a cluster inherits from its template
// when the client leaves them unset. Zero values mean unset. The flags are
// pointers so an explicit false from the client survives the merge.
type clusterDefaults struct {
	Keypair           string
	DockerVolumeSize  int
	MasterFlavorID    string
	FlavorID          string
	FixedNetwork      string
	FixedSubnet       string
	FloatingIPEnabled *bool
	MasterLBEnabled   *bool
}

// ApplyTemplateDefaults builds the cluster a create request describes,
// filling unset attributes from tmpl. The template is not modified.
//
// Labels follow three rules: no client labels means the template's labels,
// client labels with merge_labels means the union with client values winning,
// client labels without merge_labels replace the template's labels.
func ApplyTemplateDefaults(req *models.ClusterCreateRequest, tmpl *models.ClusterTemplate) (models.Cluster, error) {
	fromRequest := clusterDefaults{
		Keypair:           req.Keypair,
		DockerVolumeSize:  req.DockerVolumeSize,
		MasterFlavorID:    req.MasterFlavorID,
		FlavorID:          req.FlavorID,
		FixedNetwork:      req.FixedNetwork,
		FixedSubnet:       req.FixedSubnet,
		FloatingIPEnabled: req.FloatingIPEnabled,
		MasterLBEnabled:   req.MasterLBEnabled,
	}
	floatingIP, masterLB := tmpl.FloatingIPEnabled, tmpl.MasterLBEnabled
	fromTemplate := clusterDefaults{
		Keypair:           tmpl.KeypairID,
		DockerVolumeSize:  tmpl.DockerVolumeSize,
		MasterFlavorID:    tmpl.MasterFlavorID,
		FlavorID:          tmpl.FlavorID,
		FixedNetwork:      tmpl.FixedNetwork,
		FixedSubnet:       tmpl.FixedSubnet,
		FloatingIPEnabled: &floatingIP,
		MasterLBEnabled:   &masterLB,
	}

	if err := mergo.Merge(&fromRequest, fromTemplate, mergo.WithoutDereference); err != nil {
		return models.Cluster{}, fmt.Errorf("failed to apply template defaults: %w", err)
	}

	labels, err := MergeLabels(tmpl.Labels, req.Labels, req.MergeLabels)
	if err != nil {
		return models.Cluster{}, err
	}

	return models.Cluster{
		Name:              req.Name,
		ClusterTemplateID: tmpl.UUID,
		Keypair:           fromRequest.Keypair,
		NodeCount:         req.EffectiveNodeCount(),
		MasterCount:       req.EffectiveMasterCount(),
		DockerVolumeSize:  fromRequest.DockerVolumeSize,
		Labels:            labels,
		MasterFlavorID:    fromRequest.MasterFlavorID,
		FlavorID:          fromRequest.FlavorID,
		CreateTimeout:     req.EffectiveCreateTimeout(),
		DiscoveryURL:      req.DiscoveryURL,
		FixedNetwork:      fromRequest.FixedNetwork,
		FixedSubnet:       fromRequest.FixedSubnet,
		FloatingIPEnabled: *fromRequest.FloatingIPEnabled,
		MasterLBEnabled:   *fromRequest.MasterLBEnabled,
	}, nil
}

// MergeLabels returns the effective labels of a new cluster.
// The result never aliases the template's map.
func MergeLabels(template, client map[string]interface{}, merge bool) (map[string]interface{}, error) {
	if len(client) == 0 {
		return copyLabels(template)
	}
	if !merge {
		return copyLabels(client)
	}

	merged, err := copyLabels(template)
	if err != nil {
		return nil, err
	}
	for k, v := range client {
		merged[k] = v
	}
	return merged, nil
}

func copyLabels(labels map[string]interface{}) (map[string]interface{}, error) {
	if labels == nil {
		return map[string]interface{}{}, nil
	}
	dup, err := copystructure.Copy(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to copy labels: %w", err)
	}
	return dup.(map[string]interface{}), nil
}
