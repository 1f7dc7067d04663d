package models

import "time"

// ClusterTemplate is a named, reusable set of cluster defaults.
//
// Templates are read-only from the cluster API's point of view. A cluster
// copies the template values it did not set itself at creation time.
type ClusterTemplate struct {
	UUID                string                 `json:"uuid"`
	Name                string                 `json:"name"`
	ProjectID           string                 `json:"project_id"`
	COE                 string                 `json:"coe"`
	ServerType          string                 `json:"server_type"`
	ClusterDistro       string                 `json:"cluster_distro"`
	KeypairID           string                 `json:"keypair_id"`
	Labels              map[string]interface{} `json:"labels"`
	VolumeDriver        string                 `json:"volume_driver"`
	NetworkDriver       string                 `json:"network_driver"`
	DockerStorageDriver string                 `json:"docker_storage_driver"`
	DockerVolumeSize    int                    `json:"docker_volume_size"`
	FlavorID            string                 `json:"flavor_id"`
	MasterFlavorID      string                 `json:"master_flavor_id"`
	FixedNetwork        string                 `json:"fixed_network"`
	FixedSubnet         string                 `json:"fixed_subnet"`
	FloatingIPEnabled   bool                   `json:"floating_ip_enabled"`
	MasterLBEnabled     bool                   `json:"master_lb_enabled"`
	Public              bool                   `json:"public"`
	CreatedAt           time.Time              `json:"created_at"`
}
