package models

import (
	"strings"
	"time"
)

// ClusterStatus is the lifecycle state reported for a cluster.
// Transitions are driven by the backend orchestrator; the API only reads the
// current value to decide what is admissible.
type ClusterStatus string

const (
	StatusCreateInProgress   ClusterStatus = "CREATE_IN_PROGRESS"
	StatusCreateFailed       ClusterStatus = "CREATE_FAILED"
	StatusCreateComplete     ClusterStatus = "CREATE_COMPLETE"
	StatusUpdateInProgress   ClusterStatus = "UPDATE_IN_PROGRESS"
	StatusUpdateFailed       ClusterStatus = "UPDATE_FAILED"
	StatusUpdateComplete     ClusterStatus = "UPDATE_COMPLETE"
	StatusDeleteInProgress   ClusterStatus = "DELETE_IN_PROGRESS"
	StatusDeleteFailed       ClusterStatus = "DELETE_FAILED"
	StatusDeleteComplete     ClusterStatus = "DELETE_COMPLETE"
	StatusResumeComplete     ClusterStatus = "RESUME_COMPLETE"
	StatusResumeFailed       ClusterStatus = "RESUME_FAILED"
	StatusRestoreComplete    ClusterStatus = "RESTORE_COMPLETE"
	StatusRestoreFailed      ClusterStatus = "RESTORE_FAILED"
	StatusRollbackInProgress ClusterStatus = "ROLLBACK_IN_PROGRESS"
	StatusRollbackFailed     ClusterStatus = "ROLLBACK_FAILED"
	StatusRollbackComplete   ClusterStatus = "ROLLBACK_COMPLETE"
	StatusSnapshotComplete   ClusterStatus = "SNAPSHOT_COMPLETE"
	StatusSnapshotFailed     ClusterStatus = "SNAPSHOT_FAILED"
	StatusCheckComplete      ClusterStatus = "CHECK_COMPLETE"
	StatusCheckFailed        ClusterStatus = "CHECK_FAILED"
	StatusAdoptComplete      ClusterStatus = "ADOPT_COMPLETE"
	StatusAdoptFailed        ClusterStatus = "ADOPT_FAILED"
)

// ClusterStatuses lists every status the backend may report.
var ClusterStatuses = []ClusterStatus{
	StatusCreateInProgress, StatusCreateFailed, StatusCreateComplete,
	StatusUpdateInProgress, StatusUpdateFailed, StatusUpdateComplete,
	StatusDeleteInProgress, StatusDeleteFailed, StatusDeleteComplete,
	StatusResumeComplete, StatusResumeFailed,
	StatusRestoreComplete, StatusRestoreFailed,
	StatusRollbackInProgress, StatusRollbackFailed, StatusRollbackComplete,
	StatusSnapshotComplete, StatusSnapshotFailed,
	StatusCheckComplete, StatusCheckFailed,
	StatusAdoptComplete, StatusAdoptFailed,
}

// IsFailed reports whether the status is one of the FAILED variants.
func (s ClusterStatus) IsFailed() bool {
	return strings.HasSuffix(string(s), "_FAILED")
}

// IsValid reports whether the status is a known value.
func (s ClusterStatus) IsValid() bool {
	for _, known := range ClusterStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// HealthStatus is the health of a cluster as seen through the native COE API.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthUnknown   HealthStatus = "UNKNOWN"
)

// IsValid reports whether the health status is empty or a known value.
func (h HealthStatus) IsValid() bool {
	switch h {
	case "", HealthHealthy, HealthUnhealthy, HealthUnknown:
		return true
	}
	return false
}

// DefaultCreateTimeout is the create timeout in minutes when the client sends none.
const DefaultCreateTimeout = 60

// MaxClusterNameLength is the longest accepted cluster name. The backend
// appends a uuid to build stack names limited to 255 characters.
const MaxClusterNameLength = 242

// Cluster represents a container cluster managed by the control plane.
//
// A cluster is created from a ClusterTemplate and is owned by exactly one
// project. Fields not marked immutable may only change through the patch
// pipeline, which restricts client edits to node_count and the health fields.
type Cluster struct {
	// UUID is the unique identifier, generated server-side at creation
	UUID string `json:"uuid"`

	// Name matches ^[a-zA-Z][a-zA-Z0-9_.-]*$ and is 1-242 characters
	Name string `json:"name"`

	// ClusterTemplateID is the UUID of the template this cluster was created from
	ClusterTemplateID string `json:"cluster_template_id"`

	// Keypair is the SSH keypair name injected into cluster instances
	Keypair string `json:"keypair"`

	// NodeCount is the size of the default worker node group
	NodeCount int `json:"node_count"`

	// MasterCount is the size of the default master node group (>= 1)
	MasterCount int `json:"master_count"`

	// DockerVolumeSize is the container volume size in GiB (0 = none)
	DockerVolumeSize int `json:"docker_volume_size"`

	// Labels are free-form key/value settings passed to the backend
	Labels map[string]interface{} `json:"labels"`

	// MasterFlavorID is the instance flavor for master nodes
	MasterFlavorID string `json:"master_flavor_id"`

	// FlavorID is the instance flavor for worker nodes
	FlavorID string `json:"flavor_id"`

	// CreateTimeout is the create timeout in minutes
	CreateTimeout int `json:"create_timeout"`

	// StackID is the backend stack identifier (read-only)
	StackID string `json:"stack_id"`

	// Status is the lifecycle state
	Status ClusterStatus `json:"status"`

	// StatusReason explains the current status
	StatusReason string `json:"status_reason"`

	// HealthStatus is reported by the COE health monitor
	HealthStatus HealthStatus `json:"health_status"`

	// HealthStatusReason holds per-component health detail
	HealthStatusReason map[string]string `json:"health_status_reason"`

	// DiscoveryURL is used for cluster node discovery
	DiscoveryURL string `json:"discovery_url"`

	// APIAddress is the COE API endpoint (read-only)
	APIAddress string `json:"api_address"`

	// COEVersion is the running orchestration engine version (read-only)
	COEVersion string `json:"coe_version"`

	// ContainerVersion is the running container runtime version (read-only)
	ContainerVersion string `json:"container_version"`

	// FixedNetwork is the private network attached to cluster instances
	FixedNetwork string `json:"fixed_network"`

	// FixedSubnet is the private subnet attached to cluster instances
	FixedSubnet string `json:"fixed_subnet"`

	// FloatingIPEnabled indicates whether instances get floating IPs
	FloatingIPEnabled bool `json:"floating_ip_enabled"`

	// MasterLBEnabled indicates whether masters sit behind a load balancer
	MasterLBEnabled bool `json:"master_lb_enabled"`

	// ProjectID is the owning project (immutable)
	ProjectID string `json:"project_id"`

	// UserID is the creating user (immutable)
	UserID string `json:"user_id"`

	// NodeAddresses are the worker addresses (read-only)
	NodeAddresses []string `json:"node_addresses"`

	// MasterAddresses are the master addresses (read-only)
	MasterAddresses []string `json:"master_addresses"`

	// CreatedAt is the creation timestamp
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last modification timestamp
	UpdatedAt *time.Time `json:"updated_at"`
}

// ClusterCreateRequest represents the request body for creating a cluster.
//
// Optional fields left unset fall back to the cluster template's values.
type ClusterCreateRequest struct {
	Name              string                 `json:"name,omitempty"`
	ClusterTemplateID string                 `json:"cluster_template_id"`
	Keypair           string                 `json:"keypair,omitempty"`
	NodeCount         *int                   `json:"node_count,omitempty"`
	MasterCount       *int                   `json:"master_count,omitempty"`
	DockerVolumeSize  int                    `json:"docker_volume_size,omitempty"`
	Labels            map[string]interface{} `json:"labels,omitempty"`
	MasterFlavorID    string                 `json:"master_flavor_id,omitempty"`
	FlavorID          string                 `json:"flavor_id,omitempty"`
	CreateTimeout     *int                   `json:"create_timeout,omitempty"`
	DiscoveryURL      string                 `json:"discovery_url,omitempty"`
	FixedNetwork      string                 `json:"fixed_network,omitempty"`
	FixedSubnet       string                 `json:"fixed_subnet,omitempty"`
	FloatingIPEnabled *bool                  `json:"floating_ip_enabled,omitempty"`
	MasterLBEnabled   *bool                  `json:"master_lb_enabled,omitempty"`
	MergeLabels       bool                   `json:"merge_labels,omitempty"`
}

// EffectiveNodeCount returns the requested node count, defaulting to 1.
func (r *ClusterCreateRequest) EffectiveNodeCount() int {
	if r.NodeCount == nil {
		return 1
	}
	return *r.NodeCount
}

// EffectiveMasterCount returns the requested master count, defaulting to 1.
func (r *ClusterCreateRequest) EffectiveMasterCount() int {
	if r.MasterCount == nil {
		return 1
	}
	return *r.MasterCount
}

// EffectiveCreateTimeout returns the requested timeout, defaulting to 60 minutes.
func (r *ClusterCreateRequest) EffectiveCreateTimeout() int {
	if r.CreateTimeout == nil {
		return DefaultCreateTimeout
	}
	return *r.CreateTimeout
}

// ClusterID is returned by accepted create and update requests.
type ClusterID struct {
	UUID string `json:"uuid"`
}

// Link is a hypermedia reference to a resource.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// LabelDiff compares a cluster's labels with its template's labels.
type LabelDiff struct {
	// Overridden holds keys present in both with a different value (cluster value)
	Overridden map[string]interface{} `json:"labels_overridden"`

	// Added holds keys present only in the cluster
	Added map[string]interface{} `json:"labels_added"`

	// Skipped holds keys present only in the template (template value)
	Skipped map[string]interface{} `json:"labels_skipped"`
}

// ClusterView is the full API representation of a cluster.
type ClusterView struct {
	Cluster
	LabelDiff

	// Faults maps failed node group names to their status reason
	Faults map[string]string `json:"faults,omitempty"`

	// Links are the self and bookmark links
	Links []Link `json:"links"`
}

// ClusterSummary is the collection representation of a cluster.
type ClusterSummary struct {
	UUID              string                 `json:"uuid"`
	Name              string                 `json:"name"`
	ClusterTemplateID string                 `json:"cluster_template_id"`
	Keypair           string                 `json:"keypair"`
	DockerVolumeSize  int                    `json:"docker_volume_size"`
	Labels            map[string]interface{} `json:"labels"`
	NodeCount         int                    `json:"node_count"`
	MasterCount       int                    `json:"master_count"`
	Status            ClusterStatus          `json:"status"`
	MasterFlavorID    string                 `json:"master_flavor_id"`
	FlavorID          string                 `json:"flavor_id"`
	CreateTimeout     int                    `json:"create_timeout"`
	StackID           string                 `json:"stack_id"`
	HealthStatus      HealthStatus           `json:"health_status"`
	Links             []Link                 `json:"links"`
}

// ClusterCollection is a page of clusters.
type ClusterCollection struct {
	// Clusters holds either []ClusterSummary or []ClusterView depending on the view
	Clusters interface{} `json:"clusters"`

	// Next is the URL of the next page, empty on the last page
	Next string `json:"next,omitempty"`
}
