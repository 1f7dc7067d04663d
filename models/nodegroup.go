package models

import "time"

// NodeGroupRole is the role of instances in a node group.
type NodeGroupRole string

const (
	RoleMaster NodeGroupRole = "master"
	RoleWorker NodeGroupRole = "worker"
)

// Default node group names created alongside every cluster.
const (
	DefaultMasterGroupName = "default-master"
	DefaultWorkerGroupName = "default-worker"
)

// NodeGroup is a named subset of a cluster's instances with its own size.
type NodeGroup struct {
	UUID         string        `json:"uuid"`
	ClusterID    string        `json:"cluster_id"`
	Name         string        `json:"name"`
	Role         NodeGroupRole `json:"role"`
	NodeCount    int           `json:"node_count"`
	Status       ClusterStatus `json:"status"`
	StatusReason string        `json:"status_reason"`
	IsDefault    bool          `json:"is_default"`
	CreatedAt    time.Time     `json:"created_at"`
}

// DefaultWorker returns the default worker group, or nil when absent.
func DefaultWorker(groups []NodeGroup) *NodeGroup {
	for i := range groups {
		if groups[i].IsDefault && groups[i].Role == RoleWorker {
			return &groups[i]
		}
	}
	return nil
}
