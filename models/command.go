package models

import (
	"encoding/json"
	"time"
)

// Command names issued to the backend orchestrator.
const (
	CommandClusterCreate = "cluster_create"
	CommandClusterUpdate = "cluster_update"
	CommandClusterDelete = "cluster_delete"
)

// CommandStatus is the delivery state of an enqueued command.
type CommandStatus string

const (
	CommandPending    CommandStatus = "pending"
	CommandDelivering CommandStatus = "delivering"
	CommandDelivered  CommandStatus = "delivered"
	CommandFailed     CommandStatus = "failed"
)

// Command is one asynchronous instruction for the backend orchestrator.
//
// Commands are written once by the API and only change delivery state
// afterwards. The payload is one of the Cluster*Command structs encoded as JSON.
type Command struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ClusterID   string          `json:"cluster_id"`
	Payload     json.RawMessage `json:"payload"`
	Fingerprint uint64          `json:"fingerprint"`
	Status      CommandStatus   `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// ClusterCreateCommand asks the backend to build a new cluster.
type ClusterCreateCommand struct {
	Cluster       Cluster `json:"cluster"`
	MasterCount   int     `json:"master_count"`
	NodeCount     int     `json:"node_count"`
	CreateTimeout int     `json:"create_timeout"`
}

// ClusterUpdateCommand asks the backend to resize or relabel health.
// Rollback is nil for API versions that predate the rollback flag.
type ClusterUpdateCommand struct {
	ClusterID          string            `json:"cluster_id"`
	NodeCount          int               `json:"node_count"`
	HealthStatus       HealthStatus      `json:"health_status"`
	HealthStatusReason map[string]string `json:"health_status_reason"`
	Rollback           *bool             `json:"rollback,omitempty"`
}

// ClusterDeleteCommand asks the backend to destroy a cluster.
type ClusterDeleteCommand struct {
	ClusterID string `json:"cluster_id"`
}
