package models

// QuotaResourceCluster is the quota resource kind counted for clusters.
const QuotaResourceCluster = "Cluster"

// Quota is an explicit per-project limit for one resource kind.
type Quota struct {
	ID        int64  `json:"id"`
	ProjectID string `json:"project_id"`
	Resource  string `json:"resource"`
	HardLimit int    `json:"hard_limit"`
}
