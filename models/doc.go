// Package models provides shared data structures for the clusterplane project.
//
// This package contains the core data models used across the control plane
// server: the API layer, the service layer, the repository and the command
// dispatcher all exchange these types. Keeping them in a separate package
// avoids circular dependencies between those layers.
//
// The models in this package represent:
//   - Clusters: container clusters managed through the API
//   - ClusterTemplates: reusable defaults a cluster is created from
//   - NodeGroups: named groups of cluster instances with their own size
//   - Quotas: per-project resource limits
//   - Commands: asynchronous requests handed to the backend orchestrator
//
// All structs include JSON tags for API serialization and documentation comments
// explaining the purpose and constraints of each field.
package models
