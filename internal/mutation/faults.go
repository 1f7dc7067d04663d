package mutation

import "github.com/yaroslav/clusterplane/models"

// FaultInfo maps every failed node group to its status reason.
func FaultInfo(groups []models.NodeGroup) map[string]string {
	faults := make(map[string]string)
	for _, ng := range groups {
		if ng.Status.IsFailed() {
			faults[ng.Name] = ng.StatusReason
		}
	}
	return faults
}
