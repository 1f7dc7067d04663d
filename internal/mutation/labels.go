package mutation

import (
	"github.com/google/go-cmp/cmp"

	"github.com/yaroslav/clusterplane/models"
)

// LabelsDiff compares a cluster's labels against its template's labels.
// All three maps are non-nil.
func LabelsDiff(parent, child map[string]interface{}) models.LabelDiff {
	diff := models.LabelDiff{
		Overridden: map[string]interface{}{},
		Added:      map[string]interface{}{},
		Skipped:    map[string]interface{}{},
	}

	for key, value := range child {
		parentValue, ok := parent[key]
		switch {
		case !ok:
			diff.Added[key] = value
		case !cmp.Equal(parentValue, value):
			diff.Overridden[key] = value
		}
	}
	for key, value := range parent {
		if _, ok := child[key]; !ok {
			diff.Skipped[key] = value
		}
	}

	return diff
}
