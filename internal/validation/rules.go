package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yaroslav/clusterplane/internal/metrics"
	"github.com/yaroslav/clusterplane/models"
)

// DeviceMapperDriver is the storage driver that needs a dedicated volume.
const DeviceMapperDriver = "devicemapper"

// MinDeviceMapperVolumeSize is the smallest volume in GiB accepted for devicemapper.
const MinDeviceMapperVolumeSize = 3

// UpdateAllowedProperties are the only cluster fields a patch may change.
var UpdateAllowedProperties = map[string]struct{}{
	"node_count":           {},
	"health_status":        {},
	"health_status_reason": {},
}

// ValidateVolumeStorageSize enforces the devicemapper minimum volume size.
// The cluster's size wins; zero falls back to the template's size.
func ValidateVolumeStorageSize(tmpl *models.ClusterTemplate, clusterVolumeSize int) error {
	if tmpl.DockerStorageDriver != DeviceMapperDriver {
		return nil
	}

	size := clusterVolumeSize
	if size == 0 {
		size = tmpl.DockerVolumeSize
	}
	if size < MinDeviceMapperVolumeSize {
		return fmt.Errorf("%w: docker volume size %d GB is not valid, expecting minimum value %dGB for %s storage driver",
			models.ErrInvalidParameterValue, size, MinDeviceMapperVolumeSize, DeviceMapperDriver)
	}
	return nil
}

// ValidateClusterProperties rejects a patch delta that touches fields outside
// UpdateAllowedProperties. The error names every offending field, sorted.
func ValidateClusterProperties(delta []string) error {
	var disallowed []string
	for _, field := range delta {
		if _, ok := UpdateAllowedProperties[field]; !ok {
			disallowed = append(disallowed, field)
		}
	}
	if len(disallowed) == 0 {
		return nil
	}

	sort.Strings(disallowed)
	return fmt.Errorf("%w: cannot change cluster property(ies) %s",
		models.ErrInvalidParameterValue, strings.Join(disallowed, ", "))
}

// ValidateClusterTemplate checks the template a cluster is being created from
// is runnable: known COE, supported server type, supported and allowed network
// driver (the default when unset) and supported volume driver when set.
//
// Returns:
//   - string: the effective network driver
//   - error: ErrUnsupportedCOE or a *DriverError
func ValidateClusterTemplate(chain *Chain, tmpl *models.ClusterTemplate) (string, error) {
	v, err := chain.ForCOE(tmpl.COE)
	if err != nil {
		return "", err
	}

	network, err := validateTemplateDrivers(v, tmpl)
	if err != nil {
		var de *DriverError
		if errors.As(err, &de) {
			metrics.ValidationFailures.WithLabelValues(string(v.COE()), string(de.Phase)).Inc()
		}
		return "", err
	}
	return network, nil
}

func validateTemplateDrivers(v *Validator, tmpl *models.ClusterTemplate) (string, error) {
	if err := v.ValidateServerType(tmpl.ServerType); err != nil {
		return "", err
	}

	network := tmpl.NetworkDriver
	if network == "" {
		network = v.DefaultNetworkDriver()
	}
	if err := v.ValidateNetworkDriver(network); err != nil {
		return "", err
	}

	if tmpl.VolumeDriver != "" {
		if err := v.ValidateVolumeDriver(tmpl.VolumeDriver); err != nil {
			return "", err
		}
	}

	return network, nil
}

// ValidateMasterCount requires at least one master, and a load balancer in
// front of the masters when there is more than one.
func ValidateMasterCount(masterCount int, masterLBEnabled bool) error {
	if masterCount < 1 {
		return fmt.Errorf("%w: master_count must be at least 1, got %d", models.ErrInvalidParameterValue, masterCount)
	}
	if masterCount > 1 && !masterLBEnabled {
		return fmt.Errorf("%w: master_lb_enabled is required when master_count is greater than 1",
			models.ErrInvalidParameterValue)
	}
	return nil
}
