package validation

import (
	"fmt"
	"strings"

	"github.com/yaroslav/clusterplane/models"
)

// Phase names the validation step a value failed.
type Phase string

const (
	// PhaseSupported means the COE cannot run the value at all.
	PhaseSupported Phase = "supported"

	// PhaseAllowed means the deployment configuration forbids the value.
	PhaseAllowed Phase = "allowed"
)

// DriverError reports a rejected driver or server type value.
type DriverError struct {
	// Field is the checked attribute: "network driver", "volume driver" or "server type"
	Field string

	// Phase is the step that failed
	Phase Phase

	// Value is the rejected value
	Value string

	// Alternatives are the acceptable values, ending with Unspecified
	Alternatives []string
}

// Error implements error.
func (e *DriverError) Error() string {
	subject := capitalize(e.Field)
	if !strings.HasSuffix(e.Field, " type") {
		subject += " type"
	}
	return fmt.Sprintf("%s %s is not %s, expecting a %s %s",
		subject, e.Value, e.Phase, strings.Join(e.Alternatives, "/"), e.Field)
}

// Unwrap lets errors.Is match models.ErrInvalidParameterValue.
func (e *DriverError) Unwrap() error {
	return models.ErrInvalidParameterValue
}

// Validator checks template values against one COE's capabilities and the
// deployment's allow-list.
type Validator struct {
	profile        Profile
	allowedNetwork []string
	defaultNetwork string
}

// COE returns the engine this validator serves.
func (v *Validator) COE() COE {
	return v.profile.COE
}

// DefaultNetworkDriver returns the configured default network driver.
func (v *Validator) DefaultNetworkDriver() string {
	return v.defaultNetwork
}

// ValidateNetworkDriver checks driver is supported and then allowed.
func (v *Validator) ValidateNetworkDriver(driver string) error {
	if !contains(v.profile.SupportedNetworkDrivers, driver) {
		return newDriverError("network driver", PhaseSupported, driver, v.profile.SupportedNetworkDrivers)
	}
	if !contains(v.allowedNetwork, AllDrivers) && !contains(v.allowedNetwork, driver) {
		return newDriverError("network driver", PhaseAllowed, driver, v.allowedNetwork)
	}
	return nil
}

// ValidateVolumeDriver checks driver is supported by the COE.
func (v *Validator) ValidateVolumeDriver(driver string) error {
	if !contains(v.profile.SupportedVolumeDrivers, driver) {
		return newDriverError("volume driver", PhaseSupported, driver, v.profile.SupportedVolumeDrivers)
	}
	return nil
}

// ValidateServerType checks serverType is supported by the COE.
func (v *Validator) ValidateServerType(serverType string) error {
	if !contains(v.profile.SupportedServerTypes, serverType) {
		return newDriverError("server type", PhaseSupported, serverType, v.profile.SupportedServerTypes)
	}
	return nil
}

func newDriverError(field string, phase Phase, value string, accepted []string) *DriverError {
	alternatives := make([]string, 0, len(accepted)+1)
	alternatives = append(alternatives, accepted...)
	alternatives = append(alternatives, Unspecified)
	return &DriverError{Field: field, Phase: phase, Value: value, Alternatives: alternatives}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
