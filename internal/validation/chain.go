// Package validation holds the per-COE driver validators and the standalone
// rules applied to cluster create and update requests.
package validation

import (
	"fmt"

	"github.com/yaroslav/clusterplane/models"
)

// COE identifies a container orchestration engine.
type COE string

const (
	COEKubernetes COE = "kubernetes"
	COESwarm      COE = "swarm"
	COESwarmMode  COE = "swarm-mode"
	COEMesos      COE = "mesos"
)

// AllDrivers is the allow-list wildcard meaning every supported driver is allowed.
const AllDrivers = "all"

// Unspecified is the pseudo option offered in error alternatives. It means the
// system picks the default.
const Unspecified = "unspecified"

// Profile is the fixed capability set of one COE.
type Profile struct {
	COE                     COE
	SupportedNetworkDrivers []string
	SupportedVolumeDrivers  []string
	SupportedServerTypes    []string
}

// profiles lists the capability sets the drivers ship with. swarm-mode shares
// the swarm profile.
var profiles = map[COE]Profile{
	COEKubernetes: {
		COE:                     COEKubernetes,
		SupportedNetworkDrivers: []string{"flannel", "calico"},
		SupportedVolumeDrivers:  []string{"cinder"},
		SupportedServerTypes:    []string{"vm", "bm"},
	},
	COESwarm: {
		COE:                     COESwarm,
		SupportedNetworkDrivers: []string{"docker", "flannel"},
		SupportedVolumeDrivers:  []string{"rexray"},
		SupportedServerTypes:    []string{"vm", "bm"},
	},
	COEMesos: {
		COE:                     COEMesos,
		SupportedNetworkDrivers: []string{"docker"},
		SupportedVolumeDrivers:  []string{"rexray"},
		SupportedServerTypes:    []string{"vm", "bm"},
	},
}

// DriverConfig is the deployment policy for one COE.
type DriverConfig struct {
	// AllowedNetworkDrivers may contain AllDrivers
	AllowedNetworkDrivers []string

	// DefaultNetworkDriver is used when a template names no network driver
	DefaultNetworkDriver string
}

// Config maps each COE to its deployment policy. swarm-mode reads the swarm entry.
type Config map[COE]DriverConfig

// DefaultConfig returns the shipped deployment policy: all drivers allowed,
// flannel for kubernetes, docker for swarm and mesos.
func DefaultConfig() Config {
	return Config{
		COEKubernetes: {AllowedNetworkDrivers: []string{AllDrivers}, DefaultNetworkDriver: "flannel"},
		COESwarm:      {AllowedNetworkDrivers: []string{AllDrivers}, DefaultNetworkDriver: "docker"},
		COEMesos:      {AllowedNetworkDrivers: []string{AllDrivers}, DefaultNetworkDriver: "docker"},
	}
}

// Chain resolves a Validator for a COE.
// A Chain is read-only after construction and safe for concurrent use.
type Chain struct {
	validators map[COE]*Validator
}

// NewChain builds validators for every known COE from cfg.
// COEs missing from cfg fall back to DefaultConfig.
func NewChain(cfg Config) *Chain {
	defaults := DefaultConfig()
	chain := &Chain{validators: make(map[COE]*Validator, len(profiles)+1)}

	for coe, profile := range profiles {
		dc, ok := cfg[coe]
		if !ok {
			dc = defaults[coe]
		}
		chain.validators[coe] = &Validator{
			profile:        profile,
			allowedNetwork: append([]string(nil), dc.AllowedNetworkDrivers...),
			defaultNetwork: dc.DefaultNetworkDriver,
		}
	}
	chain.validators[COESwarmMode] = chain.validators[COESwarm]

	return chain
}

// ForCOE returns the validator for coe.
//
// Returns:
//   - *Validator: the validator for the COE
//   - error: wraps models.ErrUnsupportedCOE when coe is unknown
func (c *Chain) ForCOE(coe string) (*Validator, error) {
	v, ok := c.validators[COE(coe)]
	if !ok {
		return nil, fmt.Errorf("%w: requested COE type %s is not supported", models.ErrUnsupportedCOE, coe)
	}
	return v, nil
}

// Validate checks that every entry names a known COE and only supported drivers.
func (cfg Config) Validate() error {
	for coe, dc := range cfg {
		profile, ok := profiles[coe]
		if coe == COESwarmMode {
			profile, ok = profiles[COESwarm], true
		}
		if !ok {
			return fmt.Errorf("%w: unknown COE %q", models.ErrUnsupportedCOE, coe)
		}
		for _, d := range dc.AllowedNetworkDrivers {
			if d != AllDrivers && !contains(profile.SupportedNetworkDrivers, d) {
				return fmt.Errorf("%s: allowed network driver %q is not supported", coe, d)
			}
		}
		if dc.DefaultNetworkDriver != "" && !contains(profile.SupportedNetworkDrivers, dc.DefaultNetworkDriver) {
			return fmt.Errorf("%s: default network driver %q is not supported", coe, dc.DefaultNetworkDriver)
		}
	}
	return nil
}
