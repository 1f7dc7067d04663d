// Package apiversion negotiates the microversion requested by a client.
//
// Clients select a version with the OpenStack-API-Version header, carrying two
// whitespace separated tokens: the service name and either "major.minor" or
// the literal "latest".
package apiversion

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yaroslav/clusterplane/models"
)

// Header names used for version negotiation.
const (
	Header        = "OpenStack-API-Version"
	MinimumHeader = "OpenStack-API-Minimum-Version"
	MaximumHeader = "OpenStack-API-Maximum-Version"
)

// ServiceName is the only service token accepted in the version header.
const ServiceName = "container-infra"

// History describes every microversion the API has served.
const History = `REST API Version History:

    * 1.1 - Initial version
    * 1.2 - Async cluster operations support
    * 1.3 - Add cluster rollback support
    * 1.4 - Add stats API
    * 1.5 - Add cluster CA certificate rotation support
    * 1.6 - Add quotas API
    * 1.7 - Add resize API
    * 1.8 - Add upgrade API
    * 1.9 - Add nodegroup API
    * 1.10 - Allow nodegroups with 0 nodes
`

var (
	// BaseVersion is the oldest version served.
	BaseVersion = Version{Major: 1, Minor: 1}

	// MaxVersion is the newest version served.
	MaxVersion = Version{Major: 1, Minor: 10}
)

// ErrNullVersion is returned when a range check is attempted on the null version.
var ErrNullVersion = errors.New("null API version cannot be range checked")

// Version is a negotiated (major, minor) API microversion.
type Version struct {
	Major int
	Minor int
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// HeaderValue returns the version formatted for the OpenStack-API-Version header.
func (v Version) HeaderValue() string {
	return ServiceName + " " + v.String()
}

// Compare returns -1, 0 or 1 when v is less than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// LessThan reports whether v orders strictly before o.
func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

// IsNull reports whether v is the null version 0.0.
func (v Version) IsNull() bool {
	return v.Major == 0 && v.Minor == 0
}

// IsNull reports whether v is the null version 0.0.
func IsNull(v Version) bool {
	return v.IsNull()
}

// InRange reports whether start <= v <= end.
// It fails with ErrNullVersion when v is the null version.
func InRange(v, start, end Version) (bool, error) {
	if v.IsNull() {
		return false, ErrNullVersion
	}
	return start.Compare(v) <= 0 && v.Compare(end) <= 0, nil
}

// Parse parses a "major.minor" string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("version %q must have exactly two components", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustParse is like Parse but panics on error. Use it for constants only.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Negotiate resolves the requested version header value.
//
// Parameters:
//   - requested: raw header value, empty when the client sent none
//   - defaultHeader: header value used when requested is empty
//   - latestHeader: header value substituted when the client asks for "latest"
//
// Returns:
//   - Version: the negotiated version
//   - error: wraps models.ErrNotAcceptable when the header is malformed
func Negotiate(requested, defaultHeader, latestHeader string) (Version, error) {
	header := requested
	if header == "" {
		header = defaultHeader
	}

	service, version, ok := splitHeader(header)
	if !ok {
		return Version{}, fmt.Errorf("%w: invalid service type for %s header", models.ErrNotAcceptable, Header)
	}

	if strings.EqualFold(version, "latest") {
		service, version, ok = splitHeader(latestHeader)
		if !ok {
			return Version{}, fmt.Errorf("%w: invalid latest version for %s header", models.ErrNotAcceptable, Header)
		}
	}

	if service != ServiceName {
		return Version{}, fmt.Errorf("%w: invalid service type for %s header", models.ErrNotAcceptable, Header)
	}

	v, err := Parse(version)
	if err != nil {
		return Version{}, fmt.Errorf("%w: invalid value for %s header", models.ErrNotAcceptable, Header)
	}
	return v, nil
}

// FromHeader negotiates the version requested in h. A missing header selects
// defaultHeader; a header that is present but blank is refused.
func FromHeader(h http.Header, defaultHeader, latestHeader string) (Version, error) {
	values := h.Values(Header)
	if len(values) == 0 {
		return Negotiate("", defaultHeader, latestHeader)
	}
	if strings.TrimSpace(values[0]) == "" {
		return Version{}, fmt.Errorf("%w: empty value for %s header", models.ErrNotAcceptable, Header)
	}
	return Negotiate(values[0], defaultHeader, latestHeader)
}

// CheckSupported fails with models.ErrNotAcceptable when v is outside
// [BaseVersion, MaxVersion].
func CheckSupported(v Version) error {
	if v.LessThan(BaseVersion) || MaxVersion.LessThan(v) {
		return fmt.Errorf("%w: version %s was requested but the minimum supported version is %s and the maximum is %s",
			models.ErrNotAcceptable, v, BaseVersion, MaxVersion)
	}
	return nil
}

func splitHeader(header string) (string, string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
