package util

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/yaroslav/clusterplane/models"
)

var clusterNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidateUUID checks that id is a UUID.
//
// Parameters:
//   - id: The string to validate
//
// Returns:
//   - error: models.ErrInvalidParameterValue when id is not a UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid UUID %q", models.ErrInvalidParameterValue, id)
	}
	return nil
}

// ValidateClusterName checks the name length and character set.
//
// Names start with a letter, continue with letters, digits, '_', '.' or '-',
// and are at most models.MaxClusterNameLength characters.
func ValidateClusterName(name string) error {
	if len(name) == 0 || len(name) > models.MaxClusterNameLength {
		return fmt.Errorf("%w: cluster name must be 1 to %d characters",
			models.ErrInvalidParameterValue, models.MaxClusterNameLength)
	}
	if !clusterNamePattern.MatchString(name) {
		return fmt.Errorf("%w: cluster name %q must start with a letter and contain only letters, digits, '_', '.' or '-'",
			models.ErrInvalidParameterValue, name)
	}
	return nil
}
