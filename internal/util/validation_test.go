package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/yaroslav/clusterplane/models"
)

func TestValidateClusterName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "k8s", false},
		{"punctuation", "prod.k8s_a-1", false},
		{"max length", "a" + strings.Repeat("b", models.MaxClusterNameLength-1), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", models.MaxClusterNameLength+1), true},
		{"leading digit", "1cluster", true},
		{"leading dash", "-cluster", true},
		{"space", "my cluster", true},
		{"slash", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClusterName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateClusterName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrInvalidParameterValue) {
				t.Errorf("error %v does not wrap ErrInvalidParameterValue", err)
			}
		})
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("5d12f6fd-a196-4bf0-ae4c-1f639a523a52"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	if err := ValidateUUID("not-a-uuid"); !errors.Is(err, models.ErrInvalidParameterValue) {
		t.Errorf("invalid uuid error = %v", err)
	}
	if IsUUID("k8s-cluster") {
		t.Error("IsUUID(name) = true")
	}
}
