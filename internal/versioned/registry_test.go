package versioned

import (
	"errors"
	"testing"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/models"
)

var v = apiversion.MustParse

func TestResolve_SelectsByRange(t *testing.T) {
	r := NewRegistry[string]()
	r.MustRegister("create", v("1.1"), v("1.9"), "H1")
	r.MustRegister("create", v("1.10"), v("1.10"), "H2")

	tests := []struct {
		version string
		want    string
	}{
		{"1.1", "H1"},
		{"1.5", "H1"},
		{"1.9", "H1"},
		{"1.10", "H2"},
	}

	for _, tt := range tests {
		got, err := r.Resolve("create", v(tt.version))
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", tt.version, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%s) = %s, want %s", tt.version, got, tt.want)
		}
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewRegistry[string]()
	r.MustRegister("create", v("1.1"), v("1.9"), "H1")

	cases := []struct {
		name    string
		version apiversion.Version
	}{
		{"create", v("1.10")},
		{"delete", v("1.1")},
		{"create", apiversion.Version{}},
	}

	for _, tc := range cases {
		if _, err := r.Resolve(tc.name, tc.version); !errors.Is(err, models.ErrNoSuchVersionedOperation) {
			t.Errorf("Resolve(%s, %s) error = %v, want ErrNoSuchVersionedOperation", tc.name, tc.version, err)
		}
	}
}

func TestResolve_FirstRegisteredWins(t *testing.T) {
	r := NewRegistry[int]()
	r.MustRegister("patch", v("1.1"), v("1.5"), 1)
	r.MustRegister("patch", v("1.3"), v("1.9"), 2)

	got, err := r.Resolve("patch", v("1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Errorf("Resolve() = %d, want first registered handler", got)
	}
}

func TestRegister_Invalid(t *testing.T) {
	r := NewRegistry[string]()

	if err := r.Register("create", v("1.5"), v("1.2"), "x"); err == nil {
		t.Error("expected error for start after end")
	}
	if err := r.Register("create", apiversion.Version{}, v("1.2"), "x"); err == nil {
		t.Error("expected error for null start")
	}
	if err := r.Register("", v("1.1"), v("1.2"), "x"); err == nil {
		t.Error("expected error for empty name")
	}
	if got := len(r.Methods("create")); got != 0 {
		t.Errorf("Methods() len = %d, want 0", got)
	}
}

func TestMethods_RegistrationOrder(t *testing.T) {
	r := NewRegistry[string]()
	r.MustRegister("patch", v("1.1"), v("1.2"), "a")
	r.MustRegister("patch", v("1.3"), v("1.9"), "b")
	r.MustRegister("patch", v("1.10"), v("1.10"), "c")

	methods := r.Methods("patch")
	if len(methods) != 3 {
		t.Fatalf("Methods() len = %d, want 3", len(methods))
	}
	for i, want := range []string{"a", "b", "c"} {
		if methods[i].Handler != want {
			t.Errorf("methods[%d] = %s, want %s", i, methods[i].Handler, want)
		}
	}
}
