package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yaroslav/clusterplane/models"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		creds   Credentials
		target  map[string]string
		want    bool
		wantErr bool
	}{
		{name: "empty passes", rule: "", want: true},
		{name: "always", rule: "@", want: true},
		{name: "never", rule: "!", want: false},
		{name: "role match", rule: "role:admin", creds: Credentials{Roles: []string{"member", "Admin"}}, want: true},
		{name: "role miss", rule: "role:admin", creds: Credentials{Roles: []string{"member"}}, want: false},
		{name: "is_admin", rule: "is_admin:True", creds: Credentials{IsAdmin: true}, want: true},
		{name: "target ref", rule: "project_id:%(project_id)s", creds: Credentials{ProjectID: "p1"},
			target: map[string]string{"project_id": "p1"}, want: true},
		{name: "target ref mismatch", rule: "project_id:%(project_id)s", creds: Credentials{ProjectID: "p1"},
			target: map[string]string{"project_id": "p2"}, want: false},
		{name: "target ref missing", rule: "user_id:%(trustee_user_id)s", creds: Credentials{UserID: "u1"},
			target: map[string]string{}, want: false},
		{name: "literal", rule: "user_id:u1", creds: Credentials{UserID: "u1"}, want: true},
		{name: "and binds tighter", rule: "@ or ! and !", want: true},
		{name: "parentheses", rule: "(@ or !) and !", want: false},
		{name: "not", rule: "not role:reader", creds: Credentials{Roles: []string{"member"}}, want: true},
		{name: "bad atom", rule: "admin", wantErr: true},
		{name: "unbalanced", rule: "(@ or !", wantErr: true},
		{name: "dangling or", rule: "@ or", wantErr: true},
	}

	e, err := New(nil, zap.NewNop())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseRule(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.eval(e, tt.creds, tt.target, 0))
		})
	}
}

func TestEnforce_Defaults(t *testing.T) {
	e, err := New(nil, zap.NewNop())
	require.NoError(t, err)

	owner := Credentials{ProjectID: "p1", UserID: "u1", Roles: []string{"member"}}
	other := Credentials{ProjectID: "p2", UserID: "u2", Roles: []string{"member"}}
	admin := Credentials{ProjectID: "admin", UserID: "root", Roles: []string{"admin"}, IsAdmin: true}
	cluster := map[string]string{"project_id": "p1", "user_id": "u1"}

	assert.NoError(t, e.Enforce(owner, ActionGet, cluster))
	assert.ErrorIs(t, e.Enforce(other, ActionGet, cluster), models.ErrForbidden)
	assert.NoError(t, e.Enforce(admin, ActionDelete, cluster))

	assert.NoError(t, e.Enforce(owner, ActionCreate, nil), "nil target is the caller's own project")
	assert.NoError(t, e.Enforce(owner, ActionUpdateHealthStatus, nil))

	assert.NoError(t, e.Enforce(admin, ActionGetAllAllProjects, nil))
	assert.ErrorIs(t, e.Enforce(owner, ActionGetAllAllProjects, nil), models.ErrForbidden)

	assert.ErrorIs(t, e.Enforce(admin, "cluster:explode", nil), models.ErrForbidden, "unknown actions are denied")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
"cluster:create": "role:creator"
"cluster:delete": "!"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	e, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	owner := Credentials{ProjectID: "p1", UserID: "u1", Roles: []string{"member"}}
	assert.ErrorIs(t, e.Enforce(owner, ActionCreate, nil), models.ErrForbidden)
	assert.True(t, e.Allowed(Credentials{ProjectID: "p1", Roles: []string{"creator"}}, ActionCreate, nil))
	assert.False(t, e.Allowed(owner, ActionDelete, nil))
	assert.True(t, e.Allowed(owner, ActionGet, nil), "defaults survive overrides")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`"cluster:get": "role:a and"`), 0o600))
	_, err = Load(bad, zap.NewNop())
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"), zap.NewNop())
	assert.Error(t, err)

	e, err = Load("", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, e.Allowed(owner, ActionGet, nil))
}

func TestRuleRecursionIsBounded(t *testing.T) {
	e, err := New(map[string]string{"loop": "rule:loop"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, e.Allowed(Credentials{}, "loop", nil))
}
