// Package policy decides whether a caller may perform an API action.
//
// Rules are named boolean expressions over the caller's credentials and the
// target resource, loaded from a YAML file on top of built-in defaults.
package policy

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yaroslav/clusterplane/models"
)

// Action names checked by the cluster API.
const (
	ActionCreate             = "cluster:create"
	ActionGet                = "cluster:get"
	ActionGetAll             = "cluster:get_all"
	ActionDetail             = "cluster:detail"
	ActionUpdate             = "cluster:update"
	ActionDelete             = "cluster:delete"
	ActionUpdateHealthStatus = "cluster:update_health_status"
	ActionGetOneAllProjects  = "cluster:get_one_all_projects"
	ActionGetAllAllProjects  = "cluster:get_all_all_projects"
	ActionDetailAllProjects  = "cluster:detail_all_projects"
	ActionUpdateAllProjects  = "cluster:update_all_projects"
	ActionDeleteAllProjects  = "cluster:delete_all_projects"
)

// DefaultRules are applied before any rule file.
var DefaultRules = map[string]string{
	"context_is_admin": "role:admin",
	"admin_or_owner":   "is_admin:True or project_id:%(project_id)s",
	"admin_or_user":    "is_admin:True or user_id:%(user_id)s",
	"cluster_user":     "user_id:%(trustee_user_id)s",

	ActionCreate:             "rule:admin_or_owner",
	ActionGet:                "rule:admin_or_owner",
	ActionGetAll:             "rule:admin_or_owner",
	ActionDetail:             "rule:admin_or_owner",
	ActionUpdate:             "rule:admin_or_owner",
	ActionDelete:             "rule:admin_or_owner",
	ActionUpdateHealthStatus: "rule:admin_or_user or rule:cluster_user",
	ActionGetOneAllProjects:  "rule:context_is_admin",
	ActionGetAllAllProjects:  "rule:context_is_admin",
	ActionDetailAllProjects:  "rule:context_is_admin",
	ActionUpdateAllProjects:  "rule:context_is_admin",
	ActionDeleteAllProjects:  "rule:context_is_admin",
}

// Credentials describe the caller.
type Credentials struct {
	ProjectID string
	UserID    string
	DomainID  string
	Roles     []string
	IsAdmin   bool
}

func (c Credentials) attr(key string) (string, bool) {
	switch key {
	case "project_id", "tenant":
		return c.ProjectID, true
	case "user_id":
		return c.UserID, true
	case "domain_id":
		return c.DomainID, true
	case "is_admin":
		return strconv.FormatBool(c.IsAdmin), true
	}
	return "", false
}

// Enforcer evaluates compiled rules.
type Enforcer struct {
	rules  map[string]check
	logger *zap.Logger
}

// New compiles DefaultRules overlaid with overrides.
func New(overrides map[string]string, logger *zap.Logger) (*Enforcer, error) {
	e := &Enforcer{rules: make(map[string]check, len(DefaultRules)+len(overrides)), logger: logger}
	for _, set := range []map[string]string{DefaultRules, overrides} {
		for name, expr := range set {
			c, err := parseRule(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid policy rule %q: %w", name, err)
			}
			e.rules[name] = c
		}
	}
	return e, nil
}

// Load reads rule overrides from a YAML file mapping rule names to
// expressions. An empty path yields the defaults.
func Load(path string, logger *zap.Logger) (*Enforcer, error) {
	if path == "" {
		return New(nil, logger)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	logger.Info("loaded policy file", zap.String("path", path), zap.Int("rules", len(overrides)))
	return New(overrides, logger)
}

// Enforce checks action for creds against target.
//
// A nil target defaults to the caller's own project and user. Unknown
// actions are denied. Denials wrap models.ErrForbidden.
func (e *Enforcer) Enforce(creds Credentials, action string, target map[string]string) error {
	if target == nil {
		target = map[string]string{
			"project_id": creds.ProjectID,
			"user_id":    creds.UserID,
		}
	}

	rule, ok := e.rules[action]
	if ok && rule.eval(e, creds, target, 0) {
		return nil
	}

	e.logger.Info("policy denied",
		zap.String("action", action),
		zap.String("project_id", creds.ProjectID),
		zap.String("user_id", creds.UserID),
	)
	return fmt.Errorf("%w: policy doesn't allow %s to be performed", models.ErrForbidden, action)
}

// Allowed reports whether Enforce would pass.
func (e *Enforcer) Allowed(creds Credentials, action string, target map[string]string) bool {
	return e.Enforce(creds, action, target) == nil
}
