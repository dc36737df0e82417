package middleware

import (
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// Roles understood by the policy
const (
	RoleLearner  = "learner"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Operators inherit learner access; admins inherit operator access.
var (
	rbacPolicies = [][]string{
		{RoleLearner, "/api/v1/campaigns/:id/*", "GET|POST"},
		{RoleOperator, "/api/v1/admin/jobs/:name/run", "POST"},
		{RoleOperator, "/api/v1/admin/notifications/:id/requeue", "POST"},
		{RoleOperator, "/api/v1/admin/campaigns/:id/notifications/requeue-failed", "POST"},
		{RoleOperator, "/api/v1/admin/campaigns/:id/stats/recompute", "POST"},
		{RoleAdmin, "/api/v1/admin/campaigns/:id/enroll", "POST"},
		{RoleAdmin, "/api/v1/admin/jobs", "GET"},
	}
	rbacGroupings = [][]string{
		{RoleOperator, RoleLearner},
		{RoleAdmin, RoleOperator},
	}
)

// NewEnforcer builds the casbin enforcer holding the built-in role policy
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	for _, p := range rbacPolicies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", p, err)
		}
	}
	for _, g := range rbacGroupings {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("failed to add role %v: %w", g, err)
		}
	}
	return enforcer, nil
}

// RBACMiddleware allows the request when any of the caller's roles is granted
// the request path and method. Callers without a role are treated as learners.
func RBACMiddleware(enforcer *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles := Roles(c)
		if len(roles) == 0 {
			roles = []string{RoleLearner}
		}
		obj := c.Request.URL.Path
		act := c.Request.Method

		for _, role := range roles {
			allowed, err := enforcer.Enforce(role, obj, act)
			if err != nil {
				slog.Error("rbac enforce failed", "error", err, "role", role, "path", obj)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "RBAC system error"})
				return
			}
			if allowed {
				c.Next()
				return
			}
		}

		slog.Warn("rbac denied", "roles", roles, "path", obj, "method", act, "userId", UserID(c))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient permissions"})
	}
}
