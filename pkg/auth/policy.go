package auth

import (
	"fmt"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// ---------------------------------------------------------------------------
// Permission
// ---------------------------------------------------------------------------

// Permission is a single resource/action grant, optionally restricted to a
// scope (e.g. an environment or tenant). Resource and Action may be the
// wildcard "*" to indicate unrestricted access; an empty Scope means the
// grant applies globally.
type Permission struct {
	// Resource is the resource class the grant applies to (e.g.
	// "functions", "invocations", "*").
	Resource string `json:"resource" yaml:"resource"`

	// Action is the operation the grant allows (e.g. "read", "invoke",
	// "*").
	Action string `json:"action" yaml:"action"`

	// Scope optionally restricts the grant to a named scope. Empty means
	// global.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// String returns the colon-delimited form: "resource:action" when the
// scope is empty or "*", otherwise "resource:action:scope".
func (p Permission) String() string {
	if p.Scope == "" || p.Scope == "*" {
		return p.Resource + ":" + p.Action
	}
	return p.Resource + ":" + p.Action + ":" + p.Scope
}

// Match reports whether this permission grants access to the given
// resource, action, and scope. Wildcards match anything; an empty or "*"
// scope on either side matches any scope.
func (p Permission) Match(resource, action, scope string) bool {
	if p.Resource != "*" && p.Resource != resource {
		return false
	}
	if p.Action != "*" && p.Action != action {
		return false
	}
	if p.Scope == "" || p.Scope == "*" || scope == "" || scope == "*" {
		return true
	}
	return p.Scope == scope
}

// ParsePermissionString parses a permission string into a [Permission].
// Two formats are supported: "resource:action" and
// "resource:action:scope". Resource and action must be non-empty; an
// empty scope in the three-part format is an error.
func ParsePermissionString(s string) (Permission, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return Permission{}, fmt.Errorf("auth: invalid permission string %q: missing colon separator", s)
	}
	if parts[0] == "" {
		return Permission{}, fmt.Errorf("auth: invalid permission string %q: empty resource", s)
	}
	if parts[1] == "" {
		return Permission{}, fmt.Errorf("auth: invalid permission string %q: empty action", s)
	}
	p := Permission{Resource: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		if parts[2] == "" {
			return Permission{}, fmt.Errorf("auth: invalid permission string %q: empty scope", s)
		}
		p.Scope = parts[2]
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// RolePermissionMap
// ---------------------------------------------------------------------------

// RolePermissionMap maps role names to the permissions they grant. It is
// the policy evaluated during the authorization phase against the roles
// asserted during authentication.
type RolePermissionMap map[string][]Permission

// DefaultRolePermissions returns the platform's standard role policy:
//
//   - admin: full access to all resources and actions.
//   - operator: full access to functions and their invocations, read
//     access to logs.
//   - invoker: may invoke functions and read its own invocations.
//   - viewer: read-only access to all resources.
//
// Callers may use this as a starting point and extend or override the
// mapping per function application.
func DefaultRolePermissions() RolePermissionMap {
	return RolePermissionMap{
		"admin": {
			{Resource: "*", Action: "*"},
		},
		"operator": {
			{Resource: "functions", Action: "*"},
			{Resource: "invocations", Action: "*"},
			{Resource: "logs", Action: "read"},
		},
		"invoker": {
			{Resource: "functions", Action: "invoke"},
			{Resource: "invocations", Action: "read"},
		},
		"viewer": {
			{Resource: "*", Action: "read"},
		},
	}
}

// RolesToPermissions resolves a set of asserted roles to a deduplicated
// slice of permissions using the given policy. Unknown role names are
// silently ignored.
func RolesToPermissions(roles RoleSet, policy RolePermissionMap) []Permission {
	seen := make(map[Permission]struct{})
	result := []Permission{}
	for _, name := range roles.Values() {
		for _, p := range policy[name] {
			if _, exists := seen[p]; exists {
				continue
			}
			seen[p] = struct{}{}
			result = append(result, p)
		}
	}
	return result
}

// Authorize checks whether the subject's asserted roles grant the given
// resource/action under the policy. Returns nil when access is granted, a
// 401-coded error when the subject carries no roles at all, and a
// 403-coded error when roles are present but insufficient.
func Authorize(sub *Subject, resource, action string, policy RolePermissionMap) *sserr.Error {
	if sub == nil || sub.Roles().Len() == 0 {
		return sserr.Unauthorized("auth: request is not authenticated")
	}
	for _, p := range RolesToPermissions(sub.Roles(), policy) {
		if p.Match(resource, action, "") {
			return nil
		}
	}
	return sserr.Forbidden(fmt.Sprintf("auth: subject lacks permission %s:%s", resource, action))
}
