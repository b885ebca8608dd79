package rbac

import (
	"html/template"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Decide applies the guard contract to a subject: loading first, then authentication,
// then the role allow-list, then permissions.
func Decide(s Subject, req Requirement) Decision {
	if s.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if !s.Authenticated {
		return Decision{Outcome: OutcomeRedirect}
	}
	if len(req.Roles) > 0 && !roleAllowed(s.Role, req.Roles) {
		return Decision{Outcome: OutcomeDenied, AllowedRoles: req.Roles}
	}
	required := req.Required()
	if len(required) == 0 {
		return Decision{Outcome: OutcomeAllow}
	}
	var ok bool
	if req.RequireAll {
		ok = HasAllPermissions(s.Permissions, required)
	} else {
		ok = HasAnyPermission(s.Permissions, required)
	}
	if !ok {
		return Decision{Outcome: OutcomeDenied, Missing: MissingPermissions(s.Permissions, required)}
	}
	return Decision{Outcome: OutcomeAllow}
}

func roleAllowed(role shared.Role, allowed []shared.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// TemplateFuncs exposes component-level guards to templates:
// `can` is "any" semantics, `canAll` is "all" semantics.
func TemplateFuncs() template.FuncMap {
	check := func(requireAll bool) func(subject any, perms ...string) bool {
		return func(subject any, perms ...string) bool {
			s, ok := subject.(Subject)
			if !ok {
				return false
			}
			req := Requirement{RequireAll: requireAll}
			for _, p := range perms {
				req.Permissions = append(req.Permissions, shared.Permission(p))
			}
			return Decide(s, req).Allowed()
		}
	}
	return template.FuncMap{
		"can":    check(false),
		"canAll": check(true),
	}
}
