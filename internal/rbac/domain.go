package rbac

import (
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Subject is the authorization view of one client session.
type Subject struct {
	Loading       bool
	Authenticated bool
	Role          shared.Role
	Permissions   []shared.Permission
}

// Requirement describes what a guarded route or component needs.
// Permission and Permissions are concatenated; RequireAll switches from "any" to "all".
// Roles, when set, is an allow-list checked against the subject's role.
type Requirement struct {
	Permission  shared.Permission
	Permissions []shared.Permission
	RequireAll  bool
	Roles       []shared.Role
}

// Required returns the combined permission list.
func (r Requirement) Required() []shared.Permission {
	out := make([]shared.Permission, 0, len(r.Permissions)+1)
	if r.Permission != "" {
		out = append(out, r.Permission)
	}
	for _, p := range r.Permissions {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Outcome is the guard's verdict.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRedirect
	OutcomeDenied
	OutcomeAllow
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeDenied:
		return "denied"
	case OutcomeAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decision carries the outcome plus what was missing on denial.
type Decision struct {
	Outcome      Outcome
	Missing      []shared.Permission
	AllowedRoles []shared.Role
}

// Allowed reports whether children may render.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}
