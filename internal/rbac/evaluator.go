package rbac

import (
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// HasPermission reports whether want is in have.
func HasPermission(have []shared.Permission, want shared.Permission) bool {
	for _, p := range have {
		if p == want {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of wanted is in have.
// An empty wanted list is no requirement and is satisfied.
func HasAnyPermission(have []shared.Permission, wanted []shared.Permission) bool {
	if len(wanted) == 0 {
		return true
	}
	set := permissionSet(have)
	for _, w := range wanted {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every element of wanted is in have.
func HasAllPermissions(have []shared.Permission, wanted []shared.Permission) bool {
	if len(wanted) == 0 {
		return true
	}
	set := permissionSet(have)
	for _, w := range wanted {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// MissingPermissions returns the elements of wanted absent from have, deduplicated, in order.
func MissingPermissions(have []shared.Permission, wanted []shared.Permission) []shared.Permission {
	set := permissionSet(have)
	seen := make(map[shared.Permission]struct{}, len(wanted))
	var missing []shared.Permission
	for _, w := range wanted {
		if _, ok := set[w]; ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		missing = append(missing, w)
	}
	return missing
}

func permissionSet(perms []shared.Permission) map[shared.Permission]struct{} {
	set := make(map[shared.Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
