package shared

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the privilege tier assigned to a back-office user.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleViewer     Role = "viewer"
)

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin, RoleSuperAdmin}
}

// ParseRole validates a raw role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	if _, ok := rolePermissions[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether r is one of the four supported roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Label renders the role for display, e.g. "Super Admin".
func (r Role) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(r), "_", " "))
}

// rolePermissions is maintained by hand. Each tier must stay a superset of the tier
// below it; roles_test.go enforces that.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermDashboardView,
		PermContentView,
		PermBlogView,
		PermMediaView,
		PermAnalyticsView,
		PermQRCodesView,
		PermSignboardsView,
	},
	RoleEditor: {
		PermDashboardView,
		PermContentView, PermContentCreate, PermContentEdit, PermContentPublish,
		PermBlogView, PermBlogCreate, PermBlogEdit, PermBlogPublish,
		PermMediaView, PermMediaUpload, PermMediaEdit,
		PermAnalyticsView,
		PermQRCodesView, PermQRCodesCreate, PermQRCodesEdit,
		PermSignboardsView, PermSignboardsCreate, PermSignboardsEdit,
	},
	RoleAdmin: {
		PermDashboardView,
		PermContentView, PermContentCreate, PermContentEdit, PermContentPublish, PermContentDelete,
		PermBlogView, PermBlogCreate, PermBlogEdit, PermBlogPublish, PermBlogDelete,
		PermMediaView, PermMediaUpload, PermMediaEdit, PermMediaDelete,
		PermAnalyticsView, PermAnalyticsExport,
		PermQRCodesView, PermQRCodesCreate, PermQRCodesEdit, PermQRCodesDelete,
		PermSignboardsView, PermSignboardsCreate, PermSignboardsEdit, PermSignboardsDelete,
		PermUsersView, PermUsersCreate, PermUsersEdit,
		PermRolesView,
		PermSettingsView, PermSettingsGeneralEdit,
	},
	RoleSuperAdmin: {
		PermDashboardView,
		PermContentView, PermContentCreate, PermContentEdit, PermContentPublish, PermContentDelete,
		PermBlogView, PermBlogCreate, PermBlogEdit, PermBlogPublish, PermBlogDelete,
		PermMediaView, PermMediaUpload, PermMediaEdit, PermMediaDelete,
		PermAnalyticsView, PermAnalyticsExport,
		PermQRCodesView, PermQRCodesCreate, PermQRCodesEdit, PermQRCodesDelete,
		PermSignboardsView, PermSignboardsCreate, PermSignboardsEdit, PermSignboardsDelete,
		PermUsersView, PermUsersCreate, PermUsersEdit, PermUsersDelete,
		PermRolesView, PermRolesEdit,
		PermSettingsView, PermSettingsGeneralEdit, PermSettingsSecurityEdit, PermSettingsIntegrationsEdit,
		PermAuditView,
	},
}

// RolePermissions returns a copy of the permissions granted to role.
// Unknown roles get an empty set.
func RolePermissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
