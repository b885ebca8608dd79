package shared

// Permission is a closed-vocabulary capability tag. Checks compare tags by exact equality.
type Permission string

// Core platform permissions.
const (
	PermDashboardView Permission = "admin.dashboard.view"

	PermUsersView   Permission = "users.view"
	PermUsersCreate Permission = "users.create"
	PermUsersEdit   Permission = "users.edit"
	PermUsersDelete Permission = "users.delete"

	PermRolesView Permission = "roles.view"
	PermRolesEdit Permission = "roles.edit"

	PermSettingsView             Permission = "settings.view"
	PermSettingsGeneralEdit      Permission = "settings.general.edit"
	PermSettingsSecurityEdit     Permission = "settings.security.edit"
	PermSettingsIntegrationsEdit Permission = "settings.integrations.edit"

	PermAuditView Permission = "audit.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []Permission {
	return []Permission{
		PermDashboardView,
		PermUsersView,
		PermUsersCreate,
		PermUsersEdit,
		PermUsersDelete,
		PermRolesView,
		PermRolesEdit,
		PermSettingsView,
		PermSettingsGeneralEdit,
		PermSettingsSecurityEdit,
		PermSettingsIntegrationsEdit,
		PermAuditView,
	}
}

// AllPermissions returns the full permission vocabulary.
func AllPermissions() []Permission {
	all := CoreScopes()
	all = append(all, ContentScopes()...)
	all = append(all, MarketingScopes()...)
	return all
}

// IsKnownPermission reports whether p belongs to the vocabulary.
func IsKnownPermission(p Permission) bool {
	for _, known := range AllPermissions() {
		if known == p {
			return true
		}
	}
	return false
}
