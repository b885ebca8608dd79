package shared

// Analytics, QR code and signboard permissions.
const (
	PermAnalyticsView   Permission = "analytics.view"
	PermAnalyticsExport Permission = "analytics.export"

	PermQRCodesView   Permission = "qrcodes.view"
	PermQRCodesCreate Permission = "qrcodes.create"
	PermQRCodesEdit   Permission = "qrcodes.edit"
	PermQRCodesDelete Permission = "qrcodes.delete"

	PermSignboardsView   Permission = "signboards.view"
	PermSignboardsCreate Permission = "signboards.create"
	PermSignboardsEdit   Permission = "signboards.edit"
	PermSignboardsDelete Permission = "signboards.delete"
)

// MarketingScopes lists all permissions related to marketing tooling.
func MarketingScopes() []Permission {
	return []Permission{
		PermAnalyticsView,
		PermAnalyticsExport,
		PermQRCodesView,
		PermQRCodesCreate,
		PermQRCodesEdit,
		PermQRCodesDelete,
		PermSignboardsView,
		PermSignboardsCreate,
		PermSignboardsEdit,
		PermSignboardsDelete,
	}
}
