package admin

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-site/internal/session"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// section is a guarded back-office area. Only its access rules live here.
type section struct {
	path  string
	title string
	view  shared.Permission
	edit  shared.Permission
	roles []shared.Role
}

var sections = []section{
	{path: "/content", title: "Content", view: shared.PermContentView, edit: shared.PermContentCreate},
	{path: "/blog", title: "Blog", view: shared.PermBlogView, edit: shared.PermBlogCreate},
	{path: "/media", title: "Media library", view: shared.PermMediaView, edit: shared.PermMediaUpload},
	{path: "/analytics", title: "Analytics", view: shared.PermAnalyticsView, edit: shared.PermAnalyticsExport},
	{path: "/qrcodes", title: "QR codes", view: shared.PermQRCodesView, edit: shared.PermQRCodesCreate},
	{path: "/signboards", title: "Signboards", view: shared.PermSignboardsView, edit: shared.PermSignboardsCreate},
	{path: "/users", title: "Users", view: shared.PermUsersView, edit: shared.PermUsersCreate},
	{path: "/audit", title: "Audit log", view: shared.PermAuditView},
	{path: "/settings", title: "Settings", edit: shared.PermSettingsGeneralEdit, roles: []shared.Role{shared.RoleAdmin, shared.RoleSuperAdmin}},
}

func (h *Handler) section(s section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager := session.FromContext(r.Context())
		canEdit := s.edit != "" && manager != nil && manager.HasPermission(s.edit)
		h.render(w, r, http.StatusOK, "pages/section.html", s.title, map[string]any{"CanEdit": canEdit})
	}
}
