package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
)

// PermissionsHandler renders the role/permission matrix.
type PermissionsHandler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView))
		r.Get("/", h.listPermissions)
	})
}

// MatrixRow is one permission and whether each role holds it.
type MatrixRow struct {
	Permission shared.Permission
	Granted    []bool
}

// Matrix builds one row per permission with a column per role, least privileged first.
func Matrix() []MatrixRow {
	roles := shared.Roles()
	granted := make([][]shared.Permission, len(roles))
	for i, role := range roles {
		granted[i] = shared.RolePermissions(role)
	}
	rows := make([]MatrixRow, 0, len(shared.AllPermissions()))
	for _, p := range shared.AllPermissions() {
		row := MatrixRow{Permission: p, Granted: make([]bool, len(roles))}
		for i := range roles {
			row.Granted[i] = HasPermission(granted[i], p)
		}
		rows = append(rows, row)
	}
	return rows
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), shared.ClientFromContext(r.Context()))
	data := view.TemplateData{
		Title:       "Permissions",
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Subject:     h.rbac.subject(r),
		Data:        map[string]any{"Roles": shared.Roles(), "Rows": Matrix()},
	}
	if err := h.templates.Render(w, "pages/permissions.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
