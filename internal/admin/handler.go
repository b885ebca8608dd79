// Package admin serves the back-office console: sign-in, sign-out, session state
// and the guarded section pages.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-site/internal/rbac"
	"github.com/odyssey-erp/odyssey-site/internal/session"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
)

const dashboardPath = "/admin"

// Handler wires HTTP endpoints for the admin console.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	registry  *session.Registry
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, registry *session.Registry, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		templates: templates,
		csrf:      csrf,
		registry:  registry,
		rbac:      rbacMW,
		validator: validator.New(),
	}
}

// MountRoutes registers admin routes on provided router. The session middleware
// must run first so guards can resolve the client's subject.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.AttachSession)

	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/api/session", h.sessionState)

	r.With(h.rbac.RequireAny(shared.PermDashboardView)).Get("/", h.dashboard)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.Requirement{}))
		r.Get("/profile", h.showProfile)
		r.Post("/profile", h.updateProfile)
		r.Post("/profile/password", h.changePassword)
	})

	for _, s := range sections {
		guard := h.rbac.RequireAny(s.view)
		if len(s.roles) > 0 {
			guard = h.rbac.RequireRoles(s.roles...)
		}
		r.With(guard).Get(s.path, h.section(s))
	}
}

// AttachSession binds the client's session Manager to the request.
func (h *Handler) AttachSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := shared.ClientFromContext(r.Context())
		if client == nil {
			next.ServeHTTP(w, r)
			return
		}
		manager, release := h.registry.Acquire(r.Context(), client.ID)
		defer release()
		ctx := session.ContextWithManager(r.Context(), manager)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionPayload struct {
	session.State
	CSRFToken string `json:"csrfToken,omitempty"`
}

func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request) {
	manager := session.FromContext(r.Context())
	if manager == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "client cookie missing")
		return
	}
	token, _ := h.csrf.EnsureToken(r.Context(), shared.ClientFromContext(r.Context()))
	httpx.JSON(w, http.StatusOK, sessionPayload{State: manager.State(), CSRFToken: token})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	state := session.FromContext(r.Context()).State()
	if state.User == nil {
		http.Redirect(w, r, h.rbac.LoginURL(), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", map[string]any{
		"User":      state.User,
		"RoleLabel": state.User.Role.Label(),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), shared.ClientFromContext(r.Context()))
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Subject:     session.ResolveSubject(r),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "This field is required"
		case "email":
			out[fe.Field()] = "Enter a valid email address"
		case "min":
			out[fe.Field()] = "Must be at least " + fe.Param() + " characters"
		case "max":
			out[fe.Field()] = "Must be at most " + fe.Param() + " characters"
		case "nefield":
			out[fe.Field()] = "Must differ from the current password"
		default:
			out[fe.Field()] = "Invalid value"
		}
	}
	return out
}

// sessionLost reports whether err means the session ended underneath the request.
func sessionLost(err error) bool {
	return errors.Is(err, session.ErrNotAuthenticated) || auth.IsUnauthorized(err)
}
