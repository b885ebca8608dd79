package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-site/internal/observability"
	"github.com/odyssey-erp/odyssey-site/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
)

// DefaultLoginPath is where unauthenticated clients are sent.
const DefaultLoginPath = "/admin/login"

// SubjectResolver yields the subject of the client bound to the request.
type SubjectResolver func(r *http.Request) Subject

// Middleware wires route and component guards for HTTP handlers.
type Middleware struct {
	Resolve   SubjectResolver
	Templates *view.Engine
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	LoginPath string
}

// Option customises a single guard.
type Option func(*guardOptions)

type guardOptions struct {
	fallback http.Handler
}

// WithFallback renders fallback instead of the default access-denied panel.
func WithFallback(fallback http.Handler) Option {
	return func(o *guardOptions) {
		o.fallback = fallback
	}
}

// Require guards a route with req.
func (m Middleware) Require(req Requirement, opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Protect(next, req, opts...)
	}
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...shared.Permission) func(http.Handler) http.Handler {
	return m.Require(Requirement{Permissions: perms})
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...shared.Permission) func(http.Handler) http.Handler {
	return m.Require(Requirement{Permissions: perms, RequireAll: true})
}

// RequireRoles ensures the current user's role is one of roles.
func (m Middleware) RequireRoles(roles ...shared.Role) func(http.Handler) http.Handler {
	return m.Require(Requirement{Roles: roles})
}

// Protect wraps any handler with a static requirement, for use outside the router.
func (m Middleware) Protect(next http.Handler, req Requirement, opts ...Option) http.Handler {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := Decide(m.subject(r), req)
		m.Metrics.ObserveGuard(decision.Outcome.String())
		switch decision.Outcome {
		case OutcomeAllow:
			next.ServeHTTP(w, r)
		case OutcomeLoading:
			m.renderLoading(w, r)
		case OutcomeRedirect:
			m.redirectToLogin(w, r)
		default:
			if o.fallback != nil {
				o.fallback.ServeHTTP(w, r)
				return
			}
			m.renderDenied(w, r, decision)
		}
	})
}

func (m Middleware) subject(r *http.Request) Subject {
	if m.Resolve == nil {
		return Subject{}
	}
	return m.Resolve(r)
}

// LoginURL is the configured login path, or DefaultLoginPath.
func (m Middleware) LoginURL() string {
	if m.LoginPath == "" {
		return DefaultLoginPath
	}
	return m.LoginPath
}

func (m Middleware) renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
		return
	}
	if err := m.Templates.Render(w, "pages/loading.html", view.TemplateData{Title: "Loading", CurrentPath: r.URL.Path}); err != nil {
		m.logError("render loading", err)
		http.Error(w, "Loading", http.StatusOK)
	}
}

// redirectToLogin drops the attempted destination; the login page always lands on the dashboard.
func (m Middleware) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	http.Redirect(w, r, m.LoginURL(), http.StatusSeeOther)
}

func (m Middleware) renderDenied(w http.ResponseWriter, r *http.Request, d Decision) {
	roles := make([]string, 0, len(d.AllowedRoles))
	for _, role := range d.AllowedRoles {
		roles = append(roles, role.Label())
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusForbidden, deniedProblem{
			ProblemDetail: httpx.ProblemDetail{Title: "Forbidden", Status: http.StatusForbidden, Detail: "insufficient permissions"},
			Missing:       d.Missing,
			Roles:         d.AllowedRoles,
		})
		return
	}
	data := view.TemplateData{
		Title:       "Access denied",
		CurrentPath: r.URL.Path,
		Subject:     m.subject(r),
		Data:        map[string]any{"Missing": d.Missing, "Roles": roles},
	}
	if err := m.Templates.RenderStatus(w, http.StatusForbidden, "pages/access_denied.html", data); err != nil {
		m.logError("render access denied", err)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}

type deniedProblem struct {
	httpx.ProblemDetail
	Missing []shared.Permission `json:"missing,omitempty"`
	Roles   []shared.Role       `json:"roles,omitempty"`
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
