package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-site/internal/admin"
	"github.com/odyssey-erp/odyssey-site/internal/identity"
	"github.com/odyssey-erp/odyssey-site/internal/observability"
	"github.com/odyssey-erp/odyssey-site/internal/rbac"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
	"github.com/odyssey-erp/odyssey-site/web"
)

// IdentityPrefix is where the embedded identity backend is mounted.
const IdentityPrefix = "/identity"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Templates          *view.Engine
	ClientManager      *shared.ClientManager
	CSRFManager        *shared.CSRFManager
	AdminHandler       *admin.Handler
	PermissionsHandler *rbac.PermissionsHandler
	// IdentityHandler is nil when an external identity backend is configured.
	IdentityHandler *identity.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	var exempt []string
	if params.IdentityHandler != nil {
		exempt = append(exempt, IdentityPrefix+"/")
	}
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		ClientManager: params.ClientManager,
		CSRFManager:   params.CSRFManager,
		Metrics:       params.Metrics,
		Exempt:        exempt,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Public landing page
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), shared.ClientFromContext(r.Context()))
		data := view.TemplateData{
			Title:       "Odyssey",
			CSRFToken:   csrfToken,
			CurrentPath: r.URL.Path,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	if params.IdentityHandler != nil {
		r.Route(IdentityPrefix, params.IdentityHandler.MountRoutes)
	}

	r.Route("/admin", func(r chi.Router) {
		params.AdminHandler.MountRoutes(r)
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
