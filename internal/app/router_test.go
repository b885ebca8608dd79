package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-site/internal/admin"
	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/identity"
	"github.com/odyssey-erp/odyssey-site/internal/observability"
	"github.com/odyssey-erp/odyssey-site/internal/rbac"
	"github.com/odyssey-erp/odyssey-site/internal/session"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// newTestServer boots the full router with an embedded identity backend that
// admin sessions reach over loopback, the way the binary runs by default.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := &Config{AppEnv: "test", AppRateLimit: 1000, AdminLoginPath: "/admin/login"}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := identity.NewMemoryRepository()
	created, err := identity.SeedFromFile(ctx, repo, "../../config/users.yaml")
	require.NoError(t, err)
	require.Positive(t, created)
	idService := identity.NewService(
		repo,
		identity.NewTokenIssuer("router-test-secret", time.Minute),
		identity.NewRedisRefreshStore(rdb, time.Hour),
	)

	templates, err := view.NewEngine(rbac.TemplateFuncs())
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	csrf := shared.NewCSRFManager("csrf-secret")
	registry := session.NewRegistry(session.RedisFactory(rdb, srv.URL+IdentityPrefix, time.Hour, logger, auth.WithMetrics(metrics)))
	mw := rbac.Middleware{Resolve: session.ResolveSubject, Templates: templates, Logger: logger, Metrics: metrics, LoginPath: cfg.AdminLoginPath}

	handler = NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		ClientManager:      shared.NewClientManager("odyssey_client", "client-secret", time.Hour, false),
		CSRFManager:        csrf,
		AdminHandler:       admin.NewHandler(logger, templates, csrf, registry, mw),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, templates, csrf, mw),
		IdentityHandler:    identity.NewHandler(logger, idService, 0),
		Metrics:            metrics,
	})
	return srv
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))
}

func TestStaticAssetsCached(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/static/css/admin.css")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
}

func TestAdminLoginFlowThroughEmbeddedIdentity(t *testing.T) {
	srv := newTestServer(t)
	browser := newBrowser(t)

	resp, err := browser.Get(srv.URL + "/admin/")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, "/admin/login", resp.Request.URL.Path)
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(t, match, 2)

	form := url.Values{}
	form.Set("email", "editor@odyssey.local")
	form.Set("password", "change-me-now")
	form.Set(shared.CSRFFormField, match[1])
	resp, err = browser.PostForm(srv.URL+"/admin/login", form)
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Equal(t, "/admin", strings.TrimSuffix(resp.Request.URL.Path, "/"))
	require.Contains(t, body, "Welcome,")

	resp, err = browser.Get(srv.URL + "/admin/users")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = browser.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metricsBody := readBody(t, resp)
	require.Contains(t, metricsBody, "odyssey_")
}

func TestAdminLoginRejectsMissingCSRF(t *testing.T) {
	srv := newTestServer(t)
	browser := newBrowser(t)

	resp, err := browser.PostForm(srv.URL+"/admin/login", url.Values{
		"email":    {"editor@odyssey.local"},
		"password": {"change-me-now"},
	})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIdentityReachableWithoutClientCookie(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/identity/auth/login", "application/json",
		strings.NewReader(`{"email":"viewer@odyssey.local","password":"change-me-now"}`))
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Contains(t, body, "accessToken")
	require.Empty(t, resp.Cookies())
}
