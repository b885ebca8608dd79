package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

func newTestStack(t *testing.T, exempt ...string) (http.Handler, *shared.ClientManager, *shared.CSRFManager) {
	t.Helper()
	clients := shared.NewClientManager("odyssey_client", "client-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:        &Config{AppRateLimit: 100},
		ClientManager: clients,
		CSRFManager:   csrf,
		Exempt:        exempt,
	}) {
		r.Use(mw)
	}
	echo := func(w http.ResponseWriter, r *http.Request) {
		if c := shared.ClientFromContext(r.Context()); c != nil {
			_, _ = w.Write([]byte(c.ID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	}
	r.Get("/page", echo)
	r.Post("/page", echo)
	r.Post("/identity/auth/login", echo)
	return r, clients, csrf
}

func TestClientCookieIssuedOnce(t *testing.T) {
	h, clients, _ := newTestStack(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, clients.CookieName(), cookies[0].Name)
	id := rec.Body.String()
	require.NotEmpty(t, id)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, id, rec.Body.String())
	require.Empty(t, rec.Result().Cookies())
}

func TestTamperedClientCookieReplaced(t *testing.T) {
	h, clients, _ := newTestStack(t)

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: clients.CookieName(), Value: "forged.value"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestCSRFRequiredForUnsafeMethods(t *testing.T) {
	h, clients, csrf := newTestStack(t)

	req := httptest.NewRequest(http.MethodPost, "/page", nil)
	req.AddCookie(&http.Cookie{Name: clients.CookieName(), Value: clients.CookieValue("client-1")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	token, err := csrf.EnsureToken(req.Context(), &shared.Client{ID: "client-1"})
	require.NoError(t, err)

	form := url.Values{shared.CSRFFormField: {token}}
	req = httptest.NewRequest(http.MethodPost, "/page", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: clients.CookieName(), Value: clients.CookieValue("client-1")})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "client-1", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/page", nil)
	req.Header.Set(shared.CSRFHeader, token)
	req.AddCookie(&http.Cookie{Name: clients.CookieName(), Value: clients.CookieValue("client-1")})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExemptPrefixSkipsClientAndCSRF(t *testing.T) {
	h, _, _ := newTestStack(t, "/identity/")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/identity/auth/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anonymous", rec.Body.String())
	require.Empty(t, rec.Result().Cookies())
}

func TestSecureHeadersApplied(t *testing.T) {
	h, _, _ := newTestStack(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
