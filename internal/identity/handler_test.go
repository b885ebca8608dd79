package identity

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

func newIdentityServer(t *testing.T, loginLimit int) (*Service, string) {
	t.Helper()
	service, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(nil, service, loginLimit).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return service, srv.URL
}

func TestClientRoundTripAgainstHandler(t *testing.T) {
	_, url := newIdentityServer(t, 0)
	ctx := context.Background()
	store := auth.NewMemoryTokenStore()
	client := auth.NewClient(url, store)

	_, err := client.Login(ctx, auth.Credentials{Email: "admin@odyssey.test", Password: "bad-password"})
	var authErr *auth.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid email or password", authErr.Message)

	result, err := client.Login(ctx, auth.Credentials{Email: "admin@odyssey.test", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(ctx, result.Tokens))

	me, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, me.ID)
	assert.Equal(t, shared.RoleAdmin, me.Role)

	updated, err := client.UpdateProfile(ctx, auth.ProfileUpdate{Name: "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)

	err = client.ChangePassword(ctx, auth.PasswordChange{CurrentPassword: "wrong-one", NewPassword: "a-new-password"})
	require.Error(t, err)
	assert.False(t, auth.IsUnauthorized(err), "a wrong current password must not look like an expired token")

	client.Logout(ctx)
	_, err = client.RefreshAccessToken(ctx)
	assert.ErrorIs(t, err, auth.ErrRefreshFailed, "logout revoked the refresh token")
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	service, url := newIdentityServer(t, 0)
	ctx := context.Background()
	store := auth.NewMemoryTokenStore()
	client := auth.NewClient(url, store)

	result, err := client.Login(ctx, auth.Credentials{Email: "admin@odyssey.test", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, store.SaveTokens(ctx, result.Tokens))

	issuedAt := time.Now()
	service.tokens.now = func() time.Time { return issuedAt.Add(20 * time.Minute) }

	me, err := client.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, me.ID)

	access, _ := store.AccessToken(ctx)
	assert.NotEqual(t, result.Tokens.AccessToken, access)
}

func TestBearerRequired(t *testing.T) {
	_, url := newIdentityServer(t, 0)

	resp, err := http.Get(url + "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginIsRateLimited(t *testing.T) {
	_, url := newIdentityServer(t, 2)
	body := []byte(`{"email":"admin@odyssey.test","password":"bad-password"}`)

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Post(url+"/auth/login", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		last = resp.StatusCode
		resp.Body.Close()
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLoginLimitIsPerRelayedBrowser(t *testing.T) {
	_, url := newIdentityServer(t, 3)
	client := auth.NewClient(url, auth.NewMemoryTokenStore())
	attacker := auth.WithClientIP(context.Background(), "203.0.113.9")
	victim := auth.WithClientIP(context.Background(), "198.51.100.7")

	for i := 0; i < 3; i++ {
		_, err := client.Login(attacker, auth.Credentials{Email: "admin@odyssey.test", Password: "bad-password"})
		var authErr *auth.AuthenticationError
		require.ErrorAs(t, err, &authErr)
	}
	_, err := client.Login(attacker, auth.Credentials{Email: "admin@odyssey.test", Password: "bad-password"})
	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)

	result, err := client.Login(victim, auth.Credentials{Email: "admin@odyssey.test", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestRelayHeaderIgnoredFromRemoteCallers(t *testing.T) {
	service, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(nil, service, 2).MountRoutes(r)
	body := []byte(`{"email":"admin@odyssey.test","password":"bad-password"}`)

	var last int
	for _, spoofed := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(auth.ClientIPHeader, spoofed)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLoginValidation(t *testing.T) {
	_, url := newIdentityServer(t, 0)

	resp, err := http.Post(url+"/auth/login", "application/json", bytes.NewReader([]byte(`{"email":"not-an-email"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
