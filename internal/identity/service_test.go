package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

const seedYAML = `
users:
  - email: Admin@Odyssey.test
    name: Ada Admin
    password: correct-horse
    role: admin
  - email: gone@odyssey.test
    name: Former Editor
    password: correct-horse
    role: editor
    inactive: true
  - email: ""
    password: skipped
    role: viewer
`

func newTestService(t *testing.T) (*Service, *MemoryRepository, *miniredis.Miniredis) {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()
	accounts, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	for _, account := range accounts {
		require.NoError(t, repo.Create(ctx, account))
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	service := NewService(repo, NewTokenIssuer("unit-test-secret", 15*time.Minute), NewRedisRefreshStore(client, time.Hour))
	return service, repo, mr
}

func TestParseSeed(t *testing.T) {
	accounts, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "admin@odyssey.test", accounts[0].Email)
	assert.Equal(t, shared.RoleAdmin, accounts[0].Role)
	assert.NotEqual(t, "correct-horse", accounts[0].PasswordHash)
	assert.False(t, accounts[1].IsActive)

	_, err = ParseSeed([]byte("users:\n  - email: x@y.z\n    password: pw\n    role: owner\n"))
	assert.ErrorIs(t, err, shared.ErrUnknownRole)
}

func TestSeedFromFileSkipsExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	created, err := SeedFromFile(ctx, repo, "../../config/users.yaml")
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	created, err = SeedFromFile(ctx, repo, "../../config/users.yaml")
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestAuthenticate(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := service.Authenticate(ctx, "admin@odyssey.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "Ada Admin", result.User.Name)
	assert.Equal(t, shared.RolePermissions(shared.RoleAdmin), result.User.Permissions)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Equal(t, int64(900), result.Tokens.ExpiresIn)

	claims, err := service.Verify(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
	assert.Equal(t, shared.RoleAdmin, claims.Role)

	for name, creds := range map[string][2]string{
		"wrong password": {"admin@odyssey.test", "nope"},
		"unknown email":  {"nobody@odyssey.test", "correct-horse"},
		"inactive":       {"gone@odyssey.test", "correct-horse"},
	} {
		_, err := service.Authenticate(ctx, creds[0], creds[1])
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, name)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	service, _, mr := newTestService(t)
	ctx := context.Background()
	login, err := service.Authenticate(ctx, "admin@odyssey.test", "correct-horse")
	require.NoError(t, err)

	refreshed, err := service.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := service.Verify(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, claims.Subject)

	require.NoError(t, service.Logout(ctx, login.Tokens.RefreshToken))
	_, err = service.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	second, err := service.Authenticate(ctx, "admin@odyssey.test", "correct-horse")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = service.Refresh(ctx, second.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh tokens expire by TTL")

	_, err = service.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	service, _, _ := newTestService(t)
	login, err := service.Authenticate(context.Background(), "admin@odyssey.test", "correct-horse")
	require.NoError(t, err)

	_, err = service.Verify(login.Tokens.AccessToken + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenIssuer("another-secret", time.Minute)
	forged, _, err := other.Issue(&Account{ID: "x", Role: shared.RoleSuperAdmin})
	require.NoError(t, err)
	_, err = service.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	service.tokens.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = service.Verify(login.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestUpdateProfileAndPassword(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()
	login, err := service.Authenticate(ctx, "admin@odyssey.test", "correct-horse")
	require.NoError(t, err)
	id := login.User.ID

	user, err := service.UpdateProfile(ctx, id, auth.ProfileUpdate{Name: " Ada Lovelace ", Email: "ada@odyssey.test"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@odyssey.test", user.Email)
	_, err = repo.FindByEmail(ctx, "admin@odyssey.test")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = service.UpdateProfile(ctx, id, auth.ProfileUpdate{Email: "gone@odyssey.test"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	err = service.ChangePassword(ctx, id, auth.PasswordChange{CurrentPassword: "wrong", NewPassword: "battery-staple"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.NoError(t, service.ChangePassword(ctx, id, auth.PasswordChange{CurrentPassword: "correct-horse", NewPassword: "battery-staple"}))

	_, err = service.Authenticate(ctx, "ada@odyssey.test", "correct-horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = service.Authenticate(ctx, "ada@odyssey.test", "battery-staple")
	assert.NoError(t, err)

	_, err = service.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryRefreshStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshStore(time.Minute)
	token, err := store.Issue(ctx, "acct")
	require.NoError(t, err)

	id, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "acct", id)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = store.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
