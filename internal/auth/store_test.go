package auth_test

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

func redisStore(t *testing.T, clientID string) (*auth.RedisTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRedisTokenStore(client, clientID, time.Hour), mr
}

func sampleUser() *auth.User {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return auth.User{
		ID:        "u-1",
		Email:     "editor@odyssey.test",
		Name:      "Edith Editor",
		Role:      shared.RoleEditor,
		IsActive:  true,
		CreatedAt: created,
		UpdatedAt: created,
	}.Normalize()
}

func TestTokenStores(t *testing.T) {
	stores := map[string]func(t *testing.T) auth.TokenStore{
		"memory": func(t *testing.T) auth.TokenStore { return auth.NewMemoryTokenStore() },
		"redis": func(t *testing.T) auth.TokenStore {
			store, _ := redisStore(t, "client-a")
			return store
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			access, err := store.AccessToken(ctx)
			require.NoError(t, err)
			assert.Empty(t, access)
			user, err := store.CachedUser(ctx)
			require.NoError(t, err)
			assert.Nil(t, user)

			require.NoError(t, store.SaveTokens(ctx, auth.Tokens{AccessToken: "a1", RefreshToken: "r1"}))
			require.NoError(t, store.SaveUser(ctx, sampleUser()))

			access, _ = store.AccessToken(ctx)
			refresh, _ := store.RefreshToken(ctx)
			assert.Equal(t, "a1", access)
			assert.Equal(t, "r1", refresh)

			cached, err := store.CachedUser(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleUser(), cached)

			rotated, err := store.RotateAccessToken(ctx, "r1", "a2")
			require.NoError(t, err)
			assert.True(t, rotated)
			access, _ = store.AccessToken(ctx)
			refresh, _ = store.RefreshToken(ctx)
			assert.Equal(t, "a2", access)
			assert.Equal(t, "r1", refresh, "refresh token untouched")

			rotated, err = store.RotateAccessToken(ctx, "r-stale", "a3")
			require.NoError(t, err)
			assert.False(t, rotated, "a different refresh token blocks rotation")
			access, _ = store.AccessToken(ctx)
			assert.Equal(t, "a2", access)

			require.NoError(t, store.Clear(ctx))
			require.NoError(t, store.Clear(ctx), "clear is idempotent")
			access, _ = store.AccessToken(ctx)
			refresh, _ = store.RefreshToken(ctx)
			cached, _ = store.CachedUser(ctx)
			assert.Empty(t, access)
			assert.Empty(t, refresh)
			assert.Nil(t, cached)

			rotated, err = store.RotateAccessToken(ctx, "r1", "a4")
			require.NoError(t, err)
			assert.False(t, rotated, "a cleared store stays empty")
			access, _ = store.AccessToken(ctx)
			assert.Empty(t, access)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryTokenStore()
	require.NoError(t, store.SaveUser(ctx, sampleUser()))

	cached, _ := store.CachedUser(ctx)
	cached.Name = "mutated"
	cached.Permissions[0] = "tampered"

	again, _ := store.CachedUser(ctx)
	assert.Equal(t, sampleUser(), again)
}

func TestRedisStoreKeysAreScopedPerClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := auth.NewRedisTokenStore(client, "first", time.Hour)
	second := auth.NewRedisTokenStore(client, "second", time.Hour)
	require.NoError(t, first.SaveTokens(ctx, auth.Tokens{AccessToken: "a", RefreshToken: "r"}))

	assert.True(t, mr.Exists("auth:first:access_token"))
	assert.True(t, mr.Exists("auth:first:refresh_token"))
	access, err := second.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)

	require.NoError(t, second.Clear(ctx))
	access, _ = first.AccessToken(ctx)
	assert.Equal(t, "a", access)
}

func TestRedisStoreExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := redisStore(t, "ttl")
	require.NoError(t, store.SaveTokens(ctx, auth.Tokens{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.SaveUser(ctx, sampleUser()))

	mr.FastForward(2 * time.Hour)

	access, _ := store.AccessToken(ctx)
	user, _ := store.CachedUser(ctx)
	assert.Empty(t, access)
	assert.Nil(t, user)
}
