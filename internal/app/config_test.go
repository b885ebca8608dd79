package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-site/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "odyssey_client", cfg.ClientCookieName)
	require.Equal(t, 720*time.Hour, cfg.SessionTTL)
	require.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	require.Equal(t, "/admin/login", cfg.AdminLoginPath)
	require.Equal(t, "http://127.0.0.1:8080/identity", cfg.IdentityURL)
	require.True(t, cfg.IdentityEmbedded)
	require.Equal(t, 15*time.Minute, cfg.IdentityAccessTTL)
	require.Equal(t, 10*time.Second, cfg.AuthHTTPTimeout)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresJWTSecretWhenEmbedded(t *testing.T) {
	t.Setenv("IDENTITY_EMBEDDED", "true")
	t.Setenv("IDENTITY_JWT_SECRET", "")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "identity jwt secret")

	t.Setenv("IDENTITY_EMBEDDED", "false")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.False(t, cfg.IdentityEmbedded)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("IDENTITY_URL", "https://id.example.com")
	t.Setenv("SESSION_TTL", "2h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "https://id.example.com", cfg.IdentityURL)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
}

func TestIsProductionNilSafe(t *testing.T) {
	var cfg *Config
	require.False(t, cfg.IsProduction())
}
