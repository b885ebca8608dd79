package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testDefaults = map[string]string{
	"CLIENT_COOKIE_SECRET": "test-client-cookie-secret-0123456789",
	"CSRF_SECRET":          "test-csrf-secret-0123456789abcdef",
	"IDENTITY_JWT_SECRET":  "test-identity-jwt-secret-0123456789",
	"IDENTITY_EMBEDDED":    "true",
	"LOG_FORMAT":           "text",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
