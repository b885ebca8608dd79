package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

var (
	// ErrNoRefreshToken indicates a refresh was attempted with nothing stored.
	ErrNoRefreshToken = errors.New("auth: no refresh token stored")
	// ErrRefreshFailed indicates the backend rejected the refresh; the user must sign in again.
	ErrRefreshFailed = errors.New("auth: token refresh failed")
	// ErrSessionCleared indicates the tokens were cleared while a refresh was in flight.
	ErrSessionCleared = errors.New("auth: session cleared during refresh")
	// ErrFetchUser indicates GET /auth/me failed.
	ErrFetchUser = errors.New("auth: fetch current user failed")
)

// AuthenticationError carries the backend's message when credentials are rejected.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "auth: authentication failed"
	}
	return "auth: " + e.Message
}

// Unwrap lets callers match shared.ErrInvalidCredentials.
func (e *AuthenticationError) Unwrap() error {
	return shared.ErrInvalidCredentials
}

// APIError is a non-2xx response from the identity backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth: backend returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
