// Package identity is the identity backend consumed by auth.Client: credential
// checks, access and refresh tokens, and the signed-in user's profile.
package identity

import (
	"errors"
	"time"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

var (
	// ErrInvalidToken covers malformed, expired and revoked tokens.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrEmailTaken is returned when a profile change collides with another account.
	ErrEmailTaken = errors.New("identity: email already in use")
)

// Account is the stored identity, including the password hash.
type Account struct {
	ID           string
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User renders the public view returned to clients.
func (a *Account) User() *auth.User {
	return auth.User{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}.Normalize()
}
