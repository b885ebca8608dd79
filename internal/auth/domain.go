package auth

import (
	"time"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// User is the identity record held by a client session and cached in the token store.
type User struct {
	ID          string              `json:"id"`
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Role        shared.Role         `json:"role"`
	Permissions []shared.Permission `json:"permissions"`
	IsActive    bool                `json:"isActive"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Normalize returns a copy whose permissions are derived from the role catalog,
// discarding whatever permission list the payload carried.
func (u User) Normalize() *User {
	u.Permissions = shared.RolePermissions(u.Role)
	return &u
}

// Tokens is the opaque token pair issued at login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the body returned by POST /auth/login.
type LoginResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// RefreshResult is the body returned by POST /auth/refresh.
type RefreshResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// ProfileUpdate is the body of PATCH /auth/profile. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// PasswordChange is the body of PATCH /auth/password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
