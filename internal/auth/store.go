package auth

import (
	"context"
	"sync"
)

// TokenStore persists the client's access token, refresh token and cached user.
// Missing values are reported as "" or nil without error.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	CachedUser(ctx context.Context) (*User, error)
	SaveTokens(ctx context.Context, tokens Tokens) error
	// RotateAccessToken stores accessToken only while refreshToken is still the stored
	// refresh token, so a refresh that finishes after Clear cannot restore a session.
	RotateAccessToken(ctx context.Context, refreshToken, accessToken string) (bool, error)
	SaveUser(ctx context.Context, user *User) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *User
}

// NewMemoryTokenStore constructs an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, nil
}

func (s *MemoryTokenStore) RefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken, nil
}

// CachedUser returns a copy so callers cannot mutate the stored record.
func (s *MemoryTokenStore) CachedUser(ctx context.Context) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, nil
	}
	return cloneUser(s.user), nil
}

func (s *MemoryTokenStore) SaveTokens(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	return nil
}

func (s *MemoryTokenStore) RotateAccessToken(ctx context.Context, refreshToken, accessToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refreshToken == "" || s.refreshToken != refreshToken {
		return false, nil
	}
	s.accessToken = accessToken
	return true, nil
}

func (s *MemoryTokenStore) SaveUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return nil
	}
	s.user = cloneUser(user)
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	return nil
}

func cloneUser(u *User) *User {
	out := *u
	if u.Permissions != nil {
		out.Permissions = append(out.Permissions[:0:0], u.Permissions...)
	}
	return &out
}

var _ TokenStore = (*MemoryTokenStore)(nil)
