package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Service wraps identity business rules.
type Service struct {
	repo    Repository
	tokens  *TokenIssuer
	refresh RefreshStore
	now     func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, refresh RefreshStore) *Service {
	return &Service{repo: repo, tokens: tokens, refresh: refresh, now: time.Now}
}

// Authenticate validates email/password credentials and issues a token pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	access, ttl, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	refresh, err := s.refresh.Issue(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &auth.LoginResult{
		User: *account.User(),
		Tokens: auth.Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int64(ttl / time.Second),
		},
	}, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	accountID, err := s.refresh.Resolve(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil || !account.IsActive {
		_ = s.refresh.Revoke(ctx, refreshToken)
		return nil, ErrInvalidToken
	}
	access, ttl, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &auth.RefreshResult{AccessToken: access, ExpiresIn: int64(ttl / time.Second)}, nil
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, refreshToken)
}

// Verify resolves an access token to its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

// CurrentUser loads the active account behind a verified token.
func (s *Service) CurrentUser(ctx context.Context, accountID string) (*auth.User, error) {
	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.User(), nil
}

// UpdateProfile applies non-empty fields of update.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, update auth.ProfileUpdate) (*auth.User, error) {
	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(update.Name); name != "" {
		account.Name = name
	}
	if email := strings.TrimSpace(update.Email); email != "" {
		account.Email = normalizeEmail(email)
	}
	account.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	return account.User(), nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, accountID string, change auth.PasswordChange) error {
	account, err := s.activeAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(change.CurrentPassword)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(change.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	account.UpdatedAt = s.now().UTC().Truncate(time.Second)
	return s.repo.Update(ctx, account)
}

func (s *Service) activeAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrInvalidToken
	}
	return account, nil
}
