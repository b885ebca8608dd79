package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Claims are carried by access tokens.
type Claims struct {
	Email string      `json:"email"`
	Role  shared.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: "odyssey-identity", now: time.Now}
}

// Issue signs an access token for account.
func (t *TokenIssuer) Issue(account *Account) (string, time.Duration, error) {
	now := t.now().UTC()
	claims := Claims{
		Email: account.Email,
		Role:  account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, t.ttl, nil
}

// Parse verifies an access token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshStore tracks live refresh tokens.
type RefreshStore interface {
	Issue(ctx context.Context, accountID string) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// RedisRefreshStore keeps refresh tokens in Redis; expiry is the key TTL.
type RedisRefreshStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRefreshStore constructs a RedisRefreshStore.
func NewRedisRefreshStore(client *redis.Client, ttl time.Duration) *RedisRefreshStore {
	return &RedisRefreshStore{client: client, ttl: ttl}
}

func (s *RedisRefreshStore) Issue(ctx context.Context, accountID string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, refreshKey(token), accountID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("identity: store refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisRefreshStore) Resolve(ctx context.Context, token string) (string, error) {
	accountID, err := s.client.Get(ctx, refreshKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("identity: resolve refresh token: %w", err)
	}
	return accountID, nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, refreshKey(token)).Err(); err != nil {
		return fmt.Errorf("identity: revoke refresh token: %w", err)
	}
	return nil
}

func refreshKey(token string) string {
	return "identity:refresh:" + token
}

// MemoryRefreshStore keeps refresh tokens in process memory.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]memoryRefresh
}

type memoryRefresh struct {
	accountID string
	expiresAt time.Time
}

// NewMemoryRefreshStore constructs a MemoryRefreshStore.
func NewMemoryRefreshStore(ttl time.Duration) *MemoryRefreshStore {
	return &MemoryRefreshStore{ttl: ttl, now: time.Now, tokens: make(map[string]memoryRefresh)}
}

func (s *MemoryRefreshStore) Issue(ctx context.Context, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = memoryRefresh{accountID: accountID, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemoryRefreshStore) Resolve(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.tokens, token)
		return "", ErrInvalidToken
	}
	return entry.accountID, nil
}

func (s *MemoryRefreshStore) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

var (
	_ RefreshStore = (*RedisRefreshStore)(nil)
	_ RefreshStore = (*MemoryRefreshStore)(nil)
)
