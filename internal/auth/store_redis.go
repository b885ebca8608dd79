package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore persists one client's tokens in Redis so they survive restarts.
type RedisTokenStore struct {
	client   *redis.Client
	clientID string
	ttl      time.Duration
}

// NewRedisTokenStore scopes a store to clientID. A zero ttl keeps keys until cleared.
func NewRedisTokenStore(client *redis.Client, clientID string, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, clientID: clientID, ttl: ttl}
}

func (s *RedisTokenStore) AccessToken(ctx context.Context) (string, error) {
	return s.getString(ctx, s.key("access_token"))
}

func (s *RedisTokenStore) RefreshToken(ctx context.Context) (string, error) {
	return s.getString(ctx, s.key("refresh_token"))
}

func (s *RedisTokenStore) CachedUser(ctx context.Context) (*User, error) {
	payload, err := s.client.Get(ctx, s.key("user")).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth/store: get user: %w", err)
	}
	var user User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("auth/store: decode user: %w", err)
	}
	return &user, nil
}

func (s *RedisTokenStore) SaveTokens(ctx context.Context, tokens Tokens) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("access_token"), tokens.AccessToken, s.ttl)
		pipe.Set(ctx, s.key("refresh_token"), tokens.RefreshToken, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth/store: save tokens: %w", err)
	}
	return nil
}

// RotateAccessToken watches the refresh key so a concurrent Clear aborts the write.
func (s *RedisTokenStore) RotateAccessToken(ctx context.Context, refreshToken, accessToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}
	refreshKey := s.key("refresh_token")
	rotated := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, refreshKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != refreshToken {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key("access_token"), accessToken, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		rotated = true
		return nil
	}, refreshKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth/store: rotate access token: %w", err)
	}
	return rotated, nil
}

func (s *RedisTokenStore) SaveUser(ctx context.Context, user *User) error {
	if user == nil {
		return s.client.Del(ctx, s.key("user")).Err()
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("auth/store: encode user: %w", err)
	}
	if err := s.client.Set(ctx, s.key("user"), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("auth/store: save user: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key("access_token"), s.key("refresh_token"), s.key("user")).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth/store: clear: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) getString(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("auth/store: get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisTokenStore) key(name string) string {
	return "auth:" + s.clientID + ":" + name
}

var _ TokenStore = (*RedisTokenStore)(nil)
