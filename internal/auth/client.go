package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-site/internal/observability"
)

const defaultTimeout = 10 * time.Second

// ExpiredFunc is invoked when an authenticated call cannot recover from a 401.
type ExpiredFunc func(ctx context.Context, err error)

// Client talks to the identity backend on behalf of one session.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	logger  *slog.Logger
	metrics *observability.Metrics

	refreshGroup singleflight.Group

	mu        sync.RWMutex
	onExpired ExpiredFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// NewClient constructs a Client rooted at baseURL, e.g. http://identity:8081/api.
func NewClient(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the token store backing this client.
func (c *Client) Store() TokenStore {
	return c.store
}

// OnSessionExpired registers the hook run after a failed refresh.
func (c *Client) OnSessionExpired(fn ExpiredFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

// Login exchanges credentials for a user and token pair. Tokens are not persisted here.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("auth: encode credentials: %w", err)
	}
	var result LoginResult
	if err := c.send(ctx, http.MethodPost, "/auth/login", payload, "", &result); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				c.metrics.ObserveLogin("rejected")
				return nil, &AuthenticationError{Message: apiErr.Message}
			}
		}
		c.metrics.ObserveLogin("error")
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	c.metrics.ObserveLogin("success")
	return &result, nil
}

// RefreshAccessToken obtains a new access token with the stored refresh token.
// Concurrent callers share one backend request. On rejection the store is cleared.
// If ctx ends first the caller gets ctx.Err() while the shared refresh carries on.
func (c *Client) RefreshAccessToken(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("auth: read refresh token: %w", err)
	}
	if refreshToken == "" {
		c.metrics.ObserveRefresh("missing")
		return "", ErrNoRefreshToken
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", fmt.Errorf("auth: encode refresh: %w", err)
	}
	var result RefreshResult
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", payload, "", &result); err != nil {
		c.metrics.ObserveRefresh("failed")
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Error("clear tokens after refresh failure", slog.Any("error", clearErr))
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if result.AccessToken == "" {
		c.metrics.ObserveRefresh("failed")
		_ = c.store.Clear(ctx)
		return "", fmt.Errorf("%w: empty access token", ErrRefreshFailed)
	}
	rotated, err := c.store.RotateAccessToken(ctx, refreshToken, result.AccessToken)
	if err != nil {
		return "", fmt.Errorf("auth: store access token: %w", err)
	}
	if !rotated {
		return "", ErrSessionCleared
	}
	c.metrics.ObserveRefresh("success")
	return result.AccessToken, nil
}

// Logout tells the backend to revoke the refresh token. Failures are logged, never returned.
func (c *Client) Logout(ctx context.Context) {
	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		c.logger.Warn("read refresh token for logout", slog.Any("error", err))
	}
	accessToken, err := c.store.AccessToken(ctx)
	if err != nil {
		c.logger.Warn("read access token for logout", slog.Any("error", err))
	}
	if refreshToken == "" && accessToken == "" {
		return
	}
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		c.logger.Warn("encode logout", slog.Any("error", err))
		return
	}
	if err := c.send(ctx, http.MethodPost, "/auth/logout", payload, accessToken, nil); err != nil {
		c.logger.Warn("remote logout failed", slog.Any("error", err))
	}
}

// CurrentUser fetches the signed-in user. Any failure wraps ErrFetchUser.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.doAuthenticated(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchUser, err)
	}
	return &user, nil
}

// UpdateProfile changes the signed-in user's name or email.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.doAuthenticated(ctx, http.MethodPatch, "/auth/profile", update, &user); err != nil {
		return nil, fmt.Errorf("auth: update profile: %w", err)
	}
	return &user, nil
}

// ChangePassword rotates the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	if err := c.doAuthenticated(ctx, http.MethodPatch, "/auth/password", change, nil); err != nil {
		return fmt.Errorf("auth: change password: %w", err)
	}
	return nil
}

// doAuthenticated sends a bearer request. A 401 triggers one refresh and at most one replay.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	token, err := c.store.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	err = c.send(ctx, method, path, payload, token, out)
	if err == nil || !IsUnauthorized(err) {
		return err
	}

	fresh, refreshErr := c.RefreshAccessToken(ctx)
	switch {
	case refreshErr == nil:
		return c.send(ctx, method, path, payload, fresh, out)
	case errors.Is(refreshErr, ErrRefreshFailed), errors.Is(refreshErr, ErrNoRefreshToken):
		c.logger.Warn("token refresh failed, ending session", slog.String("path", path), slog.Any("error", refreshErr))
		c.expire(ctx, refreshErr)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		c.logger.Warn("token refresh interrupted", slog.String("path", path), slog.Any("error", refreshErr))
		return err
	}
}

func (c *Client) expire(ctx context.Context, err error) {
	c.mu.RLock()
	fn := c.onExpired
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx, err)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ip := clientIPFrom(ctx); ip != "" {
		req.Header.Set(ClientIPHeader, ip)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

type errorBody struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func decodeAPIError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	message := body.Detail
	for _, candidate := range []string{body.Message, body.Error, body.Title} {
		if message != "" {
			break
		}
		message = candidate
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}
