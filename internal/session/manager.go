// Package session holds the per-client authentication state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/rbac"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

var (
	// ErrSuperseded is returned when a newer login or logout overtook the call.
	ErrSuperseded = errors.New("session: superseded by a newer operation")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

const (
	msgNoAccessToken = "No access token found"
	msgAuthFailed    = "Authentication failed"
	msgLoginFailed   = "Login failed"
	msgExpired       = "Session expired"
)

// Service is the identity backend as seen by a session.
type Service interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
	Logout(ctx context.Context)
	CurrentUser(ctx context.Context) (*auth.User, error)
	UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error)
	ChangePassword(ctx context.Context, change auth.PasswordChange) error
}

// Manager owns one client's session. It is safe for concurrent use.
type Manager struct {
	service Service
	store   auth.TokenStore
	logger  *slog.Logger

	mu          sync.RWMutex
	state       State
	epoch       uint64
	subscribers map[int]func(State)
	nextSubID   int

	// writeMu orders store writes with the state transition they belong to.
	writeMu sync.Mutex

	initOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager constructs a Manager in the uninitialized state.
func NewManager(service Service, store auth.TokenStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		service:     service,
		store:       store,
		logger:      logger,
		state:       initialState(),
		subscribers: make(map[int]func(State)),
	}
}

// Init runs the startup check once. Later calls are no-ops. The check is detached
// from ctx cancellation so a dropped request cannot discard valid tokens.
func (m *Manager) Init(ctx context.Context) {
	m.initOnce.Do(func() { m.init(context.WithoutCancel(ctx)) })
}

func (m *Manager) init(ctx context.Context) {
	epoch := m.begin(event{kind: eventInit})

	token, err := m.store.AccessToken(ctx)
	if err != nil {
		m.logger.Error("read access token", slog.Any("error", err))
		m.settle(epoch, unauthenticated(msgAuthFailed))
		return
	}
	if token == "" {
		m.settle(epoch, unauthenticated(msgNoAccessToken))
		return
	}

	cached, err := m.store.CachedUser(ctx)
	if err != nil {
		m.logger.Warn("read cached user", slog.Any("error", err))
		cached = nil
	}
	if cached != nil {
		user := cached.Normalize()
		if !m.settle(epoch, authenticated(user)) {
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.revalidate(ctx, epoch, user)
		}()
		return
	}

	fresh, err := m.service.CurrentUser(ctx)
	if err != nil {
		m.logger.Warn("resume session", slog.Any("error", err))
		_, _ = m.commit(epoch, func() error {
			m.clearStore(ctx)
			return nil
		}, unauthenticated(msgAuthFailed))
		return
	}
	user := fresh.Normalize()
	_, _ = m.commit(epoch, func() error {
		m.cacheUser(ctx, user)
		return nil
	}, authenticated(user))
}

// revalidate confirms a cached user against the backend after an optimistic resume.
func (m *Manager) revalidate(ctx context.Context, epoch uint64, cached *auth.User) {
	fresh, err := m.service.CurrentUser(ctx)
	if !m.isCurrent(epoch) {
		return
	}
	if err != nil {
		m.logger.Warn("session revalidation failed, signing out", slog.Any("error", err))
		m.Logout(ctx)
		return
	}
	if fresh.ID == cached.ID {
		return
	}
	user := fresh.Normalize()
	_, _ = m.commit(epoch, func() error {
		m.cacheUser(ctx, user)
		return nil
	}, authenticated(user))
}

// Login authenticates with the backend and persists the result. Failures leave the
// session unauthenticated and are returned to the caller.
func (m *Manager) Login(ctx context.Context, creds auth.Credentials) (*auth.User, error) {
	epoch := m.begin(event{kind: eventLoginStarted})

	result, err := m.service.Login(ctx, creds)
	if err != nil {
		if !m.settle(epoch, unauthenticated(loginMessage(err))) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	user := result.User.Normalize()
	applied, err := m.commit(epoch, func() error {
		return m.persist(ctx, result.Tokens, user)
	}, authenticated(user))
	if err != nil {
		m.settle(epoch, unauthenticated(msgLoginFailed))
		return nil, err
	}
	if !applied {
		return nil, ErrSuperseded
	}
	return cloneUser(user), nil
}

func (m *Manager) persist(ctx context.Context, tokens auth.Tokens, user *auth.User) error {
	if err := m.store.SaveTokens(ctx, tokens); err != nil {
		return fmt.Errorf("session: persist tokens: %w", err)
	}
	if err := m.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("session: persist user: %w", err)
	}
	return nil
}

// Logout revokes remotely on a best-effort basis, then always tears down locally.
func (m *Manager) Logout(ctx context.Context) {
	m.service.Logout(ctx)
	m.teardown(ctx)
}

// Expire ends the session after the backend refused to refresh it.
func (m *Manager) Expire(ctx context.Context, err error) {
	m.logger.Info("session expired", slog.Any("error", err))
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.clearStore(ctx)
	m.dispatch(unauthenticated(msgExpired))
}

// teardown clears the store and invalidates in-flight operations. A session that is
// already signed out keeps its state, error included.
func (m *Manager) teardown(ctx context.Context) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.clearStore(ctx)

	m.mu.Lock()
	m.epoch++
	if m.state.Status == StatusUnauthenticated && !m.state.IsLoading {
		m.mu.Unlock()
		return
	}
	m.state = reduce(m.state, unauthenticated(""))
	state, subs := snapshot(m.state), m.subscriberList()
	m.mu.Unlock()
	notify(subs, state)
}

// UpdateUser replaces the signed-in user in place. Tokens are untouched.
func (m *Manager) UpdateUser(ctx context.Context, user *auth.User) error {
	if user == nil {
		return errors.New("session: nil user")
	}
	m.mu.RLock()
	epoch, signedIn := m.epoch, m.state.IsAuthenticated
	m.mu.RUnlock()
	if !signedIn {
		return ErrNotAuthenticated
	}
	normalized := user.Normalize()
	applied, err := m.commit(epoch, func() error {
		if err := m.store.SaveUser(ctx, normalized); err != nil {
			return fmt.Errorf("session: persist user: %w", err)
		}
		return nil
	}, event{kind: eventUserUpdated, user: normalized})
	if err != nil {
		return err
	}
	if !applied {
		return ErrSuperseded
	}
	return nil
}

// UpdateProfile saves profile changes remotely and adopts the returned user.
func (m *Manager) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	if !m.State().IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	user, err := m.service.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return m.State().User, nil
}

// ChangePassword rotates the password. Session state is unaffected.
func (m *Manager) ChangePassword(ctx context.Context, change auth.PasswordChange) error {
	if !m.State().IsAuthenticated {
		return ErrNotAuthenticated
	}
	return m.service.ChangePassword(ctx, change)
}

// Subscribe registers fn for every state change and returns its cancel func.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Wait blocks until background revalidation has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// State returns a snapshot safe to read without further locking.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.state)
}

func (m *Manager) HasPermission(p shared.Permission) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rbac.HasPermission(m.state.Permissions, p)
}

func (m *Manager) HasAnyPermission(perms ...shared.Permission) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rbac.HasAnyPermission(m.state.Permissions, perms)
}

func (m *Manager) HasAllPermissions(perms ...shared.Permission) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return rbac.HasAllPermissions(m.state.Permissions, perms)
}

// Subject is the guard's view of the session. Uninitialized counts as loading.
func (m *Manager) Subject() rbac.Subject {
	return SubjectOf(m.State())
}

// SubjectOf converts a state snapshot for guard evaluation.
func SubjectOf(s State) rbac.Subject {
	subject := rbac.Subject{
		Loading:       s.IsLoading || s.Status == StatusUninitialized,
		Authenticated: s.IsAuthenticated,
		Permissions:   s.Permissions,
	}
	if s.User != nil {
		subject.Role = s.User.Role
	}
	return subject
}

// begin starts a new operation, invalidating any in flight.
func (m *Manager) begin(ev event) uint64 {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.state = reduce(m.state, ev)
	state, subs := snapshot(m.state), m.subscriberList()
	m.mu.Unlock()
	notify(subs, state)
	return epoch
}

// settle applies ev only if no newer operation has started.
func (m *Manager) settle(epoch uint64, ev event) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	m.state = reduce(m.state, ev)
	state, subs := snapshot(m.state), m.subscriberList()
	m.mu.Unlock()
	notify(subs, state)
	return true
}

// commit runs write and then applies ev, both only while epoch is current.
// It reports whether ev was applied.
func (m *Manager) commit(epoch uint64, write func() error, ev event) (bool, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if !m.isCurrent(epoch) {
		return false, nil
	}
	if err := write(); err != nil {
		return false, err
	}
	return m.settle(epoch, ev), nil
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clear tokens", slog.Any("error", err))
	}
}

func (m *Manager) cacheUser(ctx context.Context, user *auth.User) {
	if err := m.store.SaveUser(ctx, user); err != nil {
		m.logger.Warn("cache user", slog.Any("error", err))
	}
}

func (m *Manager) dispatch(ev event) {
	m.mu.Lock()
	m.state = reduce(m.state, ev)
	state, subs := snapshot(m.state), m.subscriberList()
	m.mu.Unlock()
	notify(subs, state)
}

func (m *Manager) isCurrent(epoch uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch == epoch
}

func (m *Manager) subscriberList() []func(State) {
	out := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(State), state State) {
	for _, fn := range subs {
		fn(snapshot(state))
	}
}

func snapshot(s State) State {
	if s.User != nil {
		s.User = cloneUser(s.User)
	}
	s.Permissions = append([]shared.Permission{}, s.Permissions...)
	return s
}

func cloneUser(u *auth.User) *auth.User {
	out := *u
	out.Permissions = append([]shared.Permission{}, u.Permissions...)
	return &out
}

func loginMessage(err error) string {
	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return msgLoginFailed
}
