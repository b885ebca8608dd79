package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-site/internal/auth"
)

// Factory builds the Manager for a client id.
type Factory func(clientID string) *Manager

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTimeout evicts managers no request has used for d. Evicted sessions are
// rebuilt from the token store on the next request. Zero disables idle eviction.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idle = d
	}
}

type registryEntry struct {
	manager  *Manager
	refs     int
	lastSeen time.Time
}

// Registry maps client ids to their single Manager. Managers of signed-out clients
// are dropped as soon as their last request ends, so anonymous traffic holds no memory.
type Registry struct {
	factory Factory
	idle    time.Duration
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*registryEntry
	lastSweep time.Time
}

// NewRegistry constructs a Registry that creates managers with factory.
func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{factory: factory, now: time.Now, entries: make(map[string]*registryEntry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns the client's Manager for the duration of one request. The caller must
// invoke release when the request is done.
func (r *Registry) Acquire(ctx context.Context, clientID string) (*Manager, func()) {
	entry := r.entry(clientID, 1)
	entry.manager.Init(ctx)

	var once sync.Once
	return entry.manager, func() {
		once.Do(func() { r.release(clientID, entry) })
	}
}

// Get returns the client's Manager, creating and initialising it on first use.
// Managers obtained this way are only dropped by Forget or idle eviction.
func (r *Registry) Get(ctx context.Context, clientID string) *Manager {
	entry := r.entry(clientID, 0)
	entry.manager.Init(ctx)
	return entry.manager
}

func (r *Registry) entry(clientID string, refs int) *registryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	entry, ok := r.entries[clientID]
	if !ok {
		entry = &registryEntry{manager: r.factory(clientID)}
		r.entries[clientID] = entry
	}
	entry.refs += refs
	entry.lastSeen = now
	return entry
}

func (r *Registry) release(clientID string, entry *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.refs--
	entry.lastSeen = r.now()
	if entry.refs > 0 || r.entries[clientID] != entry {
		return
	}
	state := entry.manager.State()
	if state.Status == StatusUnauthenticated && !state.IsLoading {
		delete(r.entries, clientID)
	}
}

// sweepLocked evicts idle managers at most once per half idle period.
func (r *Registry) sweepLocked(now time.Time) {
	if r.idle <= 0 || now.Sub(r.lastSweep) < r.idle/2 {
		return
	}
	r.lastSweep = now
	for id, entry := range r.entries {
		if entry.refs == 0 && now.Sub(entry.lastSeen) >= r.idle {
			delete(r.entries, id)
		}
	}
}

// Forget drops the client's Manager. Persisted tokens are not touched.
func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, clientID)
}

// Len reports how many managers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RedisFactory wires each client to the identity backend at baseURL with its
// tokens persisted in Redis for ttl.
func RedisFactory(rdb *redis.Client, baseURL string, ttl time.Duration, logger *slog.Logger, opts ...auth.Option) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(clientID string) *Manager {
		store := auth.NewRedisTokenStore(rdb, clientID, ttl)
		client := auth.NewClient(baseURL, store, opts...)
		manager := NewManager(client, store, logger.With(slog.String("client", clientID)))
		client.OnSessionExpired(manager.Expire)
		return manager
	}
}
