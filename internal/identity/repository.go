package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
}

// MemoryRepository keeps accounts in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]Account), byEmail: make(map[string]string)}
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	account := r.byID[id]
	return &account, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) Create(ctx context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := normalizeEmail(account.Email)
	if _, taken := r.byEmail[email]; taken {
		return ErrEmailTaken
	}
	r.byID[account.ID] = *account
	r.byEmail[email] = account.ID
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[account.ID]
	if !ok {
		return shared.ErrNotFound
	}
	email := normalizeEmail(account.Email)
	if owner, taken := r.byEmail[email]; taken && owner != account.ID {
		return ErrEmailTaken
	}
	delete(r.byEmail, normalizeEmail(current.Email))
	r.byID[account.ID] = *account
	r.byEmail[email] = account.ID
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Repository = (*MemoryRepository)(nil)
