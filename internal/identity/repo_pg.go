package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-site/internal/platform/db"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS identity_accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS identity_accounts_email_key ON identity_accounts (lower(email));
`

const accountColumns = `id, email, name, role, password_hash, is_active, created_at, updated_at`

const uniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// EnsureSchema creates the accounts table when missing.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("identity: ensure schema: %w", err)
	}
	return nil
}

func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM identity_accounts WHERE lower(email) = lower($1)`, email)
	return scanAccount(row)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM identity_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PGRepository) Create(ctx context.Context, account *Account) error {
	return insertAccount(ctx, r.pool, account)
}

func (r *PGRepository) Update(ctx context.Context, account *Account) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE identity_accounts
		SET email = $2, name = $3, role = $4, password_hash = $5, is_active = $6, updated_at = $7
		WHERE id = $1`,
		account.ID, account.Email, account.Name, string(account.Role), account.PasswordHash, account.IsActive, account.UpdatedAt.UTC())
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SeedAccounts inserts accounts in one transaction, skipping emails that already exist.
func (r *PGRepository) SeedAccounts(ctx context.Context, accounts []*Account) (int, error) {
	created := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, account := range accounts {
			tag, err := tx.Exec(ctx, `
				INSERT INTO identity_accounts (`+accountColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT DO NOTHING`,
				account.ID, account.Email, account.Name, string(account.Role), account.PasswordHash,
				account.IsActive, account.CreatedAt.UTC(), account.UpdatedAt.UTC())
			if err != nil {
				return fmt.Errorf("identity: seed %s: %w", account.Email, err)
			}
			created += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAccount(ctx context.Context, conn execer, account *Account) error {
	_, err := conn.Exec(ctx, `
		INSERT INTO identity_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Email, account.Name, string(account.Role), account.PasswordHash,
		account.IsActive, account.CreatedAt.UTC(), account.UpdatedAt.UTC())
	return mapWriteError(err)
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account Account
		role    string
		created time.Time
		updated time.Time
	)
	err := row.Scan(&account.ID, &account.Email, &account.Name, &role, &account.PasswordHash, &account.IsActive, &created, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("identity: scan account: %w", err)
	}
	account.Role = shared.Role(role)
	account.CreatedAt = created.UTC()
	account.UpdatedAt = updated.UTC()
	return &account, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return fmt.Errorf("identity: write account: %w", err)
}

var _ Repository = (*PGRepository)(nil)
