package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-site/internal/shared"
)

type usersFile struct {
	Users []struct {
		Email    string `yaml:"email"`
		Name     string `yaml:"name"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
		Inactive bool   `yaml:"inactive"`
	} `yaml:"users"`
}

type bulkSeeder interface {
	SeedAccounts(ctx context.Context, accounts []*Account) (int, error)
}

// SeedFromFile loads accounts from a YAML users file. Existing emails are skipped.
func SeedFromFile(ctx context.Context, repo Repository, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("identity: read seed: %w", err)
	}
	accounts, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if seeder, ok := repo.(bulkSeeder); ok {
		return seeder.SeedAccounts(ctx, accounts)
	}

	created := 0
	for _, account := range accounts {
		if err := repo.Create(ctx, account); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

// ParseSeed decodes a users file and hashes its passwords.
func ParseSeed(data []byte) ([]*Account, error) {
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("identity: decode seed: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	accounts := make([]*Account, 0, len(uf.Users))
	for _, u := range uf.Users {
		if u.Email == "" || u.Password == "" {
			continue
		}
		role, err := shared.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("identity: seed %s: %w", u.Email, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("identity: hash password: %w", err)
		}
		accounts = append(accounts, &Account{
			ID:           uuid.NewString(),
			Email:        normalizeEmail(u.Email),
			Name:         u.Name,
			Role:         role,
			PasswordHash: string(hash),
			IsActive:     !u.Inactive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return accounts, nil
}
