package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tnm3allim/marketplace/internal/domain/user"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
}

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdminUser creates the configured admin account when it does not exist yet.
// An empty email or password disables seeding.
func EnsureAdminUser(ctx context.Context, store AdminStore, hasher Hasher, seed AdminSeed, log *slog.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	existing, err := store.GetByEmail(ctx, seed.Email)

	if err == nil {
		if existing.Role != user.RoleAdmin {
			log.Warn("admin seed email belongs to a non-admin account", "email", seed.Email, "role", existing.Role)
		}

		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(seed.Password)

	if err != nil {
		return err
	}

	_, err = store.Create(ctx, user.User{
		Name:         seed.Name,
		Email:        seed.Email,
		Role:         user.RoleAdmin,
		PasswordHash: hash,
	})

	if errors.Is(err, user.ErrEmailTaken) {
		// another instance seeded it first
		return nil
	}

	if err == nil {
		log.Info("admin user created", "email", seed.Email)
	}

	return err
}
