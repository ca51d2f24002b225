package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quoteboard/quoteboard/internal/auth"
	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/roles"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Superadmin describes the account created at bootstrap.
type Superadmin struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Validate checks the account against the registration rules.
func (s Superadmin) Validate() error {
	if strings.TrimSpace(s.FirstName) == "" || strings.TrimSpace(s.LastName) == "" {
		return errors.New("bootstrap: superadmin first and last name are required")
	}
	if !auth.ValidEmail(auth.NormalizeEmail(s.Email)) {
		return errors.New("bootstrap: superadmin email is invalid")
	}
	if !auth.PasswordMeetsPolicy(s.Password) {
		return errors.New("bootstrap: superadmin password does not meet the password policy")
	}
	return nil
}

// PasswordHasher hashes the superadmin password.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Result reports what the seeder wrote.
type Result struct {
	Roles        map[string]uuid.UUID
	SuperadminID uuid.UUID
}

// Seeder writes the role catalogue and the superadmin in one transaction.
type Seeder struct {
	pool   db.Pool
	hasher PasswordHasher
	logger *slog.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(pool db.Pool, hasher PasswordHasher, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{pool: pool, hasher: hasher, logger: logger}
}

// Seed upserts every role of roles.Seed and creates the superadmin. Seeding
// an existing superadmin email fails with shared.ErrEmailTaken.
func (s *Seeder) Seed(ctx context.Context, admin Superadmin) (*Result, error) {
	if err := admin.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: hash password: %w", err)
	}

	result := &Result{Roles: make(map[string]uuid.UUID)}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		roleRepo := roles.NewRepository(tx)
		for _, def := range roles.Seed() {
			id, err := roleRepo.Upsert(ctx, def)
			if err != nil {
				return err
			}
			result.Roles[def.Name] = id
		}

		user, err := auth.NewRepository(tx).CreateUser(ctx, auth.NewUser{
			FirstName:    strings.TrimSpace(admin.FirstName),
			LastName:     strings.TrimSpace(admin.LastName),
			Email:        auth.NormalizeEmail(admin.Email),
			PasswordHash: hash,
			RoleID:       result.Roles[rbac.RoleSuperAdmin],
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return shared.ErrEmailTaken
			}
			return err
		}
		result.SuperadminID = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bootstrap seeded",
		slog.Int("roles", len(result.Roles)),
		slog.String("superadmin_id", result.SuperadminID.String()))
	return result, nil
}
