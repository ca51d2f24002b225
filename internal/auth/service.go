package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/auth/password"
	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *password.Hasher
	registry *rbac.Registry
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher *password.Hasher, registry *rbac.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		registry: registry,
		validate: newValidator(),
		logger:   logger,
	}
}

// Register validates the form, creates the account with the "user" role and
// returns it. Checks run in a fixed order and the first failure wins.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Bio = strings.TrimSpace(in.Bio)
	in.Email = NormalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.PasswordConfirm = strings.TrimSpace(in.PasswordConfirm)

	if err := s.validate.Var(in.Password, "password_policy"); err != nil {
		return nil, shared.ErrInvalidPassword
	}
	if err := s.validate.VarWithValue(in.PasswordConfirm, in.Password, "eqcsfield"); err != nil {
		return nil, shared.ErrPasswordMismatch
	}
	if err := s.validate.Struct(requiredFields{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  in.Password,
	}); err != nil {
		return nil, shared.ErrMissingFields
	}
	if err := s.validate.Var(in.Email, "account_email"); err != nil {
		return nil, shared.ErrInvalidEmail
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, shared.ErrEmailTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("auth: check email: %w", err)
	}

	role, ok := s.registry.ByName(rbac.RoleUser)
	if !ok {
		s.logger.Error("registration role missing", slog.String("role", rbac.RoleUser))
		return nil, shared.Wrap(shared.ErrRoleNotFound, fmt.Errorf("role %q not provisioned", rbac.RoleUser))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, NewUser{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Bio:          in.Bio,
		Email:        in.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate validates email/password credentials. Every failure is
// reported as invalid credentials.
func (s *Service) Authenticate(ctx context.Context, email, plain string) (*User, error) {
	email = NormalizeEmail(email)
	plain = strings.TrimSpace(plain)
	if email == "" || plain == "" {
		return nil, shared.ErrBadCredentials
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("login lookup", slog.Any("error", err))
		}
		return nil, shared.ErrBadCredentials
	}
	ok, err := s.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		s.logger.Warn("login verify", slog.String("user_id", user.ID.String()), slog.Any("error", err))
		return nil, shared.ErrBadCredentials
	}
	if !ok {
		return nil, shared.ErrBadCredentials
	}
	return user, nil
}

// ResolveIdentity loads the current identity of a user from the store.
func (s *Service) ResolveIdentity(ctx context.Context, userID uuid.UUID) (*rbac.Identity, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &rbac.Identity{UserID: user.ID, RoleID: user.RoleID, Email: user.Email}, nil
}

// RoleName returns the name of the role with id, empty when unknown.
func (s *Service) RoleName(roleID uuid.UUID) string {
	role, ok := s.registry.ByID(roleID)
	if !ok {
		return ""
	}
	return role.Name
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

var _ rbac.IdentityResolver = (*Service)(nil)
