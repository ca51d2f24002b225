package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]Summary, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// SnapshotInvalidator drops cached role names from a user's sessions.
type SnapshotInvalidator interface {
	InvalidateRoleSnapshot(ctx context.Context, userID uuid.UUID) error
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	engine      *rbac.Engine
	invalidator SnapshotInvalidator
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator may be nil.
func NewService(repo RepositoryPort, engine *rbac.Engine, invalidator SnapshotInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, invalidator: invalidator, logger: logger}
}

// List returns all accounts. Requires updateadmin.
func (s *Service) List(ctx context.Context, actor *rbac.Identity) ([]Summary, error) {
	if err := s.engine.Require(actor, rbac.ActionListUsers, nil); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// changeable are the roles a superadmin may move users between.
var changeable = map[string]bool{rbac.RoleUser: true, rbac.RoleAdmin: true}

// ChangeRole promotes a user to admin or demotes an admin to user.
func (s *Service) ChangeRole(ctx context.Context, actor *rbac.Identity, targetID uuid.UUID, requested string) (RoleChange, error) {
	if err := s.engine.Require(actor, rbac.ActionChangeRole, nil); err != nil {
		return RoleChange{}, err
	}
	registry := s.engine.Registry()

	var change RoleChange
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		target, err := tx.LockAccount(ctx, targetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrTargetNotFound
			}
			return err
		}

		current, ok := registry.ByID(target.RoleID)
		if !ok {
			return shared.Wrap(shared.ErrRoleNotFound, fmt.Errorf("user %s references unknown role %s", target.ID, target.RoleID))
		}
		if !changeable[current.Name] {
			return shared.ErrRoleNotEligible
		}
		if !changeable[requested] {
			return shared.ErrInvalidRequestedRole
		}
		if current.Name == requested {
			return shared.ErrRoleNotEligible
		}
		next, ok := registry.ByName(requested)
		if !ok {
			return shared.Wrap(shared.ErrRoleNotFound, fmt.Errorf("role %q not provisioned", requested))
		}

		updated, err := tx.UpdateRole(ctx, target.ID, current.ID, next.ID)
		if err != nil {
			return err
		}
		if !updated {
			return shared.ErrConcurrentUpdate
		}
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditRoleChanged,
			Entity:   "user",
			EntityID: target.ID.String(),
			Meta:     map[string]any{"from": current.Name, "to": next.Name},
		}); err != nil {
			return fmt.Errorf("users: audit role change: %w", err)
		}
		change = RoleChange{UserID: target.ID, From: current.Name, To: next.Name}
		return nil
	})
	if err != nil {
		return RoleChange{}, err
	}

	s.logger.Info("role changed",
		slog.String("actor_id", actor.UserID.String()),
		slog.String("user_id", change.UserID.String()),
		slog.String("from", change.From),
		slog.String("to", change.To),
	)
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateRoleSnapshot(ctx, change.UserID); err != nil {
			s.logger.Warn("enqueue role snapshot invalidation", slog.String("user_id", change.UserID.String()), slog.Any("error", err))
		}
	}
	return change, nil
}
