package users

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockAccount(ctx context.Context, id uuid.UUID) (Account, error)
	UpdateRole(ctx context.Context, id, expected, next uuid.UUID) (bool, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  db.Pool
	sb    sq.StatementBuilderType
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool db.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{
		pool:  pool,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		audit: audit,
	}
}

// ListUsers returns every account ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]Summary, error) {
	query, args, err := r.sb.Select("id", "email").From("users").OrderBy("email").ToSql()
	if err != nil {
		return nil, fmt.Errorf("users: build list query: %w", err)
	}
	var out []Summary
	if err := pgxscan.Select(ctx, r.pool, &out, query, args...); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, sb: r.sb, audit: r.audit})
	})
}

type txRepo struct {
	tx    pgx.Tx
	sb    sq.StatementBuilderType
	audit *shared.AuditLogger
}

func (t *txRepo) LockAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	query, args, err := t.sb.Select("id", "email", "role_id").
		From("users").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return Account{}, fmt.Errorf("users: build lock query: %w", err)
	}
	var acc Account
	if err := pgxscan.Get(ctx, t.tx, &acc, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("users: lock account: %w", err)
	}
	return acc, nil
}

// UpdateRole swaps the role only while it still equals expected.
func (t *txRepo) UpdateRole(ctx context.Context, id, expected, next uuid.UUID) (bool, error) {
	query, args, err := t.sb.Update("users").
		Set("role_id", next).
		Where(sq.Eq{"id": id, "role_id": expected}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("users: build update role: %w", err)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("users: update role: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, t.tx, log)
}
