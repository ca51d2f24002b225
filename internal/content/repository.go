package content

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

// TxRepository exposes transactional operations on a single quote.
type TxRepository interface {
	LockByID(ctx context.Context, id uuid.UUID) (Quote, error)
	CompareAndSet(ctx context.Context, id uuid.UUID, expected Status, next Quote) (bool, error)
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

func (r *Repository) selectWithOwner() sq.SelectBuilder {
	return r.sb.Select(
		"c.id", "c.quote", "c.status", "c.created_by", "c.created_at", "c.updated_at",
		"concat_ws(' ', u.first_name, u.last_name) AS owner_name",
	).
		From("content c").
		Join("users u ON u.id = c.created_by")
}

// ListVisible returns non-archived quotes, oldest first.
func (r *Repository) ListVisible(ctx context.Context) ([]Quote, error) {
	query, args, err := r.selectWithOwner().
		Where(sq.NotEq{"c.status": StatusInactive}).
		OrderBy("c.created_at", "c.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("content: build list query: %w", err)
	}
	var out []Quote
	if err := pgxscan.Select(ctx, r.pool, &out, query, args...); err != nil {
		return nil, fmt.Errorf("content: list: %w", err)
	}
	return out, nil
}

// Get fetches a quote regardless of status.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	query, args, err := r.selectWithOwner().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return Quote{}, fmt.Errorf("content: build get query: %w", err)
	}
	var q Quote
	if err := pgxscan.Get(ctx, r.pool, &q, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrNotFound
		}
		return Quote{}, fmt.Errorf("content: get: %w", err)
	}
	return q, nil
}

// Insert stores a new quote.
func (r *Repository) Insert(ctx context.Context, q Quote) error {
	query, args, err := r.sb.Insert("content").
		Columns("id", "quote", "status", "created_by", "created_at", "updated_at").
		Values(q.ID, q.Text, q.Status, q.CreatedBy, q.CreatedAt, q.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("content: build insert: %w", err)
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("content: insert: %w", err)
	}
	return nil
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

// LockByID reads the row with FOR UPDATE so writers on the same quote queue up.
func (t *txRepo) LockByID(ctx context.Context, id uuid.UUID) (Quote, error) {
	query, args, err := t.sb.Select("id", "quote", "status", "created_by", "created_at", "updated_at").
		From("content").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return Quote{}, fmt.Errorf("content: build lock query: %w", err)
	}
	var q Quote
	if err := pgxscan.Get(ctx, t.tx, &q, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrNotFound
		}
		return Quote{}, fmt.Errorf("content: lock: %w", err)
	}
	return q, nil
}

// CompareAndSet writes next only while the stored status still equals expected.
func (t *txRepo) CompareAndSet(ctx context.Context, id uuid.UUID, expected Status, next Quote) (bool, error) {
	query, args, err := t.sb.Update("content").
		Set("quote", next.Text).
		Set("status", next.Status).
		Set("updated_at", next.UpdatedAt).
		Where(sq.Eq{"id": id, "status": expected}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("content: build update: %w", err)
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("content: update: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, t.tx, log)
}
