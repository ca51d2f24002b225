package roles

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.DBTX
	sb sq.StatementBuilderType
}

// NewRepository constructs a repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{
		db: conn,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListRoles returns all roles ordered by name. It satisfies rbac.RoleSource.
func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	query, args, err := r.sb.
		Select("id", "name", "permissions").
		From("roles").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("roles: build list query: %w", err)
	}

	var rows []roleRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}

	out := make([]rbac.Role, len(rows))
	for i, row := range rows {
		out[i] = row.toRole()
	}
	return out, nil
}

// FindByName fetches a single role.
func (r *Repository) FindByName(ctx context.Context, name string) (rbac.Role, error) {
	query, args, err := r.sb.
		Select("id", "name", "permissions").
		From("roles").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return rbac.Role{}, fmt.Errorf("roles: build find query: %w", err)
	}

	var row roleRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, fmt.Errorf("roles: find %s: %w", name, err)
	}
	return row.toRole(), nil
}

// Upsert creates the role or replaces its permissions, returning the stored id.
func (r *Repository) Upsert(ctx context.Context, def Definition) (uuid.UUID, error) {
	perms := make([]string, len(def.Permissions))
	for i, p := range def.Permissions {
		perms[i] = string(p)
	}
	query, args, err := r.sb.
		Insert("roles").
		Columns("id", "name", "permissions").
		Values(uuid.New(), def.Name, perms).
		Suffix("ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions RETURNING id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("roles: build upsert query: %w", err)
	}

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("roles: upsert %s: %w", def.Name, err)
	}
	return id, nil
}
