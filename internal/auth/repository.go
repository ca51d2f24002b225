package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quoteboard/quoteboard/internal/platform/db"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user NewUser) (*User, error)
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
	sb sq.StatementBuilderType
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{
		db: conn,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var userColumns = []string{"id", "first_name", "last_name", "bio", "email", "password_hash", "role_id", "created_at"}

// FindByEmail fetches a user by normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, sq.Eq{"email": email})
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *PGRepository) findOne(ctx context.Context, where sq.Eq) (*User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("auth: build user query: %w", err)
	}
	var user User
	if err := pgxscan.Get(ctx, r.db, &user, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new account. Unique violations surface unchanged so the
// caller can classify them.
func (r *PGRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	user := &User{
		ID:           uuid.New(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Bio:          in.Bio,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		RoleID:       in.RoleID,
		CreatedAt:    time.Now().UTC(),
	}
	query, args, err := r.sb.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.FirstName, user.LastName, user.Bio, user.Email, user.PasswordHash, user.RoleID, user.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("auth: build insert user: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("auth: insert user: %w", err)
	}
	return user, nil
}

// CreateSession persists a login session for auditing and invalidation.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	query, args, err := r.sb.Insert("user_sessions").
		Columns("id", "user_id", "created_at", "expires_at", "ip", "user_agent").
		Values(id, userID, time.Now().UTC(), expiresAt.UTC(), nullable(ip), nullable(ua)).
		ToSql()
	if err != nil {
		return fmt.Errorf("auth: build insert session: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("auth: insert session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	query, args, err := r.sb.Delete("user_sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("auth: build delete session: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// SessionIDsForUser lists the unexpired session ids of a user.
func (r *PGRepository) SessionIDsForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	query, args, err := r.sb.Select("id").
		From("user_sessions").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"expires_at": now.UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("auth: build session ids query: %w", err)
	}
	var ids []string
	if err := pgxscan.Select(ctx, r.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("auth: list sessions: %w", err)
	}
	return ids, nil
}

// PurgeExpiredSessions deletes session records that expired before cutoff.
func (r *PGRepository) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := r.sb.Delete("user_sessions").Where(sq.LtOrEq{"expires_at": cutoff.UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("auth: build purge sessions: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("auth: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Repository = (*PGRepository)(nil)
