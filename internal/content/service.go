package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Store is the persistence port of the Manager.
type Store interface {
	ListVisible(ctx context.Context) ([]Quote, error)
	Get(ctx context.Context, id uuid.UUID) (Quote, error)
	Insert(ctx context.Context, q Quote) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TransitionRecorder observes applied status transitions.
type TransitionRecorder interface {
	RecordTransition(op string, from, to string)
}

// Manager applies the content lifecycle. Every mutation is authorized by the
// engine and runs in one transaction: lock the row, check, then
// compare-and-set on the status that was read.
type Manager struct {
	store    Store
	engine   *rbac.Engine
	recorder TransitionRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder sets the transition recorder.
func WithRecorder(r TransitionRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager constructs a Manager.
func NewManager(store Store, engine *rbac.Engine, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: store, engine: engine, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListActive returns every quote that is not archived.
func (m *Manager) ListActive(ctx context.Context) ([]Quote, error) {
	return m.store.ListVisible(ctx)
}

// Get returns a visible quote. Archived quotes are reported as missing.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	q, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Quote{}, shared.ErrContentNotFound
		}
		return Quote{}, err
	}
	if q.Status.Terminal() {
		return Quote{}, shared.ErrContentNotFound
	}
	return q, nil
}

// Create stores a new Active quote owned by actor.
func (m *Manager) Create(ctx context.Context, actor *rbac.Identity, text string) (Quote, error) {
	if err := m.engine.Require(actor, rbac.ActionCreateContent, nil); err != nil {
		return Quote{}, err
	}
	text = normalizeText(text)
	if text == "" {
		return Quote{}, shared.ErrEmptyText
	}
	now := m.now().UTC()
	q := Quote{
		ID:        uuid.New(),
		Text:      text,
		Status:    StatusActive,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Insert(ctx, q); err != nil {
		return Quote{}, err
	}
	m.record("create", "", StatusActive)
	return q, nil
}

// Edit replaces the text of an owned quote. Blank text keeps the current text
// on Active quotes; Ban quotes need new text and become Active again.
func (m *Manager) Edit(ctx context.Context, actor *rbac.Identity, id uuid.UUID, text string) (Quote, error) {
	return m.mutate(ctx, actor, id, rbac.ActionEditContent, OpEdit, normalizeText(text))
}

// SoftDelete archives an owned quote.
func (m *Manager) SoftDelete(ctx context.Context, actor *rbac.Identity, id uuid.UUID) (Quote, error) {
	return m.mutate(ctx, actor, id, rbac.ActionDeleteContent, OpDelete, "")
}

// ToggleBan bans an Active quote or archives a banned one.
func (m *Manager) ToggleBan(ctx context.Context, actor *rbac.Identity, id uuid.UUID) (Quote, error) {
	return m.mutate(ctx, actor, id, rbac.ActionBanContent, OpBan, "")
}

func (m *Manager) mutate(ctx context.Context, actor *rbac.Identity, id uuid.UUID, action rbac.Action, op Operation, text string) (Quote, error) {
	// Reject on identity and permission before touching the store.
	if err := m.engine.Require(actor, action, nil); err != nil {
		return Quote{}, err
	}

	var current, next Quote
	err := m.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		current, err = tx.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrContentNotFound
			}
			return err
		}
		if err := m.engine.Require(actor, action, &rbac.Target{OwnerID: current.CreatedBy}); err != nil {
			return err
		}

		status, err := Transition(current.Status, op, text)
		if err != nil {
			return err
		}
		next = current
		next.Status = status
		if op == OpEdit && text != "" {
			next.Text = text
		}
		next.UpdatedAt = clampUpdatedAt(m.now().UTC(), current)

		ok, err := tx.CompareAndSet(ctx, current.ID, current.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrConcurrentUpdate
		}

		if log, audited := auditFor(actor, op, current, next); audited {
			if err := tx.RecordAudit(ctx, log); err != nil {
				return fmt.Errorf("content: audit %s: %w", op, err)
			}
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}

	m.record(string(op), current.Status, next.Status)
	m.logger.Info("content transition",
		slog.String("content_id", next.ID.String()),
		slog.String("op", string(op)),
		slog.String("from", string(current.Status)),
		slog.String("to", string(next.Status)),
		slog.String("actor_id", actor.UserID.String()),
	)
	return next, nil
}

// auditFor builds the audit entry for moderation and archival transitions.
func auditFor(actor *rbac.Identity, op Operation, current, next Quote) (shared.AuditLog, bool) {
	var action string
	switch {
	case next.Status == StatusBan:
		action = shared.AuditContentBanned
	case next.Status == StatusInactive:
		action = shared.AuditContentArchived
	default:
		return shared.AuditLog{}, false
	}
	return shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "content",
		EntityID: next.ID.String(),
		Meta:     map[string]any{"op": string(op), "from": string(current.Status), "to": string(next.Status)},
		At:       next.UpdatedAt,
	}, true
}

// clampUpdatedAt keeps updated_at monotonic and never before created_at.
func clampUpdatedAt(now time.Time, q Quote) time.Time {
	if now.Before(q.UpdatedAt) {
		return q.UpdatedAt
	}
	if now.Before(q.CreatedAt) {
		return q.CreatedAt
	}
	return now
}

func (m *Manager) record(op string, from, to Status) {
	if m.recorder != nil {
		m.recorder.RecordTransition(op, string(from), string(to))
	}
}
