package content

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

var (
	superadminRole = rbac.Role{ID: uuid.New(), Name: rbac.RoleSuperAdmin, Permissions: []rbac.Permission{rbac.PermUpdateAdmin}}
	adminRole      = rbac.Role{ID: uuid.New(), Name: rbac.RoleAdmin, Permissions: []rbac.Permission{rbac.PermBan}}
	userRole       = rbac.Role{ID: uuid.New(), Name: rbac.RoleUser, Permissions: []rbac.Permission{rbac.PermCreateOwnContent, rbac.PermUpdateOwnContent, rbac.PermDeleteOwnContent}}
	allRoles       = []rbac.Role{superadminRole, adminRole, userRole}
)

// memoryStore serialises transactions the way FOR UPDATE serialises writers on
// one row, and applies writes only on commit.
type memoryStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	rows   map[uuid.UUID]Quote
	audits []shared.AuditLog
	// beforeCAS runs inside CompareAndSet before the status comparison.
	beforeCAS func(s *memoryStore, id uuid.UUID)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[uuid.UUID]Quote{}}
}

func (s *memoryStore) ListVisible(context.Context) ([]Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Quote
	for _, q := range s.rows {
		if q.Status != StatusInactive {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.rows[id]
	if !ok {
		return Quote{}, shared.ErrNotFound
	}
	return q, nil
}

func (s *memoryStore) Insert(_ context.Context, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[q.ID] = q
	return nil
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	tx := &memoryTx{store: s, pending: map[uuid.UUID]Quote{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, q := range tx.pending {
		s.rows[id] = q
	}
	s.audits = append(s.audits, tx.audits...)
	return nil
}

func (s *memoryStore) status(id uuid.UUID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

func (s *memoryStore) row(id uuid.UUID) Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type memoryTx struct {
	store   *memoryStore
	pending map[uuid.UUID]Quote
	audits  []shared.AuditLog
}

func (t *memoryTx) LockByID(_ context.Context, id uuid.UUID) (Quote, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	q, ok := t.store.rows[id]
	if !ok {
		return Quote{}, shared.ErrNotFound
	}
	return q, nil
}

func (t *memoryTx) CompareAndSet(_ context.Context, id uuid.UUID, expected Status, next Quote) (bool, error) {
	if t.store.beforeCAS != nil {
		t.store.beforeCAS(t.store, id)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.rows[id].Status != expected {
		return false, nil
	}
	t.pending[id] = next
	return true, nil
}

func (t *memoryTx) RecordAudit(_ context.Context, log shared.AuditLog) error {
	t.audits = append(t.audits, log)
	return nil
}

type transition struct{ op, from, to string }

type recordingRecorder struct {
	mu          sync.Mutex
	transitions []transition
}

func (r *recordingRecorder) RecordTransition(op, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition{op, from, to})
}

type fixture struct {
	store    *memoryStore
	manager  *Manager
	recorder *recordingRecorder
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture() *fixture {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	recorder := &recordingRecorder{}
	engine := rbac.NewEngine(rbac.NewStaticRegistry(allRoles...), nil, nil)
	return &fixture{
		store:    store,
		manager:  NewManager(store, engine, nil, WithClock(clock.Now), WithRecorder(recorder)),
		recorder: recorder,
		clock:    clock,
	}
}

func identity(role rbac.Role) *rbac.Identity {
	return &rbac.Identity{UserID: uuid.New(), RoleID: role.ID}
}

func (f *fixture) create(t *testing.T, owner *rbac.Identity, text string) Quote {
	t.Helper()
	q, err := f.manager.Create(context.Background(), owner, text)
	require.NoError(t, err)
	return q
}

func TestCreate(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)

	q := f.create(t, owner, "  hello  ")
	assert.Equal(t, "hello", q.Text)
	assert.Equal(t, StatusActive, q.Status)
	assert.Equal(t, owner.UserID, q.CreatedBy)
	assert.Equal(t, q.CreatedAt, q.UpdatedAt)

	_, err := f.manager.Create(context.Background(), owner, "   ")
	assert.ErrorIs(t, err, shared.ErrEmptyText)

	_, err = f.manager.Create(context.Background(), nil, "hello")
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

	// Admins only moderate; they do not inherit content permissions.
	_, err = f.manager.Create(context.Background(), identity(adminRole), "hello")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// Permission is checked before text.
	_, err = f.manager.Create(context.Background(), identity(superadminRole), "")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestToggleBanSequence(t *testing.T) {
	f := newFixture()
	q := f.create(t, identity(userRole), "hello")
	admin := identity(adminRole)

	banned, err := f.manager.ToggleBan(context.Background(), admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBan, banned.Status)

	archived, err := f.manager.ToggleBan(context.Background(), admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, archived.Status)

	_, err = f.manager.ToggleBan(context.Background(), admin, q.ID)
	assert.ErrorIs(t, err, shared.ErrContentArchived)
	assert.Equal(t, StatusInactive, f.store.status(q.ID))

	require.Len(t, f.store.audits, 2)
	assert.Equal(t, shared.AuditContentBanned, f.store.audits[0].Action)
	assert.Equal(t, shared.AuditContentArchived, f.store.audits[1].Action)
	assert.Equal(t, admin.UserID, f.store.audits[0].ActorID)
}

func TestToggleBanRequiresBanPermission(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")

	for _, actor := range []*rbac.Identity{owner, identity(superadminRole)} {
		_, err := f.manager.ToggleBan(context.Background(), actor, q.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	}
	_, err := f.manager.ToggleBan(context.Background(), nil, q.ID)
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

	_, err = f.manager.ToggleBan(context.Background(), identity(adminRole), uuid.New())
	assert.ErrorIs(t, err, shared.ErrContentNotFound)
	assert.Equal(t, StatusActive, f.store.status(q.ID))
}

func TestOwnershipInvariant(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")

	for _, role := range allRoles {
		other := identity(role)
		_, editErr := f.manager.Edit(context.Background(), other, q.ID, "mine now")
		_, delErr := f.manager.SoftDelete(context.Background(), other, q.ID)
		if role.Has(rbac.PermUpdateOwnContent) {
			assert.ErrorIs(t, editErr, shared.ErrNotOwner, role.Name)
			assert.ErrorIs(t, delErr, shared.ErrNotOwner, role.Name)
		} else {
			assert.ErrorIs(t, editErr, shared.ErrForbidden, role.Name)
			assert.ErrorIs(t, delErr, shared.ErrForbidden, role.Name)
		}
	}
	stored := f.store.row(q.ID)
	assert.Equal(t, "hello", stored.Text)
	assert.Equal(t, StatusActive, stored.Status)
}

func TestBlankEditRefreshesUpdatedAt(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")

	f.clock.Advance(time.Minute)
	edited, err := f.manager.Edit(context.Background(), owner, q.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Text)
	assert.Equal(t, StatusActive, edited.Status)
	assert.Equal(t, q.CreatedAt, edited.CreatedAt)
	assert.True(t, edited.UpdatedAt.After(q.UpdatedAt))
	assert.Equal(t, edited.UpdatedAt, f.store.row(q.ID).UpdatedAt)
}

func TestUpdatedAtNeverMovesBackwards(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")

	f.clock.Advance(-time.Hour)
	edited, err := f.manager.Edit(context.Background(), owner, q.ID, "skewed")
	require.NoError(t, err)
	assert.False(t, edited.UpdatedAt.Before(edited.CreatedAt))
}

func TestBanEditScenario(t *testing.T) {
	f := newFixture()
	a := identity(userRole)
	b := identity(adminRole)

	x := f.create(t, a, "hello")
	assert.Equal(t, StatusActive, x.Status)

	banned, err := f.manager.ToggleBan(context.Background(), b, x.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBan, banned.Status)

	_, err = f.manager.Edit(context.Background(), a, x.ID, "")
	assert.ErrorIs(t, err, shared.ErrEmptyText)
	assert.Equal(t, StatusBan, f.store.status(x.ID))

	edited, err := f.manager.Edit(context.Background(), a, x.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, edited.Status)
	assert.Equal(t, "hello again", edited.Text)
}

func TestSoftDelete(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")

	deleted, err := f.manager.SoftDelete(context.Background(), owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, deleted.Status)

	_, err = f.manager.Edit(context.Background(), owner, q.ID, "back")
	assert.ErrorIs(t, err, shared.ErrContentArchived)
	_, err = f.manager.SoftDelete(context.Background(), owner, q.ID)
	assert.ErrorIs(t, err, shared.ErrContentArchived)

	_, err = f.manager.Get(context.Background(), q.ID)
	assert.ErrorIs(t, err, shared.ErrContentNotFound)

	list, err := f.manager.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSoftDeleteBannedContent(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	q := f.create(t, owner, "hello")
	_, err := f.manager.ToggleBan(context.Background(), identity(adminRole), q.ID)
	require.NoError(t, err)

	deleted, err := f.manager.SoftDelete(context.Background(), owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, deleted.Status)
}

func TestListActiveOrder(t *testing.T) {
	f := newFixture()
	owner := identity(userRole)
	first := f.create(t, owner, "first")
	f.clock.Advance(time.Second)
	second := f.create(t, owner, "second")
	f.clock.Advance(time.Second)
	third := f.create(t, owner, "third")
	_, err := f.manager.ToggleBan(context.Background(), identity(adminRole), second.ID)
	require.NoError(t, err)

	list, err := f.manager.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, StatusBan, list[1].Status)
}

func TestConcurrentUpdateDetected(t *testing.T) {
	f := newFixture()
	q := f.create(t, identity(userRole), "hello")
	f.store.beforeCAS = func(s *memoryStore, id uuid.UUID) {
		s.mu.Lock()
		defer s.mu.Unlock()
		row := s.rows[id]
		row.Status = StatusBan
		s.rows[id] = row
	}

	_, err := f.manager.ToggleBan(context.Background(), identity(adminRole), q.ID)
	assert.ErrorIs(t, err, shared.ErrConcurrentUpdate)
	assert.Empty(t, f.store.audits)
	assert.Equal(t, StatusBan, f.store.status(q.ID))
}

func TestConcurrentToggleBan(t *testing.T) {
	f := newFixture()
	q := f.create(t, identity(userRole), "hello")
	admin := identity(adminRole)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.manager.ToggleBan(context.Background(), admin, q.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, shared.ErrContentArchived) || errors.Is(err, shared.ErrConcurrentUpdate), err)
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, StatusInactive, f.store.status(q.ID))

	var bans []transition
	for _, tr := range f.recorder.transitions {
		if tr.op == string(OpBan) {
			bans = append(bans, tr)
		}
	}
	// Recording happens after commit, so only the set is deterministic.
	assert.ElementsMatch(t, []transition{
		{"ban", string(StatusActive), string(StatusBan)},
		{"ban", string(StatusBan), string(StatusInactive)},
	}, bans)
}
