package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/quoteboard/quoteboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SessionStore lists and purges persisted session records.
type SessionStore interface {
	SessionIDsForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error)
	PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotClearer removes the cached role from live sessions.
type SnapshotClearer interface {
	ClearRoleSnapshot(ctx context.Context, ids ...string) error
}

// SessionJobs handles the session maintenance tasks.
type SessionJobs struct {
	Store    SessionStore
	Sessions SnapshotClearer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSessionJobs wires dependencies for the session handlers.
func NewSessionJobs(store SessionStore, sessions SnapshotClearer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionJobs {
	return &SessionJobs{
		Store:    store,
		Sessions: sessions,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleInvalidate clears the role snapshot of every unexpired session of the user.
func (j *SessionJobs) HandleInvalidate(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil || j.Sessions == nil {
		return errors.New("session invalidate: handler not configured")
	}
	var payload SessionInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == uuid.Nil {
		return fmt.Errorf("session invalidate: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskSessionInvalidate)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger(TaskSessionInvalidate).With(slog.String("user_id", payload.UserID.String()))
	ids, err := j.Store.SessionIDsForUser(ctx, payload.UserID, j.now())
	if err != nil {
		logger.Error("list sessions", slog.Any("error", err))
		return err
	}
	if len(ids) == 0 {
		logger.Debug("no live sessions")
		return nil
	}
	if err := j.Sessions.ClearRoleSnapshot(ctx, ids...); err != nil {
		logger.Error("clear role snapshot", slog.Any("error", err))
		return err
	}
	j.metrics().AddSessions(TaskSessionInvalidate, len(ids))
	logger.Info("role snapshot cleared", slog.Int("sessions", len(ids)))
	return nil
}

// HandlePurge deletes session records that are already expired.
func (j *SessionJobs) HandlePurge(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("session purge: handler not configured")
	}
	tracker := j.metrics().Track(TaskSessionPurge)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger(TaskSessionPurge)
	purged, err := j.Store.PurgeExpiredSessions(ctx, j.now())
	if err != nil {
		logger.Error("purge sessions", slog.Any("error", err))
		return err
	}
	j.metrics().AddSessions(TaskSessionPurge, int(purged))
	logger.Info("expired sessions purged", slog.Int64("sessions", purged))
	return nil
}

func (j *SessionJobs) logger(task string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}

func (j *SessionJobs) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SessionJobs) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
