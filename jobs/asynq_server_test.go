package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEnqueuesInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.InvalidateRoleSnapshot(context.Background(), uuid.New()))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.Error(t, client.InvalidateRoleSnapshot(context.Background(), uuid.Nil))
}

func TestNewWorkerRequiresRedis(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)
}

type fakeInspector struct {
	queues []string
	info   *asynq.QueueInfo
	err    error
}

func (f fakeInspector) Queues() ([]string, error) { return f.queues, f.err }

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func serveHealth(t *testing.T, inspector QueueInspector) (*httptest.ResponseRecorder, queueHealth) {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	var body queueHealth
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthReportsQueueState(t *testing.T) {
	rec, body := serveHealth(t, fakeInspector{
		queues: []string{QueueDefault},
		info:   &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Failed: 1}, body)
}

func TestHealthWithoutQueue(t *testing.T) {
	rec, body := serveHealth(t, fakeInspector{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queueHealth{Queue: QueueDefault}, body)

	rec, _ = serveHealth(t, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthUnavailable(t *testing.T) {
	rec, _ := serveHealth(t, fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue_unavailable")
}
