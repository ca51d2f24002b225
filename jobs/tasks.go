package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionInvalidate drops the cached role of every live session of a user.
	TaskSessionInvalidate = "auth:session:invalidate"
	// TaskSessionPurge deletes expired session records.
	TaskSessionPurge = "auth:session:purge"
)

// SessionInvalidatePayload names the user whose sessions must re-read their role.
type SessionInvalidatePayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewSessionInvalidateTask constructs the invalidation task for a user.
func NewSessionInvalidateTask(userID uuid.UUID) (*asynq.Task, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("jobs: session invalidate requires a user id")
	}
	data, err := json.Marshal(SessionInvalidatePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionInvalidate, data, asynq.MaxRetry(5)), nil
}

// NewSessionPurgeTask constructs the periodic purge task.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil, asynq.MaxRetry(3))
}
