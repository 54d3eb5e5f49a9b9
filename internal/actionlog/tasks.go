package actionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskRecord persists one Entry.
	TaskRecord = "actionlog:record"
	// TaskPurge deletes entries older than the retention window.
	TaskPurge = "actionlog:purge"
)

// PurgePayload parameterises TaskPurge.
type PurgePayload struct {
	RetentionSeconds int64 `json:"retentionSeconds"`
}

// NewRecordTask builds a TaskRecord task.
func NewRecordTask(entry Entry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecord, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// NewPurgeTask builds a TaskPurge task.
func NewPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgePayload{RetentionSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurge, data, asynq.MaxRetry(1)), nil
}

// Recorder accepts audit events. Implementations must not block the caller
// on downstream failures.
type Recorder interface {
	Record(ctx context.Context, userID int64, action Action)
}

// Nop discards every event.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, int64, Action) {}

// Enqueuer submits tasks. *asynq.Client and *jobs.Client satisfy it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultEnqueueTimeout bounds a single Record call.
const DefaultEnqueueTimeout = time.Second

// QueueRecorder enqueues a TaskRecord per event.
type QueueRecorder struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration
}

// NewQueueRecorder constructs a QueueRecorder.
func NewQueueRecorder(enqueuer Enqueuer, logger *slog.Logger) *QueueRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueRecorder{enqueuer: enqueuer, logger: logger, now: time.Now, timeout: DefaultEnqueueTimeout}
}

// Record implements Recorder. Failures are logged and swallowed. Record
// returns within the enqueue timeout even if the enqueuer ignores its context.
func (q *QueueRecorder) Record(ctx context.Context, userID int64, action Action) {
	task, err := NewRecordTask(Entry{UserID: userID, Action: action, At: q.now().UTC()})
	if err == nil {
		err = q.enqueue(ctx, task)
	}
	if err != nil {
		q.logger.Warn("action log enqueue failed",
			slog.Int64("user_id", userID),
			slog.String("action", string(action)),
			slog.Any("error", err))
	}
}

// enqueue detaches from the caller's cancellation, which fires once the
// response is written, and applies its own deadline instead.
func (q *QueueRecorder) enqueue(parent context.Context, task *asynq.Task) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := q.enqueuer.EnqueueContext(ctx, task)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("actionlog: enqueue: %w", ctx.Err())
	}
}

func decode[T any](t *asynq.Task) (T, error) {
	var payload T
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("actionlog: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}
