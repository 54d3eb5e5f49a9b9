package actionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/kis-labs/webbuilder/internal/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
	ctxOK bool
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.ctxOK = ctx.Err() == nil
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func TestQueueRecorderEnqueuesEntry(t *testing.T) {
	enq := &fakeEnqueuer{}
	rec := NewQueueRecorder(enq, nil)
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, 42, ActionLogin)

	require.Len(t, enq.tasks, 1)
	assert.True(t, enq.ctxOK)
	assert.Equal(t, TaskRecord, enq.tasks[0].Type())

	var entry Entry
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &entry))
	assert.Equal(t, Entry{UserID: 42, Action: ActionLogin, At: fixed}, entry)
}

func TestQueueRecorderSwallowsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := NewQueueRecorder(&fakeEnqueuer{err: errors.New("redis down")}, logger)

	assert.NotPanics(t, func() { rec.Record(context.Background(), 1, ActionRegister) })
	assert.Contains(t, buf.String(), "action log enqueue failed")
	assert.Contains(t, buf.String(), "redis down")
}

type stalledEnqueuer struct {
	stall    time.Duration
	deadline bool
}

func (s *stalledEnqueuer) EnqueueContext(ctx context.Context, _ *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	_, s.deadline = ctx.Deadline()
	time.Sleep(s.stall)
	return &asynq.TaskInfo{ID: "late"}, nil
}

func TestQueueRecorderBoundsStalledEnqueue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	enq := &stalledEnqueuer{stall: 2 * time.Second}
	rec := NewQueueRecorder(enq, logger)
	rec.timeout = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	rec.Record(ctx, 7, ActionLogin)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	assert.Contains(t, buf.String(), "action log enqueue failed")
	assert.Contains(t, buf.String(), "deadline exceeded")
}

func TestQueueRecorderAppliesDefaultTimeout(t *testing.T) {
	enq := &stalledEnqueuer{}
	rec := NewQueueRecorder(enq, nil)
	assert.Equal(t, DefaultEnqueueTimeout, rec.timeout)

	rec.Record(context.Background(), 1, ActionRegister)
	assert.True(t, enq.deadline)
}

type fakeStore struct {
	entries []Entry
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakeStore) Insert(_ context.Context, entry Entry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

func newHandlers(store Store) *Handlers {
	return NewHandlers(store, jobmetrics.NewMetrics(prometheus.NewRegistry()), slog.New(slog.DiscardHandler))
}

func TestHandleRecordInserts(t *testing.T) {
	store := &fakeStore{}
	h := newHandlers(store)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewRecordTask(Entry{UserID: 5, Action: ActionProjectCreate, At: at})
	require.NoError(t, err)

	require.NoError(t, h.HandleRecord(context.Background(), task))
	require.Len(t, store.entries, 1)
	assert.Equal(t, int64(5), store.entries[0].UserID)
	assert.True(t, at.Equal(store.entries[0].At))
}

func TestHandleRecordRejectsBadPayload(t *testing.T) {
	h := newHandlers(&fakeStore{})
	err := h.HandleRecord(context.Background(), asynq.NewTask(TaskRecord, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRecordPropagatesStoreError(t *testing.T) {
	boom := errors.New("insert failed")
	h := newHandlers(&fakeStore{err: boom})
	task, err := NewRecordTask(Entry{UserID: 5, Action: ActionLogin})
	require.NoError(t, err)
	assert.ErrorIs(t, h.HandleRecord(context.Background(), task), boom)
}

func TestHandlePurgeUsesRetention(t *testing.T) {
	store := &fakeStore{removed: 7}
	h := newHandlers(store)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	task, err := NewPurgeTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.HandlePurge(context.Background(), task))
	assert.Equal(t, now.Add(-48*time.Hour), store.cutoff)
}

func TestHandlePurgeDisabled(t *testing.T) {
	store := &fakeStore{}
	h := newHandlers(store)
	task, err := NewPurgeTask(0)
	require.NoError(t, err)
	require.NoError(t, h.HandlePurge(context.Background(), task))
	assert.True(t, store.cutoff.IsZero())
}

func TestNopRecorder(t *testing.T) {
	var rec Recorder = Nop{}
	rec.Record(context.Background(), 1, ActionLogin)
}
