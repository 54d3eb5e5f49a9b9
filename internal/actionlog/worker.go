package actionlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kis-labs/webbuilder/internal/jobs"
)

// Store is the persistence port used by the task handlers.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Handlers processes action log tasks on the worker.
type Handlers struct {
	store   Store
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandlers constructs task handlers.
func NewHandlers(store Store, metrics *jobmetrics.Metrics, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// HandleRecord processes TaskRecord.
func (h *Handlers) HandleRecord(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskRecord)
	entry, err := decode[Entry](t)
	if err != nil {
		return tracker.End(err)
	}
	if entry.At.IsZero() {
		entry.At = h.now().UTC()
	}
	return tracker.End(h.store.Insert(ctx, entry))
}

// HandlePurge processes TaskPurge.
func (h *Handlers) HandlePurge(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskPurge)
	payload, err := decode[PurgePayload](t)
	if err != nil {
		return tracker.End(err)
	}
	if payload.RetentionSeconds <= 0 {
		return tracker.End(nil)
	}
	cutoff := h.now().UTC().Add(-time.Duration(payload.RetentionSeconds) * time.Second)
	removed, err := h.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return tracker.End(err)
	}
	h.metrics.AddPurged(removed)
	h.logger.Info("action logs purged", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return tracker.End(nil)
}
