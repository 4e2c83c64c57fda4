package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/mitra-erp/mitra-erp/internal/jobs"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// idempotencyRetention is how long transition fences stay around. Long enough
// to cover any client retry window, short enough to keep the table small.
const idempotencyRetention = 7 * 24 * time.Hour

// CleanupJob prunes expired idempotency keys.
type CleanupJob struct {
	store   *shared.IdempotencyStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes one TaskIdempotencyCleanup task.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("idempotency_cleanup")
	err := j.store.Cleanup(ctx, idempotencyRetention)
	if err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
	}
	return tracker.End(err)
}
