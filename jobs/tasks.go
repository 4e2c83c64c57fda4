// Package jobs hosts the background worker that delivers queued quotation
// dispatches and runs housekeeping crons.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/mitra-erp/mitra-erp/internal/notify"
)

const (
	// QueueDefault is the queue for housekeeping tasks.
	QueueDefault = "default"
	// QueueNotifications carries customer-facing deliveries.
	QueueNotifications = notify.QueueNotifications

	// TaskQuotationDispatch delivers a sent quotation to its customer.
	TaskQuotationDispatch = notify.TaskQuotationDispatch
	// TaskIdempotencyCleanup prunes expired transition fences.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// NewIdempotencyCleanupTask constructs the housekeeping task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	payload, err := json.Marshal(struct{}{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, payload), nil
}
