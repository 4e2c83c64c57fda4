// Package notify queues outbound customer messages. Dispatch happens after
// the owning transaction commits; delivery failures are retried by the worker
// and never roll a transition back.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TaskQuotationDispatch is the asynq task type for sending a quotation.
const TaskQuotationDispatch = "quotation:dispatch"

// QueueNotifications is the queue dispatch tasks land on.
const QueueNotifications = "notifications"

// QuotationDispatch is the payload handed to the worker.
type QuotationDispatch struct {
	QuotationID   int64   `json:"quotation_id"`
	DocNumber     string  `json:"doc_number"`
	RecipientName string  `json:"recipient_name"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Currency      string  `json:"currency"`
	TotalAmount   float64 `json:"total_amount"`
	DisplayTotal  string  `json:"display_total"`
	SentBy        int64   `json:"sent_by"`
}

// Dispatcher enqueues notification tasks.
type Dispatcher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewDispatcher(client *asynq.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

// EnqueueQuotationDispatch queues the send for background delivery.
func (d *Dispatcher) EnqueueQuotationDispatch(ctx context.Context, p QuotationDispatch) error {
	if d == nil || d.client == nil {
		return fmt.Errorf("notify: dispatcher not configured")
	}
	if p.DisplayTotal == "" {
		p.DisplayTotal = FormatAmount(p.Currency, p.TotalAmount)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: marshal dispatch: %w", err)
	}
	task := asynq.NewTask(TaskQuotationDispatch, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue dispatch: %w", err)
	}
	if d.logger != nil {
		d.logger.Info("quotation dispatch queued",
			slog.Int64("quotation_id", p.QuotationID),
			slog.String("task_id", info.ID))
	}
	return nil
}

// FormatAmount renders a money amount for the customer-facing message, e.g.
// "Rp 12.500.000" for IDR in the Indonesian locale.
func FormatAmount(code string, amount float64) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %.2f", code, amount)
	}
	p := message.NewPrinter(language.Indonesian)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(amount)))
}
