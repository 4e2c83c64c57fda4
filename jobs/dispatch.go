package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/mitra-erp/mitra-erp/internal/jobs"
	"github.com/mitra-erp/mitra-erp/internal/notify"
)

// DispatchJob delivers a sent quotation to the customer. The owning
// transition has already committed when this runs; a failure here is retried
// by asynq and never touches the document status.
type DispatchJob struct {
	pool    *pgxpool.Pool
	mailer  Mailer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewDispatchJob(pool *pgxpool.Pool, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DispatchJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchJob{pool: pool, mailer: mailer, logger: logger, metrics: metrics}
}

// Handle processes one TaskQuotationDispatch task.
func (j *DispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("quotation_dispatch")
	var p notify.QuotationDispatch
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		j.logger.Error("dispatch payload malformed", slog.Any("error", err))
		return tracker.End(asynq.SkipRetry)
	}

	channel := "none"
	var deliveryErr error
	switch {
	case p.Email != nil && *p.Email != "":
		channel = "email"
		subject := fmt.Sprintf("Quotation %s from PT Mitra Niaga", p.DocNumber)
		body := fmt.Sprintf("Dear %s,\n\nPlease find quotation %s with a total of %s.\n\nBest regards,\nPT Mitra Niaga",
			p.RecipientName, p.DocNumber, p.DisplayTotal)
		deliveryErr = j.mailer.Send(*p.Email, subject, body)
	case p.Phone != nil && *p.Phone != "":
		// No SMS gateway yet; the phone channel is logged for manual follow up.
		channel = "phone"
		j.logger.Info("quotation requires manual phone follow up",
			slog.String("doc_number", p.DocNumber),
			slog.String("phone", *p.Phone))
	}
	if deliveryErr != nil {
		j.logger.Warn("quotation delivery failed, will retry",
			slog.Int64("quotation_id", p.QuotationID),
			slog.Any("error", deliveryErr))
		return tracker.End(deliveryErr)
	}

	if _, err := j.pool.Exec(ctx, `
		INSERT INTO dispatch_log (quotation_id, doc_number, channel, recipient, sent_by, delivered_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		p.QuotationID, p.DocNumber, channel, recipientOf(p), p.SentBy); err != nil {
		j.logger.Warn("record dispatch", slog.Int64("quotation_id", p.QuotationID), slog.Any("error", err))
	}
	j.logger.Info("quotation dispatched",
		slog.Int64("quotation_id", p.QuotationID),
		slog.String("channel", channel))
	return tracker.End(nil)
}

func recipientOf(p notify.QuotationDispatch) string {
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	if p.Phone != nil && *p.Phone != "" {
		return *p.Phone
	}
	return p.RecipientName
}
