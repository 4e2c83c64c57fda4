package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mitra-erp/mitra-erp/internal/invoices"
	"github.com/mitra-erp/mitra-erp/internal/notify"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/sales/customers"
	salesshared "github.com/mitra-erp/mitra-erp/internal/sales/shared"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

const (
	approvalModule = "quotations"
	auditEntity    = "quotation"
)

// CustomerDirectory resolves customers referenced by quotations.
type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// Dispatcher queues customer-facing delivery after a send commits.
type Dispatcher interface {
	EnqueueQuotationDispatch(ctx context.Context, p notify.QuotationDispatch) error
}

// ApprovalRecorder persists the lifecycle history of a document.
type ApprovalRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// AuditRecorder writes audit entries for committed transitions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyStore fences transitions whose side effects must run once.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ViewCache invalidates cached read models after a committed transition.
type ViewCache interface {
	Invalidate(ctx context.Context, entity string, id int64) error
}

// Config carries workflow tunables.
type Config struct {
	// InvoiceDueTermDays is added to the invoice date to derive the due date.
	InvoiceDueTermDays int
}

// Service drives the quotation lifecycle. Every transition checks the
// actor's permission first, then re-reads the document under lock and
// verifies the requested edge against the lifecycle table before mutating
// anything.
type Service struct {
	repo        Repository
	customers   CustomerDirectory
	dispatcher  Dispatcher
	approvals   ApprovalRecorder
	audit       AuditRecorder
	idempotency IdempotencyStore
	cache       ViewCache
	cfg         Config
	logger      *slog.Logger
}

func NewService(
	repo Repository,
	customers CustomerDirectory,
	dispatcher Dispatcher,
	approvals ApprovalRecorder,
	audit AuditRecorder,
	idempotency IdempotencyStore,
	cache ViewCache,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.InvoiceDueTermDays <= 0 {
		cfg.InvoiceDueTermDays = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		customers:   customers,
		dispatcher:  dispatcher,
		approvals:   approvals,
		audit:       audit,
		idempotency: idempotency,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
	}
}

// DraftInput is the editable content of a quotation.
type DraftInput struct {
	CustomerID int64
	BranchID   *int64
	QuoteDate  time.Time
	ValidUntil time.Time
	Currency   string
	Notes      *string
	Lines      []DraftLine
}

// DraftLine is one editable line item.
type DraftLine struct {
	ProductID   int64
	Description *string
	Quantity    float64
	UOM         string
	UnitPrice   float64
	TaxPercent  float64
}

// POInput captures the customer's purchase order.
type POInput struct {
	PONumber   string
	ReceivedAt time.Time
	Notes      *string
}

func (s *Service) Get(ctx context.Context, actor rbac.Actor, id int64) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationView) {
		return nil, shared.PermissionDenied(shared.PermQuotationView)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, actor rbac.Actor, filter ListFilter) ([]Quotation, int, error) {
	if !actor.Can(shared.PermQuotationView) {
		return nil, 0, shared.PermissionDenied(shared.PermQuotationView)
	}
	return s.repo.List(ctx, filter)
}

// History returns the lifecycle records of one quotation.
func (s *Service) History(ctx context.Context, actor rbac.Actor, id int64) ([]shared.ApprovalLog, error) {
	if !actor.Can(shared.PermQuotationView) {
		return nil, shared.PermissionDenied(shared.PermQuotationView)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, shared.DocRef(approvalModule, id))
}

// Create stores a new draft. Totals are computed server side from the lines;
// client-supplied amounts are ignored.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, input DraftInput) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationCreate) {
		return nil, shared.PermissionDenied(shared.PermQuotationCreate)
	}
	q, err := s.buildDraft(ctx, input)
	if err != nil {
		return nil, err
	}
	q.Status = QuotationStatusDraft
	q.RevisionVersion = 0
	q.CreatedBy = actor.ID

	id, err := s.repo.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "quotation.created", id, map[string]any{"doc_number": q.DocNumber})
	return s.repo.Get(ctx, id)
}

// Update replaces the editable content of a draft or revised quotation.
func (s *Service) Update(ctx context.Context, actor rbac.Actor, id int64, input DraftInput) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationEdit) {
		return nil, shared.PermissionDenied(shared.PermQuotationEdit)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Editable(current.Status) {
		return nil, shared.InvalidTransition("quotation %s is %s and cannot be edited", current.DocNumber, current.Status)
	}
	q, err := s.buildDraft(ctx, input)
	if err != nil {
		return nil, err
	}
	q.ID = id
	if err := s.repo.UpdateDraft(ctx, q); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.recordAudit(ctx, actor.ID, "quotation.updated", id, nil)
	return s.repo.Get(ctx, id)
}

func (s *Service) buildDraft(ctx context.Context, input DraftInput) (*Quotation, error) {
	var items []shared.InvalidItem
	for i, l := range input.Lines {
		if l.ProductID == 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "product_id", Reason: "is required"})
		}
		if l.Quantity <= 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "quantity", Reason: "must be positive"})
		}
		if l.UnitPrice < 0 {
			items = append(items, shared.InvalidItem{Index: i + 1, Field: "unit_price", Reason: "must not be negative"})
		}
	}
	if len(items) > 0 {
		return nil, shared.ValidationFailed("quotation has invalid line items", items...)
	}
	if _, err := s.customers.Get(ctx, input.CustomerID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ValidationFailed("customer does not exist",
				shared.InvalidItem{Field: "customer_id", Reason: "unknown customer"})
		}
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	q := &Quotation{
		CustomerID: input.CustomerID,
		BranchID:   input.BranchID,
		QuoteDate:  input.QuoteDate,
		ValidUntil: input.ValidUntil,
		Currency:   input.Currency,
		Notes:      input.Notes,
	}
	if q.Currency == "" {
		q.Currency = "IDR"
	}
	if q.QuoteDate.IsZero() {
		q.QuoteDate = time.Now()
	}
	for _, l := range input.Lines {
		net, tax, total := salesshared.CalculateLineTotals(l.Quantity, l.UnitPrice, l.TaxPercent)
		q.Subtotal += net
		q.TaxAmount += tax
		q.TotalAmount += total
		q.Lines = append(q.Lines, QuotationLine{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UOM:         l.UOM,
			UnitPrice:   l.UnitPrice,
			TaxPercent:  l.TaxPercent,
			TaxAmount:   tax,
			LineTotal:   total,
		})
	}
	return q, nil
}

// Submit moves a draft or revised quotation into review. The creator can
// always submit their own document; anyone else needs the edit permission.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor, id int64, approverID *int64, note string) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationSubmit) {
		return nil, shared.PermissionDenied(shared.PermQuotationSubmit)
	}

	var resubmit bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionSubmit, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot submit quotation %s from status %s", q.DocNumber, q.Status)
		}
		if q.CreatedBy != actor.ID && !actor.Can(shared.PermQuotationEdit) {
			return shared.PermissionDenied(shared.PermQuotationEdit)
		}
		if len(q.Lines) == 0 {
			return shared.ValidationFailed("quotation has no line items",
				shared.InvalidItem{Field: "lines", Reason: "at least one line item is required"})
		}
		resubmit = q.Status == QuotationStatusRevised

		set := map[string]any{}
		if approverID != nil {
			set["approver_id"] = *approverID
		}
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{ID: id, From: q.Status, To: to, Set: set})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ref := shared.DocRef(approvalModule, id)
	if resubmit {
		s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: ref, ActorID: actor.ID, Action: shared.ApprovalSubmit, Note: note})
	} else if err := s.approvals.EnsureSubmit(ctx, approvalModule, ref, actor.ID, note); err != nil {
		s.logger.Warn("record submit approval", slog.Int64("quotation_id", id), slog.Any("error", err))
	}
	s.recordAudit(ctx, actor.ID, "quotation.submitted", id, nil)
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// Approve accepts a submitted quotation. When a specific approver was named
// on submit, only that user may approve unless the actor holds the
// approve-any permission.
func (s *Service) Approve(ctx context.Context, actor rbac.Actor, id int64, note string) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationApprove) {
		return nil, shared.PermissionDenied(shared.PermQuotationApprove)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionApprove, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot approve quotation %s from status %s", q.DocNumber, q.Status)
		}
		if q.ApproverID != nil && *q.ApproverID != actor.ID && !actor.Can(shared.PermQuotationApproveAny) {
			return shared.PermissionDenied(shared.PermQuotationApproveAny)
		}
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{
			ID: id, From: q.Status, To: to,
			Set: map[string]any{"approved_by": actor.ID, "approved_at": time.Now()},
		})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalApprove, Note: note})
	s.recordAudit(ctx, actor.ID, "quotation.approved", id, nil)
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// Reject declines a submitted quotation. A reason is mandatory so that the
// revision cycle has something to work from.
func (s *Service) Reject(ctx context.Context, actor rbac.Actor, id int64, reason string) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationApprove) {
		return nil, shared.PermissionDenied(shared.PermQuotationApprove)
	}
	if reason == "" {
		return nil, shared.ValidationFailed("rejection reason is required",
			shared.InvalidItem{Field: "reason", Reason: "must not be empty"})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionReject, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot reject quotation %s from status %s", q.DocNumber, q.Status)
		}
		if q.ApproverID != nil && *q.ApproverID != actor.ID && !actor.Can(shared.PermQuotationApproveAny) {
			return shared.PermissionDenied(shared.PermQuotationApproveAny)
		}
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{
			ID: id, From: q.Status, To: to,
			Set: map[string]any{"rejected_by": actor.ID, "rejected_at": time.Now(), "rejection_reason": reason},
		})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalReject, Note: reason})
	s.recordAudit(ctx, actor.ID, "quotation.rejected", id, map[string]any{"reason": reason})
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// Send marks an approved quotation as sent and queues delivery to the
// customer. The status flip commits first; delivery is queued afterwards and
// retried by the worker, so a delivery failure never reverts the document.
func (s *Service) Send(ctx context.Context, actor rbac.Actor, id int64) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationSend) {
		return nil, shared.PermissionDenied(shared.PermQuotationSend)
	}

	var customer *customers.Customer
	var snapshot *Quotation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionSend, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot send quotation %s from status %s", q.DocNumber, q.Status)
		}
		customer, err = s.customers.Get(ctx, q.CustomerID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.DependencyUnavailable("customer %d no longer exists", q.CustomerID)
			}
			return fmt.Errorf("resolve customer: %w", err)
		}
		if !customer.HasContactInfo() {
			return shared.ValidationFailed("customer has no contact information",
				shared.InvalidItem{Field: "customer", Reason: "an email address or phone number is required to send"})
		}
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{
			ID: id, From: q.Status, To: to,
			Set: map[string]any{"sent_at": time.Now()},
		})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		snapshot = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		dispatchErr := s.dispatcher.EnqueueQuotationDispatch(ctx, notify.QuotationDispatch{
			QuotationID:   id,
			DocNumber:     snapshot.DocNumber,
			RecipientName: customer.Name,
			Email:         customer.Email,
			Phone:         customer.Phone,
			Currency:      snapshot.Currency,
			TotalAmount:   snapshot.TotalAmount,
			SentBy:        actor.ID,
		})
		if dispatchErr != nil {
			// The document stays SENT; operators replay delivery from the queue.
			s.logger.Error("enqueue quotation dispatch", slog.Int64("quotation_id", id), slog.Any("error", dispatchErr))
		}
	}
	s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalSend})
	s.recordAudit(ctx, actor.ID, "quotation.sent", id, nil)
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// AttachPurchaseOrder records the customer's acceptance. Attaching to an
// already accepted quotation replaces the captured PO in place.
func (s *Service) AttachPurchaseOrder(ctx context.Context, actor rbac.Actor, id int64, input POInput) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationEdit) {
		return nil, shared.PermissionDenied(shared.PermQuotationEdit)
	}
	if input.PONumber == "" {
		return nil, shared.ValidationFailed("purchase order reference is required",
			shared.InvalidItem{Field: "po_number", Reason: "must not be empty"})
	}
	if input.ReceivedAt.IsZero() {
		input.ReceivedAt = time.Now()
	}

	var firstAccept bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionAttachPO, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot attach a purchase order to quotation %s in status %s", q.DocNumber, q.Status)
		}
		firstAccept = q.Status == QuotationStatusSent
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{
			ID: id, From: q.Status, To: to,
			Set: map[string]any{"po_number": input.PONumber, "po_received_at": input.ReceivedAt, "po_notes": input.Notes},
		})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if firstAccept {
		s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalAccept, Note: input.PONumber})
	}
	s.recordAudit(ctx, actor.ID, "quotation.po_attached", id, map[string]any{"po_number": input.PONumber})
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// Revise reopens a rejected quotation for editing. The document keeps its
// number and identity; only the revision counter moves.
func (s *Service) Revise(ctx context.Context, actor rbac.Actor, id int64, note string) (*Quotation, error) {
	if !actor.Can(shared.PermQuotationEdit) {
		return nil, shared.PermissionDenied(shared.PermQuotationEdit)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionRevise, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot revise quotation %s from status %s", q.DocNumber, q.Status)
		}
		matched, err := tx.UpdateStatus(ctx, StatusUpdate{ID: id, From: q.Status, To: to, IncrementRevision: true})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalRevise, Note: note})
	s.recordAudit(ctx, actor.ID, "quotation.revised", id, nil)
	s.invalidate(ctx, id)
	return s.repo.Get(ctx, id)
}

// MarkAsInvoice converts an accepted quotation into an invoice. The invoice
// rows and the status flip share one transaction; an idempotency fence keyed
// on the upcoming transition sequence stops a crashed-and-retried request
// from producing a second invoice.
func (s *Service) MarkAsInvoice(ctx context.Context, actor rbac.Actor, id int64) (*Quotation, *invoices.Invoice, error) {
	if !actor.Can(shared.PermInvoiceCreate) {
		return nil, nil, shared.PermissionDenied(shared.PermInvoiceCreate)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if current.InvoiceID != nil {
		return nil, nil, shared.InvalidTransition("quotation %s is already invoiced", current.DocNumber)
	}
	if _, ok := NextStatus(ActionInvoice, current.Status); !ok {
		return nil, nil, shared.InvalidTransition("cannot invoice quotation %s from status %s", current.DocNumber, current.Status)
	}

	key := fmt.Sprintf("quotation:%d:%s:%d", id, QuotationStatusInvoiced, current.TransitionSeq+1)
	if err := s.idempotency.CheckAndInsert(ctx, key, approvalModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, nil, shared.ConcurrentModification("invoicing of quotation %d is already in progress or done", id)
		}
		return nil, nil, err
	}

	inv := &invoices.Invoice{}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		to, ok := NextStatus(ActionInvoice, q.Status)
		if !ok {
			return shared.InvalidTransition("cannot invoice quotation %s from status %s", q.DocNumber, q.Status)
		}
		if q.InvoiceID != nil {
			return shared.InvalidTransition("quotation %s is already invoiced", q.DocNumber)
		}

		var missing []shared.InvalidItem
		for i, l := range q.Lines {
			ok, err := tx.ProductExists(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if !ok {
				missing = append(missing, shared.InvalidItem{Index: i + 1, Field: "product_id", Reason: fmt.Sprintf("product %d no longer exists", l.ProductID)})
			}
		}
		if len(missing) > 0 {
			return &shared.WorkflowError{
				Kind:         shared.KindDependencyUnavailable,
				Message:      "referenced products are unavailable",
				InvalidItems: missing,
			}
		}

		now := time.Now()
		number, err := tx.NextNumber(ctx, "INV", now)
		if err != nil {
			return err
		}
		inv.Number = number
		inv.QuotationID = q.ID
		inv.CustomerID = q.CustomerID
		inv.Currency = q.Currency
		inv.InvoiceDate = now
		inv.DueDate = now.AddDate(0, 0, s.cfg.InvoiceDueTermDays)
		inv.CreatedBy = actor.ID
		for _, l := range q.Lines {
			net, tax, total := salesshared.CalculateLineTotals(l.Quantity, l.UnitPrice, l.TaxPercent)
			inv.Subtotal += net
			inv.TaxAmount += tax
			inv.TotalAmount += total
			inv.Lines = append(inv.Lines, invoices.InvoiceLine{
				ProductID:  l.ProductID,
				Qty:        l.Quantity,
				UOM:        l.UOM,
				UnitPrice:  l.UnitPrice,
				TaxPercent: l.TaxPercent,
				LineTotal:  total,
			})
		}

		invoiceID, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = invoiceID

		matched, err := tx.UpdateStatus(ctx, StatusUpdate{
			ID: id, From: q.Status, To: to,
			Set: map[string]any{"invoice_id": invoiceID},
		})
		if err != nil {
			return err
		}
		if !matched {
			return shared.ConcurrentModification("quotation %d was modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, nil, err
	}

	s.recordApproval(ctx, shared.ApprovalLog{Module: approvalModule, RefID: shared.DocRef(approvalModule, id), ActorID: actor.ID, Action: shared.ApprovalInvoice, Note: inv.Number})
	s.recordAudit(ctx, actor.ID, "quotation.invoiced", id, map[string]any{"invoice_id": inv.ID, "invoice_number": inv.Number})
	s.invalidate(ctx, id)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "invoice", inv.ID); err != nil {
			s.logger.Warn("invalidate invoice cache", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
	}

	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, inv, err
	}
	return q, inv, nil
}

func (s *Service) recordApproval(ctx context.Context, log shared.ApprovalLog) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.Warn("record approval", slog.String("action", string(log.Action)), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, auditEntity, id); err != nil {
		s.logger.Warn("invalidate cache", slog.Int64("quotation_id", id), slog.Any("error", err))
	}
}
