package quotations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mitra-erp/mitra-erp/internal/invoices"
	"github.com/mitra-erp/mitra-erp/internal/notify"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/sales/customers"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

type memoryQuotationRepo struct {
	quotations map[int64]*Quotation
	invoices   map[int64]*invoices.Invoice
	products   map[int64]bool
	nextID     int64
	nextInvID  int64
	seq        int64

	// beforeUpdate runs between the locked read and the conditional status
	// write, which is where a concurrent transition would land.
	beforeUpdate func()
}

func newMemoryQuotationRepo() *memoryQuotationRepo {
	return &memoryQuotationRepo{
		quotations: make(map[int64]*Quotation),
		invoices:   make(map[int64]*invoices.Invoice),
		products:   map[int64]bool{101: true, 102: true},
	}
}

func (r *memoryQuotationRepo) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, ok := r.quotations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *q
	cp.Lines = append([]QuotationLine(nil), q.Lines...)
	return &cp, nil
}

func (r *memoryQuotationRepo) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range r.quotations {
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && q.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (r *memoryQuotationRepo) Create(ctx context.Context, q *Quotation) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	q.DocNumber = fmt.Sprintf("QT-2608-%04d", r.nextID)
	r.quotations[q.ID] = q
	return q.ID, nil
}

func (r *memoryQuotationRepo) UpdateDraft(ctx context.Context, q *Quotation) error {
	current, ok := r.quotations[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if !Editable(current.Status) {
		return shared.ConcurrentModification("quotation %d left the editable state", q.ID)
	}
	q.Status = current.Status
	q.DocNumber = current.DocNumber
	q.RevisionVersion = current.RevisionVersion
	q.TransitionSeq = current.TransitionSeq
	q.CreatedBy = current.CreatedBy
	r.quotations[q.ID] = q
	return nil
}

func (r *memoryQuotationRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, &memoryQuotationTx{repo: r})
}

type memoryQuotationTx struct {
	repo *memoryQuotationRepo
}

func (t *memoryQuotationTx) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryQuotationTx) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	if t.repo.beforeUpdate != nil {
		hook := t.repo.beforeUpdate
		t.repo.beforeUpdate = nil
		hook()
	}
	q, ok := t.repo.quotations[u.ID]
	if !ok || q.Status != u.From {
		return false, nil
	}
	q.Status = u.To
	q.TransitionSeq++
	if u.IncrementRevision {
		q.RevisionVersion++
	}
	for k, v := range u.Set {
		switch k {
		case "approver_id":
			id := v.(int64)
			q.ApproverID = &id
		case "approved_by":
			id := v.(int64)
			q.ApprovedBy = &id
		case "approved_at":
			at := v.(time.Time)
			q.ApprovedAt = &at
		case "rejected_by":
			id := v.(int64)
			q.RejectedBy = &id
		case "rejected_at":
			at := v.(time.Time)
			q.RejectedAt = &at
		case "rejection_reason":
			reason := v.(string)
			q.RejectionReason = &reason
		case "sent_at":
			at := v.(time.Time)
			q.SentAt = &at
		case "po_number":
			num := v.(string)
			q.PONumber = &num
		case "po_received_at":
			at := v.(time.Time)
			q.POReceivedAt = &at
		case "po_notes":
			if notes, ok := v.(*string); ok {
				q.PONotes = notes
			}
		case "invoice_id":
			id := v.(int64)
			q.InvoiceID = &id
		}
	}
	return true, nil
}

func (t *memoryQuotationTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	return t.repo.products[productID], nil
}

func (t *memoryQuotationTx) NextNumber(ctx context.Context, docType string, at time.Time) (string, error) {
	t.repo.seq++
	return fmt.Sprintf("%s-%s-%04d", docType, at.Format("0601"), t.repo.seq), nil
}

func (t *memoryQuotationTx) InsertInvoice(ctx context.Context, inv *invoices.Invoice) (int64, error) {
	t.repo.nextInvID++
	cp := *inv
	cp.ID = t.repo.nextInvID
	t.repo.invoices[cp.ID] = &cp
	return cp.ID, nil
}

type stubDirectory struct {
	customers map[int64]*customers.Customer
}

func (d *stubDirectory) Get(ctx context.Context, id int64) (*customers.Customer, error) {
	c, ok := d.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type recordingDispatcher struct {
	payloads []notify.QuotationDispatch
	err      error
}

func (d *recordingDispatcher) EnqueueQuotationDispatch(ctx context.Context, p notify.QuotationDispatch) error {
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, p)
	return nil
}

type memoryApprovals struct {
	logs []shared.ApprovalLog
}

func (a *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryApprovals) EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref && l.Action == shared.ApprovalSubmit {
			return nil
		}
	}
	return a.Record(ctx, shared.ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: shared.ApprovalSubmit, Note: note})
}

func (a *memoryApprovals) List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func (a *memoryApprovals) actions() []shared.ApprovalAction {
	out := make([]shared.ApprovalAction, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency struct {
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]string)}
}

func (s *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := s.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = module
	return nil
}

func (s *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Invalidate(ctx context.Context, entity string, id int64) error {
	c.invalidated = append(c.invalidated, fmt.Sprintf("%s:%d", entity, id))
	return nil
}

type quotationFixture struct {
	svc         *Service
	repo        *memoryQuotationRepo
	directory   *stubDirectory
	dispatcher  *recordingDispatcher
	approvals   *memoryApprovals
	audit       *memoryAudit
	idempotency *memoryIdempotency
	cache       *recordingCache
}

func newQuotationFixture(t *testing.T) *quotationFixture {
	t.Helper()
	email := "budi@pelanggan.co.id"
	f := &quotationFixture{
		repo: newMemoryQuotationRepo(),
		directory: &stubDirectory{customers: map[int64]*customers.Customer{
			7: {ID: 7, Code: "CUST-007", Name: "PT Pelanggan Utama", Email: &email},
			8: {ID: 8, Code: "CUST-008", Name: "CV Tanpa Kontak"},
		}},
		dispatcher:  &recordingDispatcher{},
		approvals:   &memoryApprovals{},
		audit:       &memoryAudit{},
		idempotency: newMemoryIdempotency(),
		cache:       &recordingCache{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.repo, f.directory, f.dispatcher, f.approvals, f.audit, f.idempotency, f.cache, Config{InvoiceDueTermDays: 30}, logger)
	return f
}

func (f *quotationFixture) seed(status QuotationStatus, mutate ...func(*Quotation)) int64 {
	f.repo.nextID++
	id := f.repo.nextID
	q := &Quotation{
		ID:              id,
		DocNumber:       fmt.Sprintf("QT-2608-%04d", id),
		CustomerID:      7,
		Status:          status,
		Currency:        "IDR",
		RevisionVersion: 0,
		CreatedBy:       1,
		Subtotal:        1000,
		TaxAmount:       110,
		TotalAmount:     1110,
		Lines: []QuotationLine{
			{ID: 1, QuotationID: id, ProductID: 101, Quantity: 2, UOM: "PCS", UnitPrice: 500, TaxPercent: 11, TaxAmount: 110, LineTotal: 1110},
		},
	}
	for _, fn := range mutate {
		fn(q)
	}
	f.repo.quotations[id] = q
	return id
}

func actorWith(id int64, perms ...string) rbac.Actor {
	return rbac.NewActor(id, false, perms)
}

func salesActor(id int64) rbac.Actor {
	return actorWith(id,
		shared.PermQuotationView, shared.PermQuotationCreate, shared.PermQuotationEdit,
		shared.PermQuotationSubmit, shared.PermQuotationSend, shared.PermInvoiceCreate)
}

func approverActor(id int64) rbac.Actor {
	return actorWith(id, shared.PermQuotationView, shared.PermQuotationApprove)
}

func TestCreateComputesTotalsServerSide(t *testing.T) {
	f := newQuotationFixture(t)
	desc := "CNC spindle"
	q, err := f.svc.Create(context.Background(), salesActor(1), DraftInput{
		CustomerID: 7,
		Lines: []DraftLine{
			{ProductID: 101, Description: &desc, Quantity: 2, UOM: "PCS", UnitPrice: 500, TaxPercent: 11},
			{ProductID: 102, Quantity: 1, UOM: "PCS", UnitPrice: 250, TaxPercent: 0},
		},
	})
	require.NoError(t, err)
	require.Equal(t, QuotationStatusDraft, q.Status)
	require.Equal(t, "IDR", q.Currency)
	require.Equal(t, 0, q.RevisionVersion)
	require.InDelta(t, 1250.0, q.Subtotal, 0.001)
	require.InDelta(t, 110.0, q.TaxAmount, 0.001)
	require.InDelta(t, 1360.0, q.TotalAmount, 0.001)
	require.NotEmpty(t, q.DocNumber)
}

func TestCreateCollectsEveryInvalidLine(t *testing.T) {
	f := newQuotationFixture(t)
	_, err := f.svc.Create(context.Background(), salesActor(1), DraftInput{
		CustomerID: 7,
		Lines: []DraftLine{
			{ProductID: 0, Quantity: 1, UnitPrice: 10},
			{ProductID: 101, Quantity: 0, UnitPrice: 10},
			{ProductID: 102, Quantity: 1, UnitPrice: -5},
		},
	})
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
	wf, _ := shared.AsWorkflowError(err)
	require.Len(t, wf.InvalidItems, 3)
	require.Equal(t, 1, wf.InvalidItems[0].Index)
	require.Equal(t, "product_id", wf.InvalidItems[0].Field)
	require.Equal(t, "quantity", wf.InvalidItems[1].Field)
	require.Equal(t, "unit_price", wf.InvalidItems[2].Field)
}

func TestCreateUnknownCustomer(t *testing.T) {
	f := newQuotationFixture(t)
	_, err := f.svc.Create(context.Background(), salesActor(1), DraftInput{CustomerID: 999})
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
}

func TestCreateRequiresPermission(t *testing.T) {
	f := newQuotationFixture(t)
	_, err := f.svc.Create(context.Background(), actorWith(1, shared.PermQuotationView), DraftInput{CustomerID: 7})
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
}

func TestUpdateRejectsNonEditableStatus(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusSubmitted)
	_, err := f.svc.Update(context.Background(), salesActor(1), id, DraftInput{CustomerID: 7})
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
}

func TestSubmitDraft(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)
	approver := int64(9)

	q, err := f.svc.Submit(context.Background(), salesActor(1), id, &approver, "please review")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSubmitted, q.Status)
	require.NotNil(t, q.ApproverID)
	require.Equal(t, approver, *q.ApproverID)
	require.Equal(t, int64(1), q.TransitionSeq)
	require.Equal(t, []shared.ApprovalAction{shared.ApprovalSubmit}, f.approvals.actions())
}

func TestSubmitWithoutLines(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft, func(q *Quotation) { q.Lines = nil })

	_, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "")
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))

	q, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusDraft, q.Status)
}

func TestSubmitFromWrongStatus(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusApproved)
	_, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "")
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
}

func TestSubmitByNonCreatorNeedsEditPermission(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)

	stranger := actorWith(42, shared.PermQuotationSubmit)
	_, err := f.svc.Submit(context.Background(), stranger, id, nil, "")
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))

	editor := actorWith(42, shared.PermQuotationSubmit, shared.PermQuotationEdit)
	_, err = f.svc.Submit(context.Background(), editor, id, nil, "")
	require.NoError(t, err)
}

func TestApproveByAssignedApprover(t *testing.T) {
	f := newQuotationFixture(t)
	approver := int64(9)
	id := f.seed(QuotationStatusSubmitted, func(q *Quotation) { q.ApproverID = &approver })

	q, err := f.svc.Approve(context.Background(), approverActor(9), id, "ok")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusApproved, q.Status)
	require.NotNil(t, q.ApprovedBy)
	require.Equal(t, approver, *q.ApprovedBy)
	require.NotNil(t, q.ApprovedAt)
}

func TestApproveByWrongApprover(t *testing.T) {
	f := newQuotationFixture(t)
	approver := int64(9)
	id := f.seed(QuotationStatusSubmitted, func(q *Quotation) { q.ApproverID = &approver })

	_, err := f.svc.Approve(context.Background(), approverActor(10), id, "")
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))

	bypass := actorWith(10, shared.PermQuotationApprove, shared.PermQuotationApproveAny)
	q, err := f.svc.Approve(context.Background(), bypass, id, "")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusApproved, q.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusSubmitted)

	_, err := f.svc.Reject(context.Background(), approverActor(9), id, "")
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))

	q, err := f.svc.Reject(context.Background(), approverActor(9), id, "pricing out of range")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusRejected, q.Status)
	require.NotNil(t, q.RejectionReason)
	require.Equal(t, "pricing out of range", *q.RejectionReason)
}

func TestReviseIncrementsRevision(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusRejected)

	q, err := f.svc.Revise(context.Background(), salesActor(1), id, "rework pricing")
	require.NoError(t, err)
	require.Equal(t, QuotationStatusRevised, q.Status)
	require.Equal(t, 1, q.RevisionVersion)
	require.Equal(t, "QT-2608-0001", q.DocNumber)
	require.Equal(t, []shared.ApprovalAction{shared.ApprovalRevise}, f.approvals.actions())
}

func TestRevisionCountsRejectReviseCycles(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)

	q, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 0, q.RevisionVersion)

	for cycle := 1; cycle <= 2; cycle++ {
		_, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "")
		require.NoError(t, err)
		_, err = f.svc.Reject(context.Background(), approverActor(9), id, "needs rework")
		require.NoError(t, err)
		q, err = f.svc.Revise(context.Background(), salesActor(1), id, "")
		require.NoError(t, err)
		require.Equal(t, cycle, q.RevisionVersion)
	}
	require.Equal(t, 2, q.RevisionVersion)
}

func TestResubmitAfterReviseAppendsHistory(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)

	_, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "")
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), approverActor(9), id, "too expensive")
	require.NoError(t, err)
	_, err = f.svc.Revise(context.Background(), salesActor(1), id, "")
	require.NoError(t, err)
	q, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "second try")
	require.NoError(t, err)

	require.Equal(t, QuotationStatusSubmitted, q.Status)
	require.Equal(t, []shared.ApprovalAction{
		shared.ApprovalSubmit, shared.ApprovalReject, shared.ApprovalRevise, shared.ApprovalSubmit,
	}, f.approvals.actions())
}

func TestSendQueuesDispatchAfterCommit(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusApproved)

	q, err := f.svc.Send(context.Background(), salesActor(1), id)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, q.Status)
	require.NotNil(t, q.SentAt)

	require.Len(t, f.dispatcher.payloads, 1)
	p := f.dispatcher.payloads[0]
	require.Equal(t, id, p.QuotationID)
	require.Equal(t, "QT-2608-0001", p.DocNumber)
	require.Equal(t, "PT Pelanggan Utama", p.RecipientName)
	require.InDelta(t, 1110.0, p.TotalAmount, 0.001)
}

func TestSendWithoutContactInfo(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusApproved, func(q *Quotation) { q.CustomerID = 8 })

	_, err := f.svc.Send(context.Background(), salesActor(1), id)
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
	require.Empty(t, f.dispatcher.payloads)

	q, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusApproved, q.Status)
}

func TestSendWhenCustomerVanished(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusApproved, func(q *Quotation) { q.CustomerID = 404 })

	_, err := f.svc.Send(context.Background(), salesActor(1), id)
	require.True(t, shared.IsKind(err, shared.KindDependencyUnavailable))
}

func TestSendSurvivesEnqueueFailure(t *testing.T) {
	f := newQuotationFixture(t)
	f.dispatcher.err = fmt.Errorf("redis unreachable")
	id := f.seed(QuotationStatusApproved)

	q, err := f.svc.Send(context.Background(), salesActor(1), id)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusSent, q.Status)
}

func TestAttachPurchaseOrder(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusSent)

	q, err := f.svc.AttachPurchaseOrder(context.Background(), salesActor(1), id, POInput{PONumber: "PO/2026/081"})
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, q.Status)
	require.NotNil(t, q.PONumber)
	require.Equal(t, "PO/2026/081", *q.PONumber)
	require.NotNil(t, q.POReceivedAt)
	require.Equal(t, []shared.ApprovalAction{shared.ApprovalAccept}, f.approvals.actions())

	// Re-attaching replaces the PO in place without another accept record.
	q, err = f.svc.AttachPurchaseOrder(context.Background(), salesActor(1), id, POInput{PONumber: "PO/2026/082"})
	require.NoError(t, err)
	require.Equal(t, QuotationStatusAccepted, q.Status)
	require.Equal(t, "PO/2026/082", *q.PONumber)
	require.Equal(t, []shared.ApprovalAction{shared.ApprovalAccept}, f.approvals.actions())
}

func TestAttachPurchaseOrderRequiresNumber(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusSent)
	_, err := f.svc.AttachPurchaseOrder(context.Background(), salesActor(1), id, POInput{})
	require.True(t, shared.IsKind(err, shared.KindValidationFailed))
}

func TestMarkAsInvoice(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusAccepted)

	q, inv, err := f.svc.MarkAsInvoice(context.Background(), salesActor(1), id)
	require.NoError(t, err)
	require.Equal(t, QuotationStatusInvoiced, q.Status)
	require.NotNil(t, q.InvoiceID)
	require.Equal(t, inv.ID, *q.InvoiceID)

	require.Contains(t, inv.Number, "INV-")
	require.Equal(t, id, inv.QuotationID)
	require.Len(t, inv.Lines, 1)
	require.InDelta(t, 1110.0, inv.TotalAmount, 0.001)
	require.Equal(t, inv.InvoiceDate.AddDate(0, 0, 30).Truncate(time.Minute), inv.DueDate.Truncate(time.Minute))
}

func TestMarkAsInvoiceIsFencedByIdempotencyKey(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusAccepted)

	key := fmt.Sprintf("quotation:%d:%s:%d", id, QuotationStatusInvoiced, 1)
	require.NoError(t, f.idempotency.CheckAndInsert(context.Background(), key, "quotations"))

	_, _, err := f.svc.MarkAsInvoice(context.Background(), salesActor(1), id)
	require.True(t, shared.IsKind(err, shared.KindConcurrentModification))
	require.Empty(t, f.repo.invoices)
}

func TestMarkAsInvoiceTwice(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusAccepted)

	_, _, err := f.svc.MarkAsInvoice(context.Background(), salesActor(1), id)
	require.NoError(t, err)

	_, _, err = f.svc.MarkAsInvoice(context.Background(), salesActor(1), id)
	require.True(t, shared.IsKind(err, shared.KindInvalidTransition))
	require.Len(t, f.repo.invoices, 1)
}

func TestMarkAsInvoiceWithMissingProducts(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusAccepted, func(q *Quotation) {
		q.Lines = append(q.Lines, QuotationLine{ID: 2, QuotationID: q.ID, ProductID: 999, Quantity: 1, UOM: "PCS", UnitPrice: 100})
	})

	_, _, err := f.svc.MarkAsInvoice(context.Background(), salesActor(1), id)
	require.True(t, shared.IsKind(err, shared.KindDependencyUnavailable))
	wf, _ := shared.AsWorkflowError(err)
	require.Len(t, wf.InvalidItems, 1)
	require.Equal(t, 2, wf.InvalidItems[0].Index)
	require.Empty(t, f.repo.invoices)

	// The fence is released so a later retry can run once products return.
	require.Empty(t, f.idempotency.keys)
}

func TestTransitionDetectsConcurrentUpdate(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusSubmitted)

	f.repo.beforeUpdate = func() {
		f.repo.quotations[id].Status = QuotationStatusRejected
	}
	_, err := f.svc.Approve(context.Background(), approverActor(9), id, "")
	require.True(t, shared.IsKind(err, shared.KindConcurrentModification))
}

func TestHistoryReturnsLifecycle(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)

	_, err := f.svc.Submit(context.Background(), salesActor(1), id, nil, "review")
	require.NoError(t, err)

	logs, err := f.svc.History(context.Background(), salesActor(1), id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, shared.ApprovalSubmit, logs[0].Action)
}

func TestViewRequiresPermission(t *testing.T) {
	f := newQuotationFixture(t)
	id := f.seed(QuotationStatusDraft)
	_, err := f.svc.Get(context.Background(), rbac.NewActor(1, false, nil), id)
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
}
