package quotations

import "time"

type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "DRAFT"
	QuotationStatusSubmitted QuotationStatus = "SUBMITTED"
	QuotationStatusApproved  QuotationStatus = "APPROVED"
	QuotationStatusRejected  QuotationStatus = "REJECTED"
	QuotationStatusSent      QuotationStatus = "SENT"
	QuotationStatusAccepted  QuotationStatus = "ACCEPTED"
	QuotationStatusRevised   QuotationStatus = "REVISED"
	QuotationStatusInvoiced  QuotationStatus = "INVOICED"
)

// Action enumerates the workflow transitions a caller can request.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionSend     Action = "send"
	ActionAttachPO Action = "attach_po"
	ActionRevise   Action = "revise"
	ActionInvoice  Action = "invoice"
)

// transitions is the closed edge set of the quotation lifecycle. Any
// requested edge not present here fails InvalidTransition; the server is the
// authority regardless of what the client believed the status to be.
var transitions = map[Action]map[QuotationStatus]QuotationStatus{
	ActionSubmit:   {QuotationStatusDraft: QuotationStatusSubmitted, QuotationStatusRevised: QuotationStatusSubmitted},
	ActionApprove:  {QuotationStatusSubmitted: QuotationStatusApproved},
	ActionReject:   {QuotationStatusSubmitted: QuotationStatusRejected},
	ActionSend:     {QuotationStatusApproved: QuotationStatusSent},
	ActionAttachPO: {QuotationStatusSent: QuotationStatusAccepted, QuotationStatusAccepted: QuotationStatusAccepted},
	ActionRevise:   {QuotationStatusRejected: QuotationStatusRevised},
	ActionInvoice:  {QuotationStatusAccepted: QuotationStatusInvoiced},
}

// NextStatus resolves the target status for an action from the given source
// state. ok is false when the edge is not in the lifecycle table.
func NextStatus(action Action, from QuotationStatus) (QuotationStatus, bool) {
	to, ok := transitions[action][from]
	return to, ok
}

// Editable reports whether line items and monetary fields may change.
func Editable(status QuotationStatus) bool {
	return status == QuotationStatusDraft || status == QuotationStatusRevised
}

type Quotation struct {
	ID              int64           `json:"id" db:"id"`
	DocNumber       string          `json:"doc_number" db:"doc_number"`
	CustomerID      int64           `json:"customer_id" db:"customer_id"`
	BranchID        *int64          `json:"branch_id,omitempty" db:"branch_id"`
	QuoteDate       time.Time       `json:"quote_date" db:"quote_date"`
	ValidUntil      time.Time       `json:"valid_until" db:"valid_until"`
	Status          QuotationStatus `json:"status" db:"status"`
	Currency        string          `json:"currency" db:"currency"`
	Subtotal        float64         `json:"subtotal" db:"subtotal"`
	TaxAmount       float64         `json:"tax_amount" db:"tax_amount"`
	TotalAmount     float64         `json:"total_amount" db:"total_amount"`
	RevisionVersion int             `json:"revision_version" db:"revision_version"`
	TransitionSeq   int64           `json:"transition_seq" db:"transition_seq"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	CreatedBy       int64           `json:"created_by" db:"created_by"`
	ApproverID      *int64          `json:"approver_id,omitempty" db:"approver_id"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy      *int64          `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	SentAt          *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	PONumber        *string         `json:"po_number,omitempty" db:"po_number"`
	POReceivedAt    *time.Time      `json:"po_received_at,omitempty" db:"po_received_at"`
	PONotes         *string         `json:"po_notes,omitempty" db:"po_notes"`
	InvoiceID       *int64          `json:"invoice_id,omitempty" db:"invoice_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Lines           []QuotationLine `json:"lines,omitempty" db:"-"`
}

type QuotationLine struct {
	ID          int64   `json:"id" db:"id"`
	QuotationID int64   `json:"quotation_id" db:"quotation_id"`
	ProductID   int64   `json:"product_id" db:"product_id"`
	Description *string `json:"description,omitempty" db:"description"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	UOM         string  `json:"uom" db:"uom"`
	UnitPrice   float64 `json:"unit_price" db:"unit_price"`
	TaxPercent  float64 `json:"tax_percent" db:"tax_percent"`
	TaxAmount   float64 `json:"tax_amount" db:"tax_amount"`
	LineTotal   float64 `json:"line_total" db:"line_total"`
	LineOrder   int     `json:"line_order" db:"line_order"`
}
