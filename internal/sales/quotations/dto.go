package quotations

import "time"

type draftLineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	Description *string `json:"description"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UOM         string  `json:"uom" validate:"required"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxPercent  float64 `json:"tax_percent" validate:"gte=0,lte=100"`
}

// draftRequest creates or replaces a draft. A draft may have zero lines;
// submission is where the line requirement bites.
type draftRequest struct {
	CustomerID int64              `json:"customer_id" validate:"required"`
	BranchID   *int64             `json:"branch_id"`
	QuoteDate  time.Time          `json:"quote_date"`
	ValidUntil time.Time          `json:"valid_until"`
	Currency   string             `json:"currency" validate:"omitempty,len=3"`
	Notes      *string            `json:"notes"`
	Lines      []draftLineRequest `json:"lines" validate:"dive"`
}

func (req draftRequest) toInput() DraftInput {
	input := DraftInput{
		CustomerID: req.CustomerID,
		BranchID:   req.BranchID,
		QuoteDate:  req.QuoteDate,
		ValidUntil: req.ValidUntil,
		Currency:   req.Currency,
		Notes:      req.Notes,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, DraftLine{
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UOM:         l.UOM,
			UnitPrice:   l.UnitPrice,
			TaxPercent:  l.TaxPercent,
		})
	}
	return input
}

type submitRequest struct {
	ApproverID *int64 `json:"approver_id"`
	Note       string `json:"note"`
}

type approveRequest struct {
	Note string `json:"note"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type purchaseOrderRequest struct {
	PONumber   string    `json:"po_number" validate:"required"`
	ReceivedAt time.Time `json:"received_at"`
	Notes      *string   `json:"notes"`
}

type reviseRequest struct {
	Note string `json:"note"`
}
