package invoices

import "time"

// Invoice is seeded from an accepted quotation when it is marked as
// invoiced. Totals are recomputed from the lines at creation time, never
// copied from the quotation header.
type Invoice struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	QuotationID int64         `json:"quotation_id"`
	CustomerID  int64         `json:"customer_id"`
	Currency    string        `json:"currency"`
	InvoiceDate time.Time     `json:"invoice_date"`
	DueDate     time.Time     `json:"due_date"`
	Subtotal    float64       `json:"subtotal"`
	TaxAmount   float64       `json:"tax_amount"`
	TotalAmount float64       `json:"total_amount"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	Lines       []InvoiceLine `json:"lines,omitempty"`
}

// InvoiceLine mirrors one quotation line.
type InvoiceLine struct {
	ID         int64   `json:"id"`
	InvoiceID  int64   `json:"invoice_id"`
	ProductID  int64   `json:"product_id"`
	Qty        float64 `json:"qty"`
	UOM        string  `json:"uom"`
	UnitPrice  float64 `json:"unit_price"`
	TaxPercent float64 `json:"tax_percent"`
	LineTotal  float64 `json:"line_total"`
}
