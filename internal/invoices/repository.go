package invoices

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// Repository reads invoices. Rows are written inside the quotation
// transaction so that mark-as-invoice stays atomic.
type Repository interface {
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetByQuotation(ctx context.Context, quotationID int64) (*Invoice, error)
	List(ctx context.Context, limit, offset int) ([]Invoice, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceColumns = `id, number, quotation_id, customer_id, currency, invoice_date, due_date, subtotal, tax_amount, total_amount, created_by, created_at`

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	return r.fetch(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *repository) GetByQuotation(ctx context.Context, quotationID int64) (*Invoice, error) {
	return r.fetch(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE quotation_id = $1`, quotationID)
}

func (r *repository) fetch(ctx context.Context, query string, arg any) (*Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&inv.ID, &inv.Number, &inv.QuotationID, &inv.CustomerID, &inv.Currency,
		&inv.InvoiceDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
		&inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, product_id, qty, uom, unit_price, tax_percent, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.Qty, &line.UOM,
			&line.UnitPrice, &line.TaxPercent, &line.LineTotal); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.QuotationID, &inv.CustomerID, &inv.Currency,
			&inv.InvoiceDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
			&inv.CreatedBy, &inv.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}
