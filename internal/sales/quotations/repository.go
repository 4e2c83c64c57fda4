package quotations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/invoices"
	"github.com/mitra-erp/mitra-erp/internal/platform/db"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// ListFilter narrows List results.
type ListFilter struct {
	Status     QuotationStatus
	CustomerID int64
	Limit      int
	Offset     int
}

// StatusUpdate describes one conditional status transition. The UPDATE only
// matches when the row still holds From, which is how concurrent transitions
// on the same document are detected.
type StatusUpdate struct {
	ID                int64
	From              QuotationStatus
	To                QuotationStatus
	Set               map[string]any
	IncrementRevision bool
}

type Repository interface {
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	Create(ctx context.Context, q *Quotation) (int64, error)
	UpdateDraft(ctx context.Context, q *Quotation) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the write surface available inside one transaction. The
// status flip, invoice rows and any other side effects of a transition all
// ride the same tx and commit together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
	NextNumber(ctx context.Context, docType string, at time.Time) (string, error)
	InsertInvoice(ctx context.Context, inv *invoices.Invoice) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const quotationColumns = `id, doc_number, customer_id, branch_id, quote_date, valid_until, status, currency,
subtotal, tax_amount, total_amount, revision_version, transition_seq, notes, created_by,
approver_id, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
sent_at, po_number, po_received_at, po_notes, invoice_id, created_at, updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	err := row.Scan(
		&q.ID, &q.DocNumber, &q.CustomerID, &q.BranchID, &q.QuoteDate, &q.ValidUntil, &q.Status, &q.Currency,
		&q.Subtotal, &q.TaxAmount, &q.TotalAmount, &q.RevisionVersion, &q.TransitionSeq, &q.Notes, &q.CreatedBy,
		&q.ApproverID, &q.ApprovedBy, &q.ApprovedAt, &q.RejectedBy, &q.RejectedAt, &q.RejectionReason,
		&q.SentAt, &q.PONumber, &q.POReceivedAt, &q.PONotes, &q.InvoiceID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadLines(ctx context.Context, q querier, quotationID int64) ([]QuotationLine, error) {
	rows, err := q.Query(ctx, `SELECT id, quotation_id, product_id, description, quantity, uom, unit_price, tax_percent, tax_amount, line_total, line_order
FROM quotation_lines WHERE quotation_id = $1 ORDER BY line_order`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []QuotationLine
	for rows.Next() {
		var l QuotationLine
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.Description, &l.Quantity, &l.UOM,
			&l.UnitPrice, &l.TaxPercent, &l.TaxAmount, &l.LineTotal, &l.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	q, err := scanQuotation(r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	q.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CustomerID != 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM quotations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, q *Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		txr := &txRepository{tx: tx}
		number, err := txr.NextNumber(ctx, "QT", q.QuoteDate)
		if err != nil {
			return err
		}
		q.DocNumber = number
		err = tx.QueryRow(ctx, `
			INSERT INTO quotations (doc_number, customer_id, branch_id, quote_date, valid_until, status, currency,
				subtotal, tax_amount, total_amount, revision_version, transition_seq, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, $11, $12)
			RETURNING id`,
			q.DocNumber, q.CustomerID, q.BranchID, q.QuoteDate, q.ValidUntil, string(q.Status), q.Currency,
			q.Subtotal, q.TaxAmount, q.TotalAmount, q.Notes, q.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, id, q.Lines)
	})
	return id, err
}

func (r *repository) UpdateDraft(ctx context.Context, q *Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET customer_id=$2, branch_id=$3, quote_date=$4, valid_until=$5, currency=$6,
				subtotal=$7, tax_amount=$8, total_amount=$9, notes=$10, updated_at=NOW()
			WHERE id=$1 AND status = ANY($11)`,
			q.ID, q.CustomerID, q.BranchID, q.QuoteDate, q.ValidUntil, q.Currency,
			q.Subtotal, q.TaxAmount, q.TotalAmount, q.Notes,
			[]string{string(QuotationStatusDraft), string(QuotationStatusRevised)})
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ConcurrentModification("quotation %d is no longer editable", q.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id=$1`, q.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, q.ID, q.Lines)
	})
}

func insertLines(ctx context.Context, tx pgx.Tx, quotationID int64, lines []QuotationLine) error {
	for i, l := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotation_lines (quotation_id, product_id, description, quantity, uom, unit_price, tax_percent, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			quotationID, l.ProductID, l.Description, l.Quantity, l.UOM, l.UnitPrice, l.TaxPercent, l.TaxAmount, l.LineTotal, i+1)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	q, err := scanQuotation(t.tx.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	q.Lines, err = loadLines(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateStatus flips the status and bumps transition_seq in one statement,
// conditional on the row still holding u.From. Returns false when the guard
// did not match, meaning another transition won the race.
func (t *txRepository) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	sets := []string{"status = $2", "transition_seq = transition_seq + 1", "updated_at = NOW()"}
	args := []any{u.ID, string(u.To)}
	if u.IncrementRevision {
		sets = append(sets, "revision_version = revision_version + 1")
	}

	keys := make([]string, 0, len(u.Set))
	for k := range u.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, u.Set[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)))
	}

	args = append(args, string(u.From))
	query := fmt.Sprintf(`UPDATE quotations SET %s WHERE id = $1 AND status = $%d`,
		strings.Join(sets, ", "), len(args))

	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND is_active)`, productID).Scan(&ok)
	return ok, err
}

// NextNumber allocates the next document number for the month, e.g.
// QT-2602-0007 for February 2026.
func (t *txRepository) NextNumber(ctx context.Context, docType string, at time.Time) (string, error) {
	period := at.Format("0601")
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, docType, period).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", docType, err)
	}
	return fmt.Sprintf("%s-%s-%04d", docType, period, seq), nil
}

func (t *txRepository) InsertInvoice(ctx context.Context, inv *invoices.Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (number, quotation_id, customer_id, currency, invoice_date, due_date, subtotal, tax_amount, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		inv.Number, inv.QuotationID, inv.CustomerID, inv.Currency, inv.InvoiceDate, inv.DueDate,
		inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.CreatedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, l := range inv.Lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, product_id, qty, uom, unit_price, tax_percent, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, l.ProductID, l.Qty, l.UOM, l.UnitPrice, l.TaxPercent, l.LineTotal)
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}
