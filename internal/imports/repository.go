package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/inventory"
	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/platform/db"
	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// ListFilter narrows List results.
type ListFilter struct {
	Status ImportStatus
	Limit  int
	Offset int
}

type Repository interface {
	Get(ctx context.Context, id int64) (*Import, error)
	List(ctx context.Context, filter ListFilter) ([]Import, int, error)
	Create(ctx context.Context, imp *Import) (int64, error)
	DeletePending(ctx context.Context, id int64) (bool, error)
	DeleteVerified(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the verification write surface. It embeds the stock ledger
// writes so product creation, inbound movements and the status flip all
// commit in one transaction.
type TxRepository interface {
	inventory.TxRepository
	GetForUpdate(ctx context.Context, id int64) (*Import, error)
	ProductExists(ctx context.Context, id int64) (bool, error)
	CreateProduct(ctx context.Context, p products.Product) (int64, error)
	SetItemProduct(ctx context.Context, itemID, productID int64) error
	MarkVerified(ctx context.Context, id, actorID int64) (bool, error)
	NextNumber(ctx context.Context, docType string, at time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const importColumns = `id, doc_number, supplier_name, container_no, warehouse_id, import_date, exchange_rate,
status, total_rmb, total_idr, notes, created_by, verified_by, verified_at, created_at, updated_at`

func scanImport(row pgx.Row) (*Import, error) {
	var imp Import
	err := row.Scan(
		&imp.ID, &imp.DocNumber, &imp.SupplierName, &imp.ContainerNo, &imp.WarehouseID, &imp.ImportDate, &imp.ExchangeRate,
		&imp.Status, &imp.TotalRMB, &imp.TotalIDR, &imp.Notes, &imp.CreatedBy, &imp.VerifiedBy, &imp.VerifiedAt,
		&imp.CreatedAt, &imp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &imp, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadItems(ctx context.Context, q querier, importID int64) ([]ImportItem, error) {
	rows, err := q.Query(ctx, `SELECT id, import_id, category, name, machine_type, model, serial_number, uom,
part_number, batch_number, quantity, unit_cost_rmb, unit_cost_idr, product_id, line_order
FROM import_items WHERE import_id = $1 ORDER BY line_order`, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ImportItem
	for rows.Next() {
		var it ImportItem
		var category string
		if err := rows.Scan(&it.ID, &it.ImportID, &category, &it.Name, &it.MachineType, &it.Model, &it.SerialNo,
			&it.UOM, &it.PartNumber, &it.BatchNumber, &it.Quantity, &it.UnitCostRMB, &it.UnitCostIDR,
			&it.ProductID, &it.LineOrder); err != nil {
			return nil, err
		}
		it.Category = products.Category(category)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Import, error) {
	imp, err := scanImport(r.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM imports WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	imp.Items, err = loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return imp, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Import, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM imports WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM imports WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		importColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *imp)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, imp *Import) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		txr := &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx}
		number, err := txr.NextNumber(ctx, "IMP", imp.ImportDate)
		if err != nil {
			return err
		}
		imp.DocNumber = number
		err = tx.QueryRow(ctx, `
			INSERT INTO imports (doc_number, supplier_name, container_no, warehouse_id, import_date, exchange_rate,
				status, total_rmb, total_idr, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			imp.DocNumber, imp.SupplierName, imp.ContainerNo, imp.WarehouseID, imp.ImportDate, imp.ExchangeRate,
			string(imp.Status), imp.TotalRMB, imp.TotalIDR, imp.Notes, imp.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		for i, it := range imp.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO import_items (import_id, category, name, machine_type, model, serial_number, uom,
					part_number, batch_number, quantity, unit_cost_rmb, unit_cost_idr, product_id, line_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				id, string(it.Category), it.Name, it.MachineType, it.Model, it.SerialNo, it.UOM,
				it.PartNumber, it.BatchNumber, it.Quantity, it.UnitCostRMB, it.UnitCostIDR, it.ProductID, i+1)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// DeletePending removes an import only while it is still pending. Returns
// false when the row exists but the status guard did not match.
func (r *repository) DeletePending(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM import_items WHERE import_id = $1
			AND EXISTS (SELECT 1 FROM imports WHERE id = $1 AND status = $2)`, id, string(ImportStatusPending)); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM imports WHERE id = $1 AND status = $2`, id, string(ImportStatusPending))
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() == 1
		return nil
	})
	return deleted, err
}

// DeleteVerified removes a verified import record. Materialised products and
// stock movements are intentionally left in place; the ledger keeps its
// provenance reference.
func (r *repository) DeleteVerified(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM import_items WHERE import_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM imports WHERE id = $1`, id)
		return err
	})
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Import, error) {
	imp, err := scanImport(t.tx.QueryRow(ctx, `SELECT `+importColumns+` FROM imports WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	imp.Items, err = loadItems(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	return imp, nil
}

func (t *txRepository) ProductExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepository) CreateProduct(ctx context.Context, p products.Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products (code, name, category, machine_type, model, serial_number, uom, part_number, batch_number, price, cost, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		RETURNING id`,
		p.Code, p.Name, string(p.Category), p.MachineType, p.Model, p.SerialNo, p.UOM,
		p.PartNumber, p.BatchNumber, p.Price, p.Cost).Scan(&id)
	return id, err
}

func (t *txRepository) SetItemProduct(ctx context.Context, itemID, productID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE import_items SET product_id = $2 WHERE id = $1`, itemID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkVerified flips the status conditionally on it still being pending,
// which makes double verification impossible even under races.
func (t *txRepository) MarkVerified(ctx context.Context, id, actorID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE imports SET status = $2, verified_by = $3, verified_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, string(ImportStatusVerified), actorID, string(ImportStatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

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
