package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxRepository exposes the transactional ledger writes. The imports
// verification coordinator drives these on its own transaction so products,
// movements and the status flip commit together.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
}

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewTxRepository wraps an open transaction (or the pool) with ledger writes.
func NewTxRepository(q dbtx) TxRepository {
	return &txRepo{db: q}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{db: tx})
	})
}

// ListMovements returns ledger entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.WarehouseID != 0 {
		conditions = append(conditions, fmt.Sprintf("dst_warehouse_id = $%d", argPos))
		args = append(args, filter.WarehouseID)
		argPos++
	}
	if filter.ProductID != 0 {
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", argPos))
		args = append(args, filter.ProductID)
		argPos++
	}
	if filter.RefModule != "" {
		conditions = append(conditions, fmt.Sprintf("ref_module = $%d", argPos))
		args = append(args, filter.RefModule)
		argPos++
	}
	if filter.RefID != "" {
		conditions = append(conditions, fmt.Sprintf("ref_id = $%d", argPos))
		args = append(args, filter.RefID)
		argPos++
	}

	query := `SELECT id, code, movement_type, product_id, qty, unit_cost, src_warehouse_id, dst_warehouse_id, ref_module, ref_id, note, posted_at, created_by FROM stock_movements`
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" ORDER BY posted_at DESC, id DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var mtype string
		if err := rows.Scan(&m.ID, &m.Code, &mtype, &m.ProductID, &m.Qty, &m.UnitCost,
			&m.SrcWarehouseID, &m.DstWarehouseID, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt, &m.CreatedBy); err != nil {
			return nil, err
		}
		m.Type = MovementType(mtype)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepo struct {
	db dbtx
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO stock_movements (code, movement_type, product_id, qty, unit_cost, src_warehouse_id, dst_warehouse_id, ref_module, ref_id, note, posted_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), $12)
		RETURNING id`,
		m.Code, string(m.Type), m.ProductID, m.Qty, m.UnitCost, m.SrcWarehouseID, m.DstWarehouseID,
		m.RefModule, m.RefID, m.Note, m.PostedAt, m.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) GetBalanceForUpdate(ctx context.Context, warehouseID, productID int64) (Balance, error) {
	var bal Balance
	err := r.db.QueryRow(ctx, `
		SELECT warehouse_id, product_id, qty, avg_cost, updated_at
		FROM stock_balances
		WHERE warehouse_id = $1 AND product_id = $2
		FOR UPDATE`, warehouseID, productID).Scan(&bal.WarehouseID, &bal.ProductID, &bal.Qty, &bal.AvgCost, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{WarehouseID: warehouseID, ProductID: productID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (r *txRepo) UpsertBalance(ctx context.Context, bal Balance) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO stock_balances (warehouse_id, product_id, qty, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, avg_cost = EXCLUDED.avg_cost, updated_at = NOW()`,
		bal.WarehouseID, bal.ProductID, bal.Qty, bal.AvgCost)
	return err
}
