package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, int, error)
	Create(ctx context.Context, product Product) (Product, error)
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, category, machine_type, model, serial_number, uom, part_number, batch_number, price, cost, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO products (code, name, category, machine_type, model, serial_number, uom, part_number, batch_number, price, cost, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		RETURNING `+productColumns,
		p.Code, p.Name, p.Category, p.MachineType, p.Model, p.SerialNo, p.UOM, p.PartNumber, p.BatchNumber, p.Price, p.Cost)
	return scanProduct(row)
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.MachineType, &p.Model, &p.SerialNo,
		&p.UOM, &p.PartNumber, &p.BatchNumber, &p.Price, &p.Cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
