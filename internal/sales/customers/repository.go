package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mitra-erp/mitra-erp/internal/shared"
)

// ErrAlreadyExists indicates a duplicate customer code.
var ErrAlreadyExists = errors.New("customer already exists")

type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByCode(ctx context.Context, code string) (*Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)
	Create(ctx context.Context, customer Customer) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, code, name, email, phone, contact_person, address_line1, address_line2, city, country, is_active, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	return r.fetch(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Customer, error) {
	return r.fetch(ctx, `SELECT `+customerColumns+` FROM customers WHERE code = $1`, code)
}

func (r *repository) fetch(ctx context.Context, query string, arg any) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.ContactPerson,
		&c.AddressLine1, &c.AddressLine2, &c.City, &c.Country,
		&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE is_active ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.ContactPerson,
			&c.AddressLine1, &c.AddressLine2, &c.City, &c.Country,
			&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name, email, phone, contact_person, address_line1, address_line2, city, country, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		RETURNING id`,
		c.Code, c.Name, c.Email, c.Phone, c.ContactPerson, c.AddressLine1, c.AddressLine2, c.City, c.Country, c.CreatedBy).Scan(&id)
	return id, err
}
