package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/payment-intake/internal/domain/product"
)

const (
	getProductByIDSQL = `SELECT id, name, price, status FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, status = EXCLUDED.status`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Writer     = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// Upsert inserts or updates a catalog entry.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, string(p.Status))
	if err != nil {
		return errors.Wrapf(err, "upserting product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &status)
	p.Status = product.Status(status)
	return p, err
}
