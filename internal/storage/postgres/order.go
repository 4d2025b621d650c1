package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/payment-intake/internal/domain/order"
	"github.com/xenking/payment-intake/internal/domain/product"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, price, product_id, amount_bought, status, bought_at, user_id, payment_intent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderByIDSQL = `SELECT id, price, product_id, amount_bought, status, bought_at, user_id, payment_intent
		FROM orders WHERE id = $1`

	lastOrderIDSQL = `SELECT id FROM orders ORDER BY id DESC LIMIT 1`

	// The counter is floored to the stored maximum so ids handed out by
	// another allocator are never reissued.
	nextOrderIDSQL = `UPDATE order_sequence
		SET last_id = GREATEST(last_id, (SELECT COALESCE(MAX(id), 0) FROM orders)) + 1
		WHERE name = 'orders' RETURNING last_id`

	// uniqueViolation is the SQLSTATE for duplicate keys.
	uniqueViolation = "23505"
)

var (
	_ order.Repository  = (*OrderRepository)(nil)
	_ order.IDAllocator = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.IDAllocator backed
// by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. An existing id is reported as
// order.ErrDuplicateID and left untouched.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Price, o.ProductID, o.AmountBought, string(o.Status),
		o.BoughtAt, o.UserID, o.PaymentIntent,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.Wrapf(order.ErrDuplicateID, "creating order %d", o.ID)
		}
		return errors.Wrapf(err, "creating order %d", o.ID)
	}
	return nil
}

// GetByID loads a stored order. It returns pgx.ErrNoRows wrapped when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.pool.QueryRow(ctx, getOrderByIDSQL, id).Scan(
		&o.ID, &o.Price, &o.ProductID, &o.AmountBought, &status,
		&o.BoughtAt, &o.UserID, &o.PaymentIntent,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %d", id)
	}
	o.Status = product.Status(status)
	return &o, nil
}

// MaxID returns the id of the most recent order, or 0 when there are none.
func (r *OrderRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, lastOrderIDSQL).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "reading last order id")
	}
	return id, nil
}

// NextID atomically increments the order counter row and returns the new
// value, never below MaxID+1. The row lock serialises concurrent callers.
func (r *OrderRepository) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, nextOrderIDSQL).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.New("order sequence row is missing: run migrations")
		}
		return 0, errors.Wrap(err, "allocating order id")
	}
	return id, nil
}
