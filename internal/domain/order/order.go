package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/payment-intake/internal/domain/product"
)

// ErrDuplicateID is returned by Repository.Create when the key is taken.
// Orders are never overwritten.
var ErrDuplicateID = errors.New("order id already exists")

// Order is the immutable record of a purchase attempt.
type Order struct {
	ID            int64
	Price         int64
	ProductID     string
	AmountBought  int64
	Status        product.Status
	BoughtAt      time.Time
	UserID        string
	PaymentIntent string
}

// Key renders the order id the way clients see it.
func (o *Order) Key() string {
	return FormatID(o.ID)
}

// FormatID renders an order id as a decimal string.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts a new order. It returns ErrDuplicateID if the key exists.
	Create(ctx context.Context, o *Order) error
	// MaxID returns the largest stored order id, or 0 when there are none.
	MaxID(ctx context.Context) (int64, error)
}

// IDAllocator hands out order keys. NextID must be indivisible: concurrent
// callers never receive the same value.
type IDAllocator interface {
	NextID(ctx context.Context) (int64, error)
}
