package product

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status is the availability state of a catalog item.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusUnavailable  Status = "unavailable"
	StatusDiscontinued Status = "discontinued"
)

// Valid reports whether s is one of the recognised statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusDiscontinued:
		return true
	}
	return false
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID   string
	Name string
	// Price is the unit price in the smallest currency unit (cents).
	Price  int64
	Status Status
}

// Validate checks the catalog invariants: positive price, known status.
func (p Product) Validate() error {
	if p.ID == "" {
		return errors.New("product id is empty")
	}
	if p.Price <= 0 {
		return errors.Errorf("product %s: price must be positive, got %d", p.ID, p.Price)
	}
	if !p.Status.Valid() {
		return errors.Errorf("product %s: unknown status %q", p.ID, p.Status)
	}
	return nil
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}

// Writer is implemented by stores that accept catalog upserts (seeding).
type Writer interface {
	Upsert(ctx context.Context, p Product) error
}
