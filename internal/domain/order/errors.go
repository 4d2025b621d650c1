package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnavailable is returned when the product status is not "available".
var ErrUnavailable = errors.New("product is not available for purchase")

// InvalidInputError describes a rejected request field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Reason
}

// ErrMissingFields mirrors the public message for absent or falsy fields.
// A zero amountbought is reported with it as well.
var ErrMissingFields = &InvalidInputError{
	Reason: "productid and amountbought are required",
}

// PaymentProviderError wraps any failure returned by the payment provider.
type PaymentProviderError struct {
	Err error
}

func (e *PaymentProviderError) Error() string {
	return fmt.Sprintf("payment provider: %v", e.Err)
}

func (e *PaymentProviderError) Unwrap() error {
	return e.Err
}
