package order

import (
	"math"

	"github.com/shopspring/decimal"
)

// Total returns price × quantity. Products that do not fit into int64 or
// exceed limit are rejected as invalid input. A non-positive limit means
// math.MaxInt64.
func Total(price, quantity, limit int64) (int64, error) {
	if limit <= 0 {
		limit = math.MaxInt64
	}
	total := decimal.NewFromInt(price).Mul(decimal.NewFromInt(quantity))
	if total.GreaterThan(decimal.NewFromInt(limit)) {
		return 0, &InvalidInputError{
			Field:  "amountbought",
			Reason: "total amount exceeds the maximum allowed per payment",
		}
	}
	return total.IntPart(), nil
}
