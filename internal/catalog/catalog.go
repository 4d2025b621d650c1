// Package catalog loads product catalogs from JSON and writes them to a store.
package catalog

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/payment-intake/internal/domain/product"
)

// minorUnitExp converts major units to cents.
const minorUnitExp = 2

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Parse decodes a JSON array of {"id","name","price","status"} entries.
// Price is in major units, as a string ("6.50") or a number (6.5), and is
// converted to minor units.
func Parse(data []byte) ([]product.Product, error) {
	var out []product.Product

	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		var (
			p     product.Product
			price decimal.Decimal
			seen  bool
		)
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "status":
				var s string
				s, err = d.Str()
				p.Status = product.Status(s)
			case "price":
				price, err = decodePrice(d)
				seen = err == nil
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "entry %d", len(out))
		}
		if !seen {
			return errors.Errorf("entry %d (%s): price is required", len(out), p.ID)
		}

		minor := price.Shift(minorUnitExp)
		if !minor.Equal(minor.Truncate(0)) {
			return errors.Errorf("product %s: price %s has more than %d decimals", p.ID, price, minorUnitExp)
		}
		if minor.GreaterThan(maxMinor) {
			return errors.Errorf("product %s: price %s overflows int64 cents", p.ID, price)
		}
		p.Price = minor.IntPart()
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}

		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return out, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Decimal{}, errors.New("price must be a string or a number")
	}
}

// Seed upserts products into w with at most workers concurrent writes.
func Seed(ctx context.Context, w product.Writer, products []product.Product, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range products {
		g.Go(func() error {
			if err := w.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert %s", p.ID)
			}
			return nil
		})
	}
	return g.Wait()
}
