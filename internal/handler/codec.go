package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/payment-intake/internal/domain/auth"
	"github.com/xenking/payment-intake/internal/domain/order"
	"github.com/xenking/payment-intake/internal/domain/product"
)

type createPaymentIntentReq struct {
	ProductID    string
	AmountBought int64
}

type createPaymentIntentRes struct {
	ClientSecret string
	OrderID      string
}

var errInvalidBody = &order.InvalidInputError{Reason: "invalid request body"}

// decodeCreatePaymentIntent reads {"productid": string, "amountbought": integer}.
// Absent and null fields stay zero; unknown fields are ignored.
func decodeCreatePaymentIntent(data []byte) (createPaymentIntentReq, error) {
	var req createPaymentIntentReq

	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, errInvalidBody
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "productid":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.String:
			default:
				return &order.InvalidInputError{Field: "productid", Reason: "productid must be a string"}
			}
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "productid")
			}
			req.ProductID = s
		case "amountbought":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Number:
			default:
				return &order.InvalidInputError{Field: "amountbought", Reason: "amountbought must be an integer"}
			}
			n, err := d.Num()
			if err != nil {
				return errors.Wrap(err, "amountbought")
			}
			if !n.IsInt() {
				return &order.InvalidInputError{Field: "amountbought", Reason: "amountbought must be an integer"}
			}
			v, err := n.Int64()
			if err != nil {
				return &order.InvalidInputError{Field: "amountbought", Reason: "amountbought is out of range"}
			}
			req.AmountBought = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		var inv *order.InvalidInputError
		if errors.As(err, &inv) {
			return req, inv
		}
		return req, errInvalidBody
	}
	if d.Next() != jx.Invalid {
		return req, errInvalidBody
	}
	return req, nil
}

func encodeCreatePaymentIntent(res createPaymentIntentRes) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("clientSecret")
	e.Str(res.ClientSecret)
	e.FieldStart("orderId")
	e.Str(res.OrderID)
	e.ObjEnd()
	return e.Bytes()
}

func encodeError(msg string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	return e.Bytes()
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, encodeError(msg))
}

// errorStatus maps a pipeline error to its status code and public message.
// Internal details never reach the body.
func errorStatus(err error) (int, string) {
	var invalid *order.InvalidInputError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, order.ErrUnavailable):
		return http.StatusBadRequest, order.ErrUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
