package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/payment-intake/internal/domain/auth"
	"github.com/xenking/payment-intake/internal/domain/order"
)

// CreatePaymentIntentRoute is the only business route of the service.
const CreatePaymentIntentRoute = "/create-payment-intent"

const defaultMaxBodyBytes = 1 << 20

// OrderCreator runs the order intake pipeline.
type OrderCreator interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes limits the request body. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the payment intent endpoint, delegating business logic to
// the order service and authentication to the SecurityHandler.
type Handler struct {
	orders   OrderCreator
	security *SecurityHandler
	maxBody  int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, orders OrderCreator, security *SecurityHandler) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		orders:   orders,
		security: security,
		maxBody:  cfg.MaxBodyBytes,
	}
}

// Register mounts the handler routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(CreatePaymentIntentRoute, h.CreatePaymentIntent)
}

// CreatePaymentIntent authenticates the caller, decodes the purchase request
// and answers with the client secret and order id of the new order.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, err := h.security.HandleBearer(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	id, _ := auth.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.fail(ctx, w, &order.InvalidInputError{Reason: "invalid request body"})
		return
	}

	req, err := decodeCreatePaymentIntent(body)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	res, err := h.orders.Create(ctx, order.CreateRequest{
		ProductID:    req.ProductID,
		AmountBought: req.AmountBought,
		UserID:       id.Subject,
	})
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeCreatePaymentIntent(createPaymentIntentRes{
		ClientSecret: res.ClientSecret,
		OrderID:      res.Order.Key(),
	}))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	lg := zctx.From(ctx)
	if status >= http.StatusInternalServerError {
		lg.Error("Create payment intent failed", zap.Error(err))
	} else {
		lg.Debug("Create payment intent rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, msg)
}

// callTimeout bounds ctx by d when d is positive.
func callTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
