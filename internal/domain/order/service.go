package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/payment-intake/internal/domain/auth"
	"github.com/xenking/payment-intake/internal/domain/payment"
	"github.com/xenking/payment-intake/internal/domain/product"
)

const instrumentationName = "github.com/xenking/payment-intake/internal/domain/order"

// Config holds non-dependency settings of the Service.
type Config struct {
	// Currency is the ISO code sent to the payment provider.
	Currency string
	// MaxAmount caps price × quantity in minor units. Zero disables the cap.
	MaxAmount int64
	// CallTimeout bounds every external call. Zero disables the bound.
	CallTimeout time.Duration
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	ProductID    string
	AmountBought int64
	UserID       string
}

// CreateResult holds the output of a successfully created order.
type CreateResult struct {
	Order        *Order
	ClientSecret string
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for the payment span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meter = mp.Meter(instrumentationName)
	}
}

// Service encapsulates the order intake pipeline.
type Service struct {
	products product.Repository
	payments payment.Provider
	ids      IDAllocator
	orders   Repository
	cfg      Config
	now      func() time.Time

	tracer   trace.Tracer
	meter    metric.Meter
	created  metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	cfg Config,
	products product.Repository,
	payments payment.Provider,
	ids IDAllocator,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	s := &Service{
		products: products,
		payments: payments,
		ids:      ids,
		orders:   orders,
		cfg:      cfg,
		now:      time.Now,
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("intake.orders.created",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.rejected, err = s.meter.Int64Counter("intake.payment.failures",
		metric.WithDescription("Payment authorizations rejected by the provider"),
	); err != nil {
		return nil, errors.Wrap(err, "payment.failures counter")
	}
	return s, nil
}

// call derives a context bounded by the configured call timeout.
func (s *Service) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

// Create validates the request, checks the product, authorizes the payment,
// allocates the next order id and persists the order.
//
// The authorization is not rolled back when allocation or persistence fail.
// Such orphans are logged with the provider reference.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if req.UserID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if req.ProductID == "" || req.AmountBought == 0 {
		return nil, ErrMissingFields
	}
	if req.AmountBought < 0 {
		return nil, &InvalidInputError{
			Field:  "amountbought",
			Reason: "amountbought must be a positive integer",
		}
	}

	p, err := s.getProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if p.Status != product.StatusAvailable {
		return nil, ErrUnavailable
	}

	total, err := Total(p.Price, req.AmountBought, s.cfg.MaxAmount)
	if err != nil {
		return nil, err
	}

	authz, err := s.authorize(ctx, payment.AuthorizationRequest{
		Amount:   total,
		Currency: s.cfg.Currency,
		Metadata: map[string]string{
			"productid":    req.ProductID,
			"userid":       req.UserID,
			"amountbought": strconv.FormatInt(req.AmountBought, 10),
		},
	})
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(
		zap.String("payment_intent", authz.ID),
		zap.String("product_id", req.ProductID),
		zap.String("user_id", req.UserID),
	)

	o := &Order{
		Price:         p.Price,
		ProductID:     req.ProductID,
		AmountBought:  req.AmountBought,
		Status:        p.Status,
		BoughtAt:      s.now().UTC(),
		UserID:        req.UserID,
		PaymentIntent: authz.ID,
	}

	if o.ID, err = s.nextID(ctx); err != nil {
		lg.Error("Payment authorized but no order id allocated", zap.Error(err))
		return nil, errors.Wrap(err, "allocate order id")
	}
	if err := s.persist(ctx, o); err != nil {
		lg.Error("Payment authorized but order not saved",
			zap.String("order_id", o.Key()),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}

	s.created.Add(ctx, 1)
	lg.Info("Order created",
		zap.String("order_id", o.Key()),
		zap.Int64("amount", total),
	)

	return &CreateResult{
		Order:        o,
		ClientSecret: authz.ClientSecret,
	}, nil
}

func (s *Service) getProduct(ctx context.Context, id string) (*product.Product, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return p, nil
}

func (s *Service) authorize(ctx context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	ctx, span := s.tracer.Start(ctx, "payment.CreateAuthorization",
		trace.WithAttributes(
			attribute.Int64("payment.amount", req.Amount),
			attribute.String("payment.currency", req.Currency),
		),
	)
	defer span.End()

	ctx, cancel := s.call(ctx)
	defer cancel()

	authz, err := s.payments.CreateAuthorization(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		s.rejected.Add(ctx, 1)
		return nil, &PaymentProviderError{Err: err}
	}
	return authz, nil
}

func (s *Service) nextID(ctx context.Context) (int64, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()
	return s.ids.NextID(ctx)
}

func (s *Service) persist(ctx context.Context, o *Order) error {
	ctx, cancel := s.call(ctx)
	defer cancel()
	return s.orders.Create(ctx, o)
}
