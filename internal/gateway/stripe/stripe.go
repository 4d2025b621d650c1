// Package stripe creates payment authorizations as Stripe PaymentIntents.
package stripe

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"

	"github.com/xenking/payment-intake/internal/domain/payment"
)

var _ payment.Provider = (*Provider)(nil)

// Config holds the Stripe credentials and transport overrides.
type Config struct {
	SecretKey string
	// BaseURL overrides the API endpoint (stripe-mock, tests).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Provider implements payment.Provider on top of the PaymentIntents API.
type Provider struct {
	intents *paymentintent.Client
}

// New returns a Provider. Network retries are disabled: a failed call is
// reported to the caller as is.
func New(cfg Config) (*Provider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}

	bc := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(cfg.BaseURL)
	}
	if cfg.HTTPClient != nil {
		bc.HTTPClient = cfg.HTTPClient
	}
	if cfg.Logger != nil {
		bc.LeveledLogger = cfg.Logger.Named("stripe").Sugar()
	}

	return &Provider{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, bc),
			Key: cfg.SecretKey,
		},
	}, nil
}

// CreateAuthorization creates a PaymentIntent for req.Amount and returns its
// id and client secret.
func (p *Provider) CreateAuthorization(ctx context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}

	return &payment.Authorization{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}
