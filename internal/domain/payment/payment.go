package payment

import "context"

// AuthorizationRequest describes a reservation of funds with the provider.
type AuthorizationRequest struct {
	// Amount in the smallest currency unit.
	Amount   int64
	Currency string
	Metadata map[string]string
}

// Authorization is the provider's handle for a created authorization.
type Authorization struct {
	// ID is the provider-side reference (e.g. "pi_...").
	ID string
	// ClientSecret is handed to the client to confirm the payment.
	ClientSecret string
}

// Provider creates payment authorizations. Implementations must not retry.
type Provider interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
}
