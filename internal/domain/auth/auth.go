package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned when a credential is missing, malformed, or
// rejected by the verifier.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the caller resolved from a verified credential.
type Identity struct {
	// Subject is the stable user identifier (JWT "sub" claim).
	Subject string
}

// Verifier checks a bearer credential and resolves the caller behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext extracts the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil && id.Subject != ""
}
