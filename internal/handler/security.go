package handler

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/payment-intake/internal/domain/auth"
)

// SecurityHandler authenticates requests carrying an
// "Authorization: Bearer <token>" header.
type SecurityHandler struct {
	verifier auth.Verifier
	timeout  time.Duration
}

// NewSecurityHandler creates a SecurityHandler. A positive timeout bounds each
// verification call.
func NewSecurityHandler(verifier auth.Verifier, timeout time.Duration) *SecurityHandler {
	return &SecurityHandler{
		verifier: verifier,
		timeout:  timeout,
	}
}

// HandleBearer verifies the token in header and stores the resolved identity
// in the returned context. Every failure is auth.ErrUnauthenticated.
func (s *SecurityHandler) HandleBearer(ctx context.Context, header string) (context.Context, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ctx, auth.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx, auth.ErrUnauthenticated
	}

	vctx, cancel := callTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.verifier.Verify(vctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return ctx, err
		}
		return ctx, errors.Wrap(auth.ErrUnauthenticated, err.Error())
	}
	if id == nil || id.Subject == "" {
		return ctx, auth.ErrUnauthenticated
	}
	return auth.WithIdentity(ctx, id), nil
}
