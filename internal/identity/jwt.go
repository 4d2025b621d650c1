// Package identity verifies bearer tokens and resolves the calling user.
package identity

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/payment-intake/internal/domain/auth"
)

// Config selects the key material and the claims every token must carry.
// At least one of HMACSecret and PublicKeyPEM must be set.
type Config struct {
	// HMACSecret enables HS256 tokens.
	HMACSecret []byte
	// PublicKeyPEM enables RS256 tokens signed by the matching private key.
	PublicKeyPEM []byte
	// Issuer, when set, must equal the "iss" claim.
	Issuer string
	// Audience, when set, must be present in the "aud" claim.
	Audience string
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

var _ auth.Verifier = (*JWTVerifier)(nil)

// JWTVerifier implements auth.Verifier for signed JWTs.
type JWTVerifier struct {
	parser *jwt.Parser
	secret []byte
	public any
}

// NewJWTVerifier builds a verifier from cfg.
func NewJWTVerifier(cfg Config) (*JWTVerifier, error) {
	v := &JWTVerifier{secret: cfg.HMACSecret}

	var methods []string
	if len(cfg.HMACSecret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if len(cfg.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, errors.Wrap(err, "parse public key")
		}
		v.public = key
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(methods) == 0 {
		return nil, errors.New("no verification key configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// Verify checks the signature and registered claims of token and returns the
// subject. Every failure wraps auth.ErrUnauthenticated.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	var claims jwt.RegisteredClaims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.key); err != nil {
		return nil, errors.Errorf("%w: %s", auth.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, errors.Errorf("%w: token has no subject", auth.ErrUnauthenticated)
	}
	return &auth.Identity{Subject: claims.Subject}, nil
}

func (v *JWTVerifier) key(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		return v.public, nil
	default:
		return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
	}
}
