package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/payment-intake/internal/domain/auth"
)

var testSecret = []byte("test-secret")

func signHS256(t *testing.T, secret []byte, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "https://issuer.test",
		Audience:  jwt.ClaimStrings{"intake"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestNewJWTVerifier_RequiresKey(t *testing.T) {
	_, err := NewJWTVerifier(Config{})
	require.Error(t, err)

	_, err = NewJWTVerifier(Config{PublicKeyPEM: []byte("not a key")})
	require.Error(t, err)
}

func TestJWTVerifier_HS256(t *testing.T) {
	v, err := NewJWTVerifier(Config{
		HMACSecret: testSecret,
		Issuer:     "https://issuer.test",
		Audience:   "intake",
	})
	require.NoError(t, err)

	expired := validClaims("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExp := validClaims("u1")
	noExp.ExpiresAt = nil

	wrongIssuer := validClaims("u1")
	wrongIssuer.Issuer = "https://evil.test"

	wrongAudience := validClaims("u1")
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	tests := []struct {
		name    string
		token   string
		wantSub string
	}{
		{name: "valid", token: signHS256(t, testSecret, validClaims("u1")), wantSub: "u1"},
		{name: "wrong secret", token: signHS256(t, []byte("other"), validClaims("u1"))},
		{name: "expired", token: signHS256(t, testSecret, expired)},
		{name: "missing exp", token: signHS256(t, testSecret, noExp)},
		{name: "wrong issuer", token: signHS256(t, testSecret, wrongIssuer)},
		{name: "wrong audience", token: signHS256(t, testSecret, wrongAudience)},
		{name: "no subject", token: signHS256(t, testSecret, validClaims(""))},
		{name: "garbage", token: "not.a.jwt"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token)
			if tt.wantSub == "" {
				require.ErrorIs(t, err, auth.ErrUnauthenticated)
				assert.Nil(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, id.Subject)
		})
	}
}

func TestJWTVerifier_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewJWTVerifier(Config{PublicKeyPEM: pubPEM})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("firebase-uid")).SignedString(key)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid", id.Subject)

	// HS256 is not accepted when only an RSA key is configured.
	_, err = v.Verify(context.Background(), signHS256(t, pubPEM, validClaims("u1")))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}
