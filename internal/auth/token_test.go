package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const secret = "test-secret-with-enough-bytes-0123456789"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestIssueThenVerify(t *testing.T) {
	v := NewTokenVerifier(secret, "marks")

	raw, err := v.Issue(&domain.Principal{ID: "u1", Email: "u1@example.com", Name: "U One"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, &domain.Principal{ID: "u1", Email: "u1@example.com", Name: "U One", Provider: ProviderToken}, p)
}

func TestVerifyRejects(t *testing.T) {
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	valid := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "marks", ExpiresAt: exp}}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("another-secret"), valid)
			},
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS512, []byte(secret), valid)
			},
		},
		{
			name: "none algorithm",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)
			},
		},
		{
			name: "missing sub",
			token: func(t *testing.T) string {
				c := valid
				c.Subject = ""
				return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				c := valid
				c.Issuer = "someone-else"
				return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				c := valid
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
			},
		},
		{
			name: "no expiry",
			token: func(t *testing.T) string {
				c := valid
				c.ExpiresAt = nil
				return sign(t, jwt.SigningMethodHS256, []byte(secret), c)
			},
		},
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not.a.token" },
		},
	}

	v := NewTokenVerifier(secret, "marks")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Verify(tt.token(t))
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, p)
		})
	}
}

func TestVerifyWithoutIssuer(t *testing.T) {
	v := NewTokenVerifier(secret, "")
	raw := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		Email: "u@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u2",
			Issuer:    "anything",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})

	p, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u2", p.ID)
	assert.Equal(t, "u@example.com", p.Email)
}
