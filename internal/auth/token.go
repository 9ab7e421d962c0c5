package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// ProviderToken tags principals resolved from a bearer token.
const ProviderToken = "token"

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims are the claims read from a bearer token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens, as issued by Supabase-style
// identity services.
type TokenVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewTokenVerifier creates a verifier. An empty issuer skips the iss check.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// Verify returns the principal a token was issued for.
func (v *TokenVerifier) Verify(raw string) (*domain.Principal, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	return &domain.Principal{
		ID:       claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: ProviderToken,
	}, nil
}

// Issue signs a token for p, valid for ttl.
func (v *TokenVerifier) Issue(p *domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: p.Email,
		Name:  p.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
