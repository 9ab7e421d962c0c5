package domain

import "context"

// Principal is an authenticated identity, opaque beyond an ID and a few
// display attributes.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"` // "google" | "token"
}

// SamePrincipal reports whether a and b designate the same identity.
// Two nil principals are the same (signed out).
func SamePrincipal(a, b *Principal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

type principalKey struct{}

// WithPrincipal returns a context carrying p. Stores read it to apply their
// access policy.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
