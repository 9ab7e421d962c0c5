// Package session binds a session's principal to its bookmark state.
package session

import (
	"context"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Listener receives the new principal of a session, nil when signed out.
type Listener func(p *domain.Principal)

// Provider supplies the principal of one session and reports changes.
type Provider interface {
	// Current returns the signed-in principal, nil when signed out.
	Current(ctx context.Context) (*domain.Principal, error)
	// Subscribe registers fn for principal changes until unsubscribe is called.
	Subscribe(ctx context.Context, fn Listener) (unsubscribe func(), err error)
	// SignIn completes a login resolved by an identity adapter.
	SignIn(ctx context.Context, p *domain.Principal) error
	// SignOut clears the session.
	SignOut(ctx context.Context) error
}
