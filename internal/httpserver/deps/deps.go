package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/session"
)

// SessionStore is the Redis session store as seen by handlers.
type SessionStore interface {
	session.SessionStore
	SaveOAuthState(ctx context.Context, state, sessionID string) error
	ConsumeOAuthState(ctx context.Context, state string) (string, error)
	Ping(ctx context.Context) error
}

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Identity runs the OAuth login flow.
type Identity interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.Principal, error)
}

// TokenVerifier resolves bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*domain.Principal, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access readyz/infra endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst    int              // mutating requests allowed in a burst per client IP
	RatePerMin   int              // refill rate per client IP

	CookieName        string
	CookieSecure      bool
	SessionTTL        time.Duration // cookie lifetime
	PostLoginRedirect string

	Registry    *session.Registry // one controller per session
	Sessions    SessionStore      // Redis sessions and OAuth state
	Store       Pinger            // bookmark store
	StoreDriver string            // "postgres" | "memory"
	Google      Identity          // nil when login is disabled
	Tokens      TokenVerifier     // nil when bearer tokens are disabled
}
