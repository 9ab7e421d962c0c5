package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/session"
)

// TokenKeyPrefix prefixes registry keys of bearer-token clients.
const TokenKeyPrefix = "token:"

// SessionInfo describes the session a request belongs to.
type SessionInfo struct {
	Key        string // registry key
	CookieID   string // browser session id, empty for bearer clients
	Controller *session.Controller
}

// Bearer reports whether the request authenticated with a bearer token.
func (s SessionInfo) Bearer() bool { return s.CookieID == "" }

type sessionKey struct{}

// SessionFrom returns the session resolved by Session.
func SessionFrom(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(sessionKey{}).(SessionInfo)
	return info, ok
}

// Session resolves the controller of a request. A bearer token selects the
// token principal's controller; otherwise the session cookie does, and a
// new cookie is issued on first visit. Signed-out browser sessions get a
// detached controller that is not kept between requests.
func Session(d deps.Deps) func(http.Handler) http.Handler {
	return sessionResolver(d, d.Registry.Resolve)
}

// LiveSession is Session for long-lived streams: signed-out browser
// sessions are bound too, so a later sign-in reaches the stream.
func LiveSession(d deps.Deps) func(http.Handler) http.Handler {
	return sessionResolver(d, d.Registry.Get)
}

type controllerSource func(ctx context.Context, key string, newProvider func() session.Provider) (*session.Controller, error)

func sessionResolver(d deps.Deps, cookieSource controllerSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var info SessionInfo
			if raw, ok := bearerToken(r); ok {
				if d.Tokens == nil {
					writeError(w, http.StatusUnauthorized, "bearer tokens are not enabled")
					return
				}
				p, err := d.Tokens.Verify(raw)
				if err != nil {
					d.Logger.Debug("bearer token rejected", logger.Error(err))
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				info.Key = TokenKeyPrefix + p.ID
				info.Controller, err = d.Registry.Get(ctx, info.Key, func() session.Provider {
					return session.NewLocal(p)
				})
				if err != nil {
					d.Logger.Error("failed to bind token session", logger.Error(err))
					writeError(w, http.StatusBadGateway, "session unavailable")
					return
				}
			} else {
				info.CookieID = sessionCookie(w, r, d)
				info.Key = info.CookieID
				var err error
				info.Controller, err = cookieSource(ctx, info.Key, func() session.Provider {
					return session.NewRedisProvider(d.Sessions, info.CookieID, d.Logger)
				})
				if err != nil {
					d.Logger.Error("failed to bind browser session", logger.Error(err))
					writeError(w, http.StatusBadGateway, "session unavailable")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey{}, info)))
		})
	}
}

// sessionCookie returns the browser session id, issuing a cookie when the
// request has none or a malformed one.
func sessionCookie(w http.ResponseWriter, r *http.Request, d deps.Deps) string {
	if c, err := r.Cookie(d.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     d.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(d.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
