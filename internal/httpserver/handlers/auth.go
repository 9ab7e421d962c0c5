package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
	redisstore "github.com/MrSnakeDoc/marks/internal/store/redis"
)

// Login sends the browser to the identity provider.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Google == nil {
			writeError(w, http.StatusNotFound, "login is not enabled")
			return
		}
		info, ok := mw.SessionFrom(r.Context())
		if !ok || info.Bearer() {
			writeError(w, http.StatusBadRequest, "login requires a browser session")
			return
		}

		state := auth.NewState()
		if err := d.Sessions.SaveOAuthState(r.Context(), state, info.CookieID); err != nil {
			d.Logger.Error("failed to save oauth state", logger.Error(err))
			writeError(w, http.StatusBadGateway, "session unavailable")
			return
		}

		http.Redirect(w, r, d.Google.LoginURL(state), http.StatusFound)
	}
}

// Callback completes the login started by Login on the same browser session.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Google == nil {
			writeError(w, http.StatusNotFound, "login is not enabled")
			return
		}
		info, ok := mw.SessionFrom(r.Context())
		if !ok || info.Bearer() {
			writeError(w, http.StatusBadRequest, "login requires a browser session")
			return
		}

		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			d.Logger.Info("login cancelled by provider", logger.String("error", e))
			writeError(w, http.StatusUnauthorized, "login failed: "+e)
			return
		}

		sessionID, err := d.Sessions.ConsumeOAuthState(r.Context(), q.Get("state"))
		if err != nil {
			if errors.Is(err, redisstore.ErrUnknownState) {
				writeError(w, http.StatusBadRequest, "unknown or expired login attempt")
				return
			}
			d.Logger.Error("failed to consume oauth state", logger.Error(err))
			writeError(w, http.StatusBadGateway, "session unavailable")
			return
		}
		if sessionID != info.CookieID {
			d.Logger.Warn("oauth state issued for another session")
			writeError(w, http.StatusBadRequest, "login attempt belongs to another session")
			return
		}

		p, err := d.Google.Exchange(r.Context(), q.Get("code"))
		if err != nil {
			d.Logger.Warn("oauth exchange failed", logger.Error(err))
			if domain.IsTransport(err) {
				writeError(w, http.StatusBadGateway, "identity provider unavailable")
				return
			}
			writeError(w, http.StatusBadRequest, "login failed")
			return
		}

		if err := info.Controller.SignIn(r.Context(), p); err != nil {
			d.Logger.Error("failed to sign in", logger.Error(err))
			writeError(w, http.StatusBadGateway, "session unavailable")
			return
		}

		d.Logger.Info("signed in",
			logger.String("principal", p.ID),
			logger.String("provider", p.Provider))
		http.Redirect(w, r, d.PostLoginRedirect, http.StatusFound)
	}
}

// Logout signs the session out. Bearer clients also drop their controller.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := mw.SessionFrom(r.Context())
		if !ok {
			writeError(w, http.StatusInternalServerError, "no session")
			return
		}

		if err := info.Controller.SignOut(r.Context()); err != nil {
			d.Logger.Error("failed to sign out", logger.Error(err))
			writeError(w, http.StatusBadGateway, "session unavailable")
			return
		}
		state := info.Controller.Snapshot()
		if info.Bearer() {
			d.Registry.Forget(info.Key)
		}

		writeJSON(w, http.StatusOK, state)
	}
}
