package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

const pingTimeout = 2 * time.Second

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready only when Redis and the bookmark store answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := d.Sessions.Ping(ctx); err != nil {
			d.Logger.Warn("readyz: redis ping failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "redis unavailable"})
			return
		}
		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.Warn("readyz: store ping failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "store unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
