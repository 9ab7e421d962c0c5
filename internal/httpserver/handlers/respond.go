package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// controllerFrom returns the request's controller. Routes without the
// session middleware are a wiring bug.
func controllerFrom(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	info, ok := mw.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "no session")
		return nil, false
	}
	return info.Controller, true
}

// writeResult answers a controller command with the resulting state.
//
//	nil                 200 state
//	ErrUnauthenticated  401
//	ErrNotFound         404
//	DuplicateError      409 state (message + highlight)
//	TransportError      502 state (message)
func writeResult(w http.ResponseWriter, d deps.Deps, c *session.Controller, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, c.Snapshot())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "sign in required")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "bookmark not found")
	case errors.As(err, new(*domain.DuplicateError)):
		writeJSON(w, http.StatusConflict, c.Snapshot())
	case domain.IsTransport(err):
		writeJSON(w, http.StatusBadGateway, c.Snapshot())
	default:
		d.Logger.Error("unexpected command error", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
