package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Refresh reloads the session's collection from the store, picking up
// writes made from another device.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := controllerFrom(w, r)
		if !ok {
			return
		}

		err := c.Refresh(r.Context())
		if err == nil {
			d.Logger.Debug("manual refresh",
				logger.String("remote_ip", r.RemoteAddr),
				logger.Int("bookmarks", len(c.Snapshot().Bookmarks)))
		}
		writeResult(w, d, c, err)
	}
}
