package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Count  *int   `json:"count,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		sessions := d.Registry.Count()
		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
			"redis": checkRedis(ctx, d),
			"sessions": {
				OK:    true,
				Mode:  "in-process",
				Count: &sessions,
			},
			"login": {
				OK:   true,
				Mode: enabled(d.Google != nil),
			},
			"bearer": {
				OK:   true,
				Mode: enabled(d.Tokens != nil),
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func overallStatus(components map[string]componentStatus) string {
	// No store = no bookmarks at all
	if store, ok := components["store"]; ok && !store.OK {
		return "critical"
	}

	// Redis down = browser sessions and login broken, bearer clients still served
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded"
	}

	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Mode: d.StoreDriver, Error: "not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StoreDriver, Impact: "bookmarks-unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreDriver}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Sessions == nil {
		return componentStatus{OK: false, Impact: "browser-sessions-disabled", Error: "client not initialized"}
	}
	if err := d.Sessions.Ping(ctx); err != nil {
		return componentStatus{OK: false, Impact: "browser-sessions-disabled", Error: "timeout"}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
