package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		// before session resolution, so throttled clients cost nothing
		r.Use(rateLimit(d))

		// long-lived, no request timeout
		r.With(mw.LiveSession(d)).Get("/events", handlers.Events(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.Session(d))
			r.Use(middleware.Timeout(10 * time.Second))

			r.Get("/state", handlers.State(d))
			r.Post("/bookmarks", handlers.AddBookmark(d))
			r.Post("/bookmarks/refresh", handlers.Refresh(d))
			r.Post("/bookmarks/{id}/edit", handlers.StartEdit(d))
			r.Delete("/bookmarks/edit", handlers.CancelEdit(d))
			r.Patch("/bookmarks/{id}", handlers.SaveEdit(d))
			r.Delete("/bookmarks/{id}", handlers.DeleteBookmark(d))
		})
	})
}
