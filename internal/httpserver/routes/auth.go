package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(rateLimit(d))
		r.Use(mw.Session(d))

		r.Get("/login", handlers.Login(d))
		r.Get("/callback", handlers.Callback(d))
		r.Post("/logout", handlers.Logout(d))
	})
}
