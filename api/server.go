/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health           Liveness
  /api/goals/*          Goals, contributions, stats
  /api/achievements/*   Catalog, recent unlocks, points

SECURITY NOTE:
  No authentication middleware. The tracker is single-user and local.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Goal routes
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetGoal)
				r.Delete("/", h.DeleteGoal)
				r.Get("/stats", h.GetStats)
				r.Get("/contributions", h.ListContributions)
				r.Post("/contributions", h.Contribute)
			})
		})

		// Achievement routes
		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", h.ListAchievements)
			r.Get("/recent", h.RecentAchievements)
			r.Get("/points", h.Points)
		})
	})

	return r
}
