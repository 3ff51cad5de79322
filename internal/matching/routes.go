// internal/matching/routes.go

package matching

import (
	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
)

// RegisterRoutes registers all matching routes
func RegisterRoutes(r chi.Router, handler *Handler, authMiddleware *auth.Middleware) {
	r.Route("/api/v1/matching", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Matching
		r.Post("/find", handler.FindMatches)
		r.Get("/compatibility/{userId}", handler.GetCompatibility)

		// Matches
		r.Get("/matches", handler.GetMatches)
		r.Get("/matches/{id}", handler.GetMatch)
		r.Post("/matches/{id}/decision", handler.Decide)

		// Profile and preference change hook
		r.Post("/users/{userId}/invalidate", handler.InvalidateUser)

		// Monitoring
		r.Get("/stats", handler.GetStats)
	})
}
