// internal/notification/routes.go

package notification

import (
	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
)

// RegisterRoutes registers notification routes
func RegisterRoutes(r chi.Router, handler *Handler, authMiddleware *auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/api/v1/notifications", handler.GetNotifications)
		r.Post("/api/v1/notifications/{id}/read", handler.MarkAsRead)
	})
}
