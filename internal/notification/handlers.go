// internal/notification/handlers.go

package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
	"github.com/imadgeboyega/kiekky-matching/internal/common/utils"
)

// Handler handles notification HTTP requests
type Handler struct {
	repo Repository
}

// NewHandler creates a new notification handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetNotifications handles GET /api/v1/notifications
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.repo.GetUserNotifications(r.Context(), userID, limit, offset, unreadOnly)
	if err != nil {
		utils.ErrorResponse(w, "Failed to get notifications", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, notifications, http.StatusOK)
}

// MarkAsRead handles POST /api/v1/notifications/{id}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	err := h.repo.MarkAsRead(r.Context(), chi.URLParam(r, "id"), userID)
	if errors.Is(err, ErrNotificationNotFound) {
		utils.ErrorResponse(w, "Notification not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.ErrorResponse(w, "Failed to mark notification as read", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Notification marked as read", http.StatusOK)
}
