// internal/matching/handlers.go

package matching

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imadgeboyega/kiekky-matching/internal/auth"
	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
	"github.com/imadgeboyega/kiekky-matching/internal/common/utils"
	"github.com/imadgeboyega/kiekky-matching/internal/profile"
)

// Handler handles matching HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new matching handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// FindMatches pairs the caller with their best available candidate
func (h *Handler) FindMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.service.FindMatches(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to find matches")
		return
	}

	response := &FindMatchResponse{
		Compatibility:        result.Compatibility,
		CandidatesConsidered: result.CandidatesConsidered,
	}
	status := http.StatusOK
	if result.Match != nil {
		response.Match = newMatchView(result.Match, userID)
		status = http.StatusCreated
	}
	utils.SuccessResponse(w, response, status)
}

// GetCompatibility explains how the caller scores against another user
func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	otherID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	result, err := h.service.Compatibility(r.Context(), userID, otherID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to compute compatibility")
		return
	}

	utils.SuccessResponse(w, result, http.StatusOK)
}

// GetMatches lists the caller's matches, optionally filtered by status
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matches, err := h.service.ListMatches(r.Context(), userID, Status(r.URL.Query().Get("status")))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get matches")
		return
	}

	views := make([]*MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, newMatchView(m, userID))
	}
	utils.SuccessResponse(w, views, http.StatusOK)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	match, err := h.service.GetMatch(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get match")
		return
	}

	utils.SuccessResponse(w, newMatchView(match, userID), http.StatusOK)
}

// Decide records the caller's accept or reject
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	match, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), userID, Decision(req.Decision))
	if err != nil {
		respondWithServiceError(w, err, "Failed to record decision")
		return
	}

	utils.SuccessResponse(w, newMatchView(match, userID), http.StatusOK)
}

// InvalidateUser is called after the caller changes their profile or
// preferences
func (h *Handler) InvalidateUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	if userID != callerID {
		utils.ErrorResponse(w, "Cannot invalidate another user's data", http.StatusForbidden)
		return
	}

	evicted, err := h.service.InvalidateUser(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to invalidate cache")
		return
	}

	utils.SuccessResponse(w, &InvalidateResponse{UserID: userID, Evicted: evicted}, http.StatusOK)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to get stats")
		return
	}

	utils.SuccessResponse(w, stats, http.StatusOK)
}

// respondWithServiceError maps engine errors onto HTTP statuses
func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
	case errors.Is(err, ErrMatchNotFound):
		utils.ErrorResponse(w, "Match not found", http.StatusNotFound)
	case errors.Is(err, ErrNotParticipant):
		utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrMatchExpired):
		utils.ErrorResponse(w, err.Error(), http.StatusGone)
	case errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, ErrMatchNotActive),
		errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrMatchExists):
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, profile.ErrProfileIncomplete),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrSelfMatch):
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "5")
		utils.ErrorResponse(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Printf("Matching handler error: %v", err)
		utils.ErrorResponse(w, fallback, http.StatusInternalServerError)
	}
}
