package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"habitQuestAPI/middleware"
	"habitQuestAPI/services"
)

type UserHandler struct {
	userService  *services.UserService
	statsService *services.StatsService
}

func NewUserHandler(userService *services.UserService, statsService *services.StatsService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		statsService: statsService,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	stats, err := h.statsService.GetUserStatsByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GetReconciliation exposes the ledger-vs-aggregate drift check for audit
// tooling. It never mutates anything.
func (h *UserHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	rec, err := h.statsService.ReconcileLedgerByClerkID(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// GetLedger lists the caller's recent XP audit entries. Optional query
// params: since (YYYY-MM-DD) and limit.
func (h *UserHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid since, expected YYYY-MM-DD")
			return
		}
		since = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.statsService.LedgerEntriesByClerkID(ctx, clerkID, since, limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps the service error taxonomy to HTTP statuses:
// ownership/not-found reject with 404, an over-cap goal completion gets a
// distinguishable 429, and a partial cascade failure returns 502 so the
// client knows a retry is safe.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrChallengeNotFound),
		errors.Is(err, services.ErrGoalNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrGoalCompleted):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrGoalRateLimited):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrAwardIncomplete):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
