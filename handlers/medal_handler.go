package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"habitQuestAPI/internal/medal"
	"habitQuestAPI/middleware"
	"habitQuestAPI/services"
)

type MedalHandler struct {
	medalService *services.MedalService
}

func NewMedalHandler(medalService *services.MedalService) *MedalHandler {
	return &MedalHandler{
		medalService: medalService,
	}
}

// AwardDailyMedal scores one day. Re-submitting the same date returns the
// stored medal unchanged.
func (h *MedalHandler) AwardDailyMedal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req medal.AwardDailyMedalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}
	if req.TotalCount < 0 || req.CompletedCount < 0 || req.CompletedCount > req.TotalCount {
		respondWithError(w, http.StatusBadRequest, "Invalid completion counts")
		return
	}

	result, err := h.medalService.AwardDailyMedal(ctx, clerkID, date, req.CompletedCount, req.TotalCount)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *MedalHandler) GetMedals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	medals, err := h.medalService.GetMedals(ctx, clerkID, 100)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, medals)
}
