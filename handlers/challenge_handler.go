package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"habitQuestAPI/internal/challenge"
	"habitQuestAPI/middleware"
	"habitQuestAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	checklistService *services.ChecklistService
}

func NewChallengeHandler(challengeService *services.ChallengeService, checklistService *services.ChecklistService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		checklistService: checklistService,
	}
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ch, err := h.challengeService.CreateChallenge(ctx, clerkID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, ch)
}

func (h *ChallengeHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.GetChallenges(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	list, err := h.challengeService.GetChecklist(ctx, clerkID, challengeID, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, list)
}

// SetItemCompletion is the cascade entry point: one checklist flip may pay
// item XP, the day bonus, the challenge bonus and a streak bonus, and the
// response carries everything the UI needs for its celebration toast.
func (h *ChallengeHandler) SetItemCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	vars := mux.Vars(r)
	challengeID, err := uuid.Parse(vars["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}
	itemID, err := uuid.Parse(vars["itemID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var body struct {
		Date      string `json:"date"`
		Completed bool   `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	date, err := parseDateParam(body.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	result, err := h.checklistService.SetItemCompletion(ctx, clerkID, challengeID, itemID, date, body.Completed)
	if err != nil {
		log.Printf("SetItemCompletion Handler: %s challenge %s item %s: %v", clerkID, challengeID, itemID, err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) GetProgressHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	history, err := h.checklistService.ProgressHistory(ctx, clerkID, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

func parseDateParam(value string) (time.Time, error) {
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", value)
}
