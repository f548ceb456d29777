package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"habitQuestAPI/internal/goal"
	"habitQuestAPI/middleware"
	"habitQuestAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type GoalHandler struct {
	goalService *services.GoalService
}

func NewGoalHandler(goalService *services.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req goal.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondWithError(w, http.StatusBadRequest, "title is required")
		return
	}

	g, err := h.goalService.CreateGoal(ctx, clerkID, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, g)
}

func (h *GoalHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goals, err := h.goalService.GetGoals(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, goals)
}

// CompleteGoal is a one-way transition; over the hourly cap it returns 429
// so the client can show a limit message instead of a generic failure.
func (h *GoalHandler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	goalID, err := uuid.Parse(mux.Vars(r)["goalID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid goal id")
		return
	}

	result, err := h.goalService.CompleteLifeGoal(ctx, clerkID, goalID)
	if err != nil {
		log.Printf("CompleteGoal Handler: %s goal %s: %v", clerkID, goalID, err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
