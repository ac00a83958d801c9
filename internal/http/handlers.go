package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/chefmentor/internal/cooking"
	"github.com/hperssn/chefmentor/internal/domain"
	"github.com/hperssn/chefmentor/internal/log"
)

// Engine is the cooking session API served over HTTP.
type Engine interface {
	Start(ctx context.Context, recipeID, userID string, opts ...cooking.StartOption) (*domain.Session, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	CurrentStep(ctx context.Context, sessionID string) (*domain.StepView, error)
	Advance(ctx context.Context, sessionID string) (*domain.StepView, error)
	Events() *cooking.Broker
}

type sessionResponse struct {
	ID          string        `json:"id"`
	RecipeID    string        `json:"recipe_id"`
	UserID      string        `json:"user_id"`
	Status      domain.Status `json:"status"`
	CurrentStep int           `json:"current_step"`
	StepCount   int           `json:"step_count"`
	IsDemo      bool          `json:"is_demo"`
	StartedAt   time.Time     `json:"started_at"`
}

func newSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		RecipeID:    s.RecipeID,
		UserID:      s.UserID,
		Status:      s.Status,
		CurrentStep: s.CurrentStepIndex,
		StepCount:   s.StepCount,
		IsDemo:      s.IsDemo,
		StartedAt:   s.StartedAt,
	}
}

func startCooking(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RecipeID string `json:"recipe_id"`
			IsDemo   bool   `json:"is_demo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		req.RecipeID = strings.TrimSpace(req.RecipeID)
		if req.RecipeID == "" {
			respondError(w, "recipe_id is required", http.StatusBadRequest)
			return
		}

		// Anonymous callers only ever get guest sessions.
		userID := UserID(r)
		demo := req.IsDemo || userID == DemoUser

		session, err := e.Start(r.Context(), req.RecipeID, userID, cooking.AsDemo(demo))
		if err != nil {
			respondEngineError(w, r, err)
			return
		}
		respondJSON(w, newSessionResponse(session), http.StatusOK)
	}
}

func currentStep(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := e.CurrentStep(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondEngineError(w, r, err)
			return
		}
		respondJSON(w, view, http.StatusOK)
	}
}

func nextStep(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := e.Advance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondEngineError(w, r, err)
			return
		}
		respondJSON(w, view, http.StatusOK)
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cooking.ErrSessionNotFound):
		respondError(w, "session not found", http.StatusNotFound)
	case errors.Is(err, cooking.ErrRecipeNotFound):
		respondError(w, "recipe not found", http.StatusNotFound)
	default:
		log.WithContext(r.Context(), log.WithComponent("http")).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger := log.WithComponent("http")
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
