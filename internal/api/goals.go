package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/goals"
	"github.com/ashureev/goalpath/internal/identity"
	"github.com/ashureev/goalpath/internal/store"
)

// RegisterGoalRoutes registers the goal endpoints behind bearer authentication.
func (h *Handler) RegisterGoalRoutes(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Use(identity.Middleware(h.tokens))
		r.Post("/generate", h.GenerateGoal)
		r.Get("/", h.ListGoals)
		r.Get("/{id}", h.GetGoal)
		r.Put("/{id}", h.UpdateGoal)
		r.Put("/{id}/weeks/{weekId}", h.SetWeekCompleted)
		r.Delete("/{id}", h.DeleteGoal)
	})
}

// generateRequest accepts complexity either as a duration ("3 months") or a
// level ("beginner").
type generateRequest struct {
	Goal       string `json:"goal"`
	Duration   string `json:"duration"`
	Complexity string `json:"complexity"`
}

// GenerateGoal handles POST /goals/generate.
func (h *Handler) GenerateGoal(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var level domain.Complexity
	duration := strings.TrimSpace(req.Duration)
	switch c := domain.Complexity(strings.ToLower(strings.TrimSpace(req.Complexity))); c {
	case domain.ComplexityBeginner, domain.ComplexityIntermediate, domain.ComplexityAdvanced:
		level = c
	default:
		if duration == "" {
			duration = strings.TrimSpace(req.Complexity)
		}
	}

	if strings.TrimSpace(req.Goal) == "" || duration == "" {
		Error(w, http.StatusBadRequest, "Goal and duration are required")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "Rate limit exceeded, try again later")
		return
	}

	goal, err := h.planner.Generate(r.Context(), userID, req.Goal, duration)
	if err != nil {
		switch {
		case errors.Is(err, goals.ErrUnavailable):
			Error(w, http.StatusServiceUnavailable, "Roadmap generation is not configured")
		case errors.Is(err, goals.ErrInvalidRoadmap):
			slog.Warn("Model returned invalid roadmap", "user_id", userID, "error", err)
			Error(w, http.StatusBadGateway, "Invalid roadmap structure received from AI")
		default:
			slog.Error("Failed to generate roadmap", "user_id", userID, "error", err)
			Error(w, http.StatusBadGateway, "Failed to generate learning roadmap")
		}
		return
	}
	goal.Complexity = level

	if err := h.repo.CreateGoal(r.Context(), goal); err != nil {
		slog.Error("Failed to save goal", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to save learning roadmap")
		return
	}

	slog.Info("Roadmap generated", "user_id", userID, "goal_id", goal.ID, "weeks", len(goal.Roadmap))
	OK(w, http.StatusCreated, "Learning roadmap generated successfully", goal)
}

// ListGoals handles GET /goals.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	list, err := h.repo.ListGoals(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list goals", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "Failed to fetch goals")
		return
	}
	OK(w, http.StatusOK, "", list)
}

// GetGoal handles GET /goals/{id}.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	goal, err := h.repo.GetGoal(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.goalError(w, userID, "fetch", err)
		return
	}
	OK(w, http.StatusOK, "", goal)
}

type updateRequest struct {
	Title   *string       `json:"title"`
	Roadmap []domain.Week `json:"roadmap"`
}

// UpdateGoal handles PUT /goals/{id}. A supplied roadmap replaces the weeks;
// progress is always derived from the roadmap.
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := h.repo.GetGoal(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.goalError(w, userID, "update", err)
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			Error(w, http.StatusBadRequest, "Title cannot be empty")
			return
		}
		goal.Title = title
	}
	if req.Roadmap != nil {
		if !replaceRoadmap(goal, req.Roadmap) {
			Error(w, http.StatusBadRequest, "Every week needs a title")
			return
		}
	}
	goal.RecomputeProgress()
	goal.UpdatedAt = h.now()

	if err := h.repo.UpdateGoal(r.Context(), goal); err != nil {
		h.goalError(w, userID, "update", err)
		return
	}
	OK(w, http.StatusOK, "Goal updated successfully", goal)
}

// replaceRoadmap installs weeks as the goal's roadmap. Week ids are only kept
// when they already belong to this goal and appear once; anything else gets a
// fresh id. It reports false if a week has no title.
func replaceRoadmap(goal *domain.Goal, weeks []domain.Week) bool {
	owned := make(map[string]bool, len(goal.Roadmap))
	for _, w := range goal.Roadmap {
		owned[w.ID] = true
	}

	seen := make(map[string]bool, len(weeks))
	for i := range weeks {
		wk := &weeks[i]
		wk.Title = strings.TrimSpace(wk.Title)
		if wk.Title == "" {
			return false
		}
		if !owned[wk.ID] || seen[wk.ID] {
			wk.ID = uuid.NewString()
		}
		seen[wk.ID] = true
		if wk.Week <= 0 {
			wk.Week = i + 1
		}
	}
	goal.Roadmap = weeks
	return true
}

type weekRequest struct {
	Completed bool `json:"completed"`
}

// SetWeekCompleted handles PUT /goals/{id}/weeks/{weekId}.
func (h *Handler) SetWeekCompleted(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req weekRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := h.repo.SetWeekCompleted(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "weekId"), req.Completed)
	if err != nil {
		h.goalError(w, userID, "update", err)
		return
	}
	OK(w, http.StatusOK, "Goal updated successfully", goal)
}

// DeleteGoal handles DELETE /goals/{id}.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	if err := h.repo.DeleteGoal(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.goalError(w, userID, "delete", err)
		return
	}
	OK(w, http.StatusOK, "Goal deleted successfully", nil)
}

func (h *Handler) goalError(w http.ResponseWriter, userID, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "Goal not found")
		return
	}
	slog.Error("Goal operation failed", "op", op, "user_id", userID, "error", err)
	Error(w, http.StatusInternalServerError, "Failed to "+op+" goal")
}
