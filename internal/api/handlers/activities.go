// Package handlers contains the HTTP handler implementations for the
// planning API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"weekplan/internal/core"
	"weekplan/internal/types"
)

// ActivityRepo defines the data access contract for activity operations.
type ActivityRepo interface {
	ListByUser(ctx context.Context, userID string) ([]types.ActivityPreference, error)
	GetByID(ctx context.Context, userID, id string) (*types.ActivityPreference, error)
	Create(ctx context.Context, activity *types.ActivityPreference) error
	Update(ctx context.Context, activity *types.ActivityPreference) error
	Delete(ctx context.Context, userID, id string) error
}

// CreateActivityRequest is the request body for POST /v1/activities.
type CreateActivityRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Location        string   `json:"location,omitempty" validate:"omitempty,max=200"`
	DurationMinutes *int     `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Intensity       string   `json:"intensity,omitempty" validate:"omitempty,intensity"`
	Dependencies    string   `json:"dependencies,omitempty" validate:"omitempty,max=500"`
	Description     string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	PreferredTime   string   `json:"preferred_time,omitempty" validate:"omitempty,time_of_day"`
	PreferredDays   []string `json:"preferred_days,omitempty" validate:"omitempty,max=7"`
}

// UpdateActivityRequest is the request body for PATCH /v1/activities/{id}.
// Pointer fields allow partial updates.
type UpdateActivityRequest struct {
	Name            *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Location        *string   `json:"location,omitempty" validate:"omitempty,max=200"`
	DurationMinutes *int      `json:"duration_minutes,omitempty" validate:"omitempty,gt=0"`
	Intensity       *string   `json:"intensity,omitempty" validate:"omitempty,intensity"`
	Dependencies    *string   `json:"dependencies,omitempty" validate:"omitempty,max=500"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=1000"`
	PreferredTime   *string   `json:"preferred_time,omitempty" validate:"omitempty,time_of_day"`
	PreferredDays   *[]string `json:"preferred_days,omitempty" validate:"omitempty,max=7"`
}

// ActivityHandler manages the user's activity catalog.
type ActivityHandler struct {
	repo      ActivityRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewActivityHandler creates an ActivityHandler with the provided dependencies.
func NewActivityHandler(repo ActivityRepo, v *core.Validator, l *slog.Logger) *ActivityHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ActivityHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts activity routes on the provided chi.Router.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// List handles GET /v1/activities.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	activities, err := h.repo.ListByUser(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: activities})
}

// Create handles POST /v1/activities.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req CreateActivityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	days, ok := types.ParseWeekdaySet(req.PreferredDays)
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationEnum,
			"preferred_days contains an unrecognized weekday", nil))
		return
	}

	intensity, _ := types.ParseIntensity(req.Intensity)
	preferredTime, _ := types.ParseTimeOfDay(req.PreferredTime)

	activity := &types.ActivityPreference{
		ID:              "act_" + uuid.New().String(),
		UserID:          actor.ID,
		Name:            req.Name,
		Location:        req.Location,
		DurationMinutes: req.DurationMinutes,
		Intensity:       intensity,
		Dependencies:    req.Dependencies,
		Description:     req.Description,
		PreferredTime:   preferredTime,
		PreferredDays:   days,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.repo.Create(r.Context(), activity); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: activity})
}

// Get handles GET /v1/activities/{id}.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Activity ID is required", nil))
		return
	}

	activity, err := h.repo.GetByID(r.Context(), actor.ID, id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: activity})
}

// Update handles PATCH /v1/activities/{id}.
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Activity ID is required", nil))
		return
	}

	var req UpdateActivityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	activity, err := h.repo.GetByID(r.Context(), actor.ID, id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil {
		activity.Name = *req.Name
	}
	if req.Location != nil {
		activity.Location = *req.Location
	}
	if req.DurationMinutes != nil {
		activity.DurationMinutes = req.DurationMinutes
	}
	if req.Intensity != nil {
		intensity, _ := types.ParseIntensity(*req.Intensity)
		activity.Intensity = intensity
	}
	if req.Dependencies != nil {
		activity.Dependencies = *req.Dependencies
	}
	if req.Description != nil {
		activity.Description = *req.Description
	}
	if req.PreferredTime != nil {
		preferredTime, _ := types.ParseTimeOfDay(*req.PreferredTime)
		activity.PreferredTime = preferredTime
	}
	if req.PreferredDays != nil {
		days, ok := types.ParseWeekdaySet(*req.PreferredDays)
		if !ok {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationEnum,
				"preferred_days contains an unrecognized weekday", nil))
			return
		}
		activity.PreferredDays = days
	}

	if err := h.repo.Update(r.Context(), activity); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: activity})
}

// Delete handles DELETE /v1/activities/{id}.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "Activity ID is required", nil))
		return
	}

	if err := h.repo.Delete(r.Context(), actor.ID, id); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
