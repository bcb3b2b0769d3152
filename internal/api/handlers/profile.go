package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"weekplan/internal/core"
	"weekplan/internal/types"
)

// ProfileRepo defines the data access contract for profile operations.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*types.UserProfile, error)
	UpdateProfile(ctx context.Context, profile *types.UserProfile) error
	UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error
}

// UpdateProfileRequest is the request body for PATCH /v1/profile.
type UpdateProfileRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Location        *string `json:"location,omitempty" validate:"omitempty,max=200"`
	TemperatureUnit *string `json:"temperature_unit,omitempty" validate:"omitempty,temp_unit"`
	LastActivity    *string `json:"last_activity,omitempty" validate:"omitempty,max=500"`
	Injuries        *string `json:"injuries,omitempty" validate:"omitempty,max=1000"`
	ExtraInfo       *string `json:"extra_info,omitempty" validate:"omitempty,max=2000"`
}

// UpdateScoresRequest is the request body for PUT /v1/profile/scores. Scores
// recorded here apply to planning only while their date has not passed.
type UpdateScoresRequest struct {
	Readiness *int   `json:"readiness,omitempty" validate:"omitempty,gte=0,lte=100"`
	Sleep     *int   `json:"sleep,omitempty" validate:"omitempty,gte=0,lte=100"`
	Date      string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ProfileHandler manages the authenticated user's own profile.
type ProfileHandler struct {
	repo      ProfileRepo
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
}

// NewProfileHandler creates a ProfileHandler with the provided dependencies.
func NewProfileHandler(repo ProfileRepo, v *core.Validator, l *slog.Logger, clock types.Clock) *ProfileHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &ProfileHandler{repo: repo, validator: v, logger: l, clock: clock}
}

// RegisterRoutes mounts profile routes on the provided chi.Router.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Put("/scores", h.UpdateScores)
	})
}

// Get handles GET /v1/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	profile, err := h.repo.GetByID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: profile})
}

// Update handles PATCH /v1/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req UpdateProfileRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	profile, err := h.repo.GetByID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Location != nil {
		profile.Location = *req.Location
	}
	if req.TemperatureUnit != nil {
		unit, _ := types.ParseTemperatureUnit(*req.TemperatureUnit)
		profile.TemperatureUnit = unit
	}
	if req.LastActivity != nil {
		profile.LastActivity = *req.LastActivity
	}
	if req.Injuries != nil {
		profile.Injuries = *req.Injuries
	}
	if req.ExtraInfo != nil {
		profile.ExtraInfo = *req.ExtraInfo
	}

	if err := h.repo.UpdateProfile(r.Context(), profile); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: profile})
}

// UpdateScores handles PUT /v1/profile/scores.
func (h *ProfileHandler) UpdateScores(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req UpdateScoresRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Readiness == nil && req.Sleep == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"at least one of readiness or sleep is required", nil))
		return
	}

	scoreDate := h.clock.Now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		scoreDate, _ = time.Parse("2006-01-02", req.Date)
	}

	if err := h.repo.UpdateManualScores(r.Context(), actor.ID, req.Readiness, req.Sleep, scoreDate); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]any{
		"readiness":  req.Readiness,
		"sleep":      req.Sleep,
		"score_date": scoreDate.Format("2006-01-02"),
	}})
}
