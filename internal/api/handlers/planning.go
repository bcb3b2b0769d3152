package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"weekplan/internal/core"
	"weekplan/internal/external"
	"weekplan/internal/planner"
	"weekplan/internal/types"
)

// minCitySearchLength is the shortest accepted city search query.
const minCitySearchLength = 2

// PlanService runs the generation pipeline and serves plan/quota state.
type PlanService interface {
	Generate(ctx context.Context, userID string, opts planner.GenerateOptions) (*planner.GenerateResult, error)
	LatestPlan(ctx context.Context, userID string) (*types.WeeklyPlan, error)
	Quota(ctx context.Context, userID string) (*types.GenerationQuota, error)
}

// WeatherService resolves forecasts and searches cities for the standalone
// weather endpoints.
type WeatherService interface {
	Resolve(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error)
}

// CitySearcher provides geocoding lookups for location pickers.
type CitySearcher interface {
	SearchCities(ctx context.Context, query string, count int) ([]external.GeocodeResult, error)
}

// GeneratePlanRequest is the request body for POST /v1/plans/generate.
// The free-text fields are persisted to the profile when provided.
type GeneratePlanRequest struct {
	ExcludedActivityIDs []string `json:"excluded_activity_ids,omitempty" validate:"omitempty,max=50,dive,max=200"`
	AllowMultiplePerDay bool     `json:"allow_multiple_per_day,omitempty"`
	LastActivity        string   `json:"last_activity,omitempty" validate:"omitempty,max=500"`
	Injuries            string   `json:"injuries,omitempty" validate:"omitempty,max=500"`
	ExtraInfo           string   `json:"extra_info,omitempty" validate:"omitempty,max=1000"`
}

// PlanHandler exposes the generation pipeline and weather lookups.
type PlanHandler struct {
	plans     PlanService
	users     ProfileRepo
	weather   WeatherService
	cities    CitySearcher
	validator *core.Validator
	logger    *slog.Logger
}

// NewPlanHandler creates a PlanHandler with the provided dependencies.
func NewPlanHandler(
	plans PlanService,
	users ProfileRepo,
	weather WeatherService,
	cities CitySearcher,
	v *core.Validator,
	l *slog.Logger,
) *PlanHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PlanHandler{
		plans:     plans,
		users:     users,
		weather:   weather,
		cities:    cities,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts planning and weather routes on the provided
// chi.Router.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Get("/latest", h.Latest)
	})
	r.Get("/quota", h.Quota)
	r.Route("/weather", func(r chi.Router) {
		r.Get("/", h.Weather)
		r.Get("/cities", h.Cities)
	})
}

// Generate handles POST /v1/plans/generate.
func (h *PlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	var req GeneratePlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.plans.Generate(r.Context(), actor.ID, planner.GenerateOptions{
		ExcludedActivityIDs: req.ExcludedActivityIDs,
		AllowMultiplePerDay: req.AllowMultiplePerDay,
		LastActivity:        req.LastActivity,
		Injuries:            req.Injuries,
		ExtraInfo:           req.ExtraInfo,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: result}
	if result.Plan != nil && !result.Plan.Structured {
		resp.Meta = &types.ResponseMeta{
			Warnings: []string{"plan was produced by the deterministic fallback; the model response was unavailable or unusable"},
		}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// Latest handles GET /v1/plans/latest.
func (h *PlanHandler) Latest(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	plan, err := h.plans.LatestPlan(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plan})
}

// Quota handles GET /v1/quota.
func (h *PlanHandler) Quota(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	quota, err := h.plans.Quota(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: quota})
}

// Weather handles GET /v1/weather. It resolves the forecast for the user's
// stored location, or for an explicit ?location= override.
func (h *PlanHandler) Weather(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	profile, err := h.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	location := profile.Location
	if override := strings.TrimSpace(r.URL.Query().Get("location")); override != "" {
		location = override
	}
	if location == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"set a location on your profile or pass ?location=", nil))
		return
	}

	unit := profile.TemperatureUnit
	if override := r.URL.Query().Get("unit"); override != "" {
		parsed, ok := types.ParseTemperatureUnit(override)
		if !ok {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidUnit,
				"unit must be C or F", nil))
			return
		}
		unit = parsed
	}

	forecast, err := h.weather.Resolve(r.Context(), location, unit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: forecast})
}

// Cities handles GET /v1/weather/cities?q=.
func (h *PlanHandler) Cities(w http.ResponseWriter, r *http.Request) {
	if _, ok := types.GetActor(r.Context()); !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Authentication required", nil))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < minCitySearchLength {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationQueryTooShort,
			"query must be at least 2 characters", nil))
		return
	}

	results, err := h.cities.SearchCities(r.Context(), query, 10)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	cities := make([]types.City, 0, len(results))
	for _, res := range results {
		display := res.Name
		if res.Admin1 != "" {
			display += ", " + res.Admin1
		}
		if res.Country != "" {
			display += ", " + res.Country
		}
		cities = append(cities, types.City{
			Name:      res.Name,
			Display:   display,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
		})
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: cities})
}
