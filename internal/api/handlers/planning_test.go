package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/core"
	"weekplan/internal/external"
	"weekplan/internal/planner"
	"weekplan/internal/types"
)

type mockPlanService struct {
	generateFn   func(ctx context.Context, userID string, opts planner.GenerateOptions) (*planner.GenerateResult, error)
	latestPlanFn func(ctx context.Context, userID string) (*types.WeeklyPlan, error)
	quotaFn      func(ctx context.Context, userID string) (*types.GenerationQuota, error)

	lastGenerateOpts planner.GenerateOptions
}

func (m *mockPlanService) Generate(ctx context.Context, userID string, opts planner.GenerateOptions) (*planner.GenerateResult, error) {
	m.lastGenerateOpts = opts
	if m.generateFn != nil {
		return m.generateFn(ctx, userID, opts)
	}
	return &planner.GenerateResult{
		Plan: &types.WeeklyPlan{
			Days:        map[string]types.PlanDay{},
			Structured:  true,
			GeneratedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		},
		Quota: &types.GenerationQuota{Tier: types.TierFree, Used: 1, Limit: 3},
	}, nil
}

func (m *mockPlanService) LatestPlan(ctx context.Context, userID string) (*types.WeeklyPlan, error) {
	if m.latestPlanFn != nil {
		return m.latestPlanFn(ctx, userID)
	}
	return &types.WeeklyPlan{Days: map[string]types.PlanDay{}, Structured: true}, nil
}

func (m *mockPlanService) Quota(ctx context.Context, userID string) (*types.GenerationQuota, error) {
	if m.quotaFn != nil {
		return m.quotaFn(ctx, userID)
	}
	return &types.GenerationQuota{Tier: types.TierFree, Used: 0, Limit: 3}, nil
}

type mockProfileRepo struct {
	getByIDFn            func(ctx context.Context, id string) (*types.UserProfile, error)
	updateProfileFn      func(ctx context.Context, profile *types.UserProfile) error
	updateManualScoresFn func(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error

	lastUpdatedProfile *types.UserProfile
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*types.UserProfile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &types.UserProfile{
		ID:              id,
		Name:            "Test User",
		Location:        "Chicago",
		TemperatureUnit: types.UnitFahrenheit,
		Tier:            types.TierFree,
	}, nil
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, profile *types.UserProfile) error {
	m.lastUpdatedProfile = profile
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, profile)
	}
	return nil
}

func (m *mockProfileRepo) UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
	if m.updateManualScoresFn != nil {
		return m.updateManualScoresFn(ctx, userID, readiness, sleep, scoreDate)
	}
	return nil
}

type mockWeatherService struct {
	resolveFn func(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error)

	lastLocation string
	lastUnit     types.TemperatureUnit
}

func (m *mockWeatherService) Resolve(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error) {
	m.lastLocation = location
	m.lastUnit = unit
	if m.resolveFn != nil {
		return m.resolveFn(ctx, location, unit)
	}
	return &types.ResolvedForecast{Timezone: "America/Chicago"}, nil
}

type mockCitySearcher struct {
	searchFn func(ctx context.Context, query string, count int) ([]external.GeocodeResult, error)
}

func (m *mockCitySearcher) SearchCities(ctx context.Context, query string, count int) ([]external.GeocodeResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, count)
	}
	return []external.GeocodeResult{
		{Name: "Chicago", Latitude: 41.88, Longitude: -87.63, Country: "United States", Admin1: "Illinois"},
	}, nil
}

func newTestPlanHandler() (*PlanHandler, *mockPlanService, *mockProfileRepo, *mockWeatherService, *mockCitySearcher) {
	plans := &mockPlanService{}
	users := &mockProfileRepo{}
	weather := &mockWeatherService{}
	cities := &mockCitySearcher{}

	logger := slog.Default()
	handler := NewPlanHandler(plans, users, weather, cities, core.NewValidator(logger), logger)
	return handler, plans, users, weather, cities
}

func contextWithActor() context.Context {
	return types.WithActor(context.Background(), types.Actor{
		ID:   "user_test123",
		Type: types.ActorTypeUser,
		Tier: types.TierFree,
	})
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error.Code
}

func TestPlanHandler_Generate_Success(t *testing.T) {
	handler, plans, _, _, _ := newTestPlanHandler()

	body, err := json.Marshal(GeneratePlanRequest{
		ExcludedActivityIDs: []string{"act_swim"},
		AllowMultiplePerDay: true,
		Injuries:            "tight calves",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Generate(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"act_swim"}, plans.lastGenerateOpts.ExcludedActivityIDs)
	assert.True(t, plans.lastGenerateOpts.AllowMultiplePerDay)
	assert.Equal(t, "tight calves", plans.lastGenerateOpts.Injuries)

	var resp struct {
		Data json.RawMessage     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Meta, "a structured plan carries no warnings")
}

func TestPlanHandler_Generate_FallbackPlanCarriesWarning(t *testing.T) {
	handler, plans, _, _, _ := newTestPlanHandler()
	plans.generateFn = func(ctx context.Context, userID string, opts planner.GenerateOptions) (*planner.GenerateResult, error) {
		return &planner.GenerateResult{
			Plan: &types.WeeklyPlan{
				Days:        map[string]types.PlanDay{},
				Structured:  false,
				GeneratedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
			},
			Quota: &types.GenerationQuota{Tier: types.TierFree, Used: 1, Limit: 3},
		}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Generate(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data json.RawMessage     `json:"data"`
		Meta *types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.Meta)
	require.Len(t, resp.Meta.Warnings, 1)
	assert.Contains(t, resp.Meta.Warnings[0], "deterministic fallback")
}

func TestPlanHandler_Generate_MissingActor(t *testing.T) {
	handler, _, _, _, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.Generate(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), decodeErrorCode(t, rr))
}

func TestPlanHandler_Generate_UnknownFieldRejected(t *testing.T) {
	handler, _, _, _, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/generate", bytes.NewReader([]byte(`{"surprise": true}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Generate(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), decodeErrorCode(t, rr))
}

func TestPlanHandler_Generate_QuotaExhaustedReturns429(t *testing.T) {
	handler, plans, _, _, _ := newTestPlanHandler()
	plans.generateFn = func(ctx context.Context, userID string, opts planner.GenerateOptions) (*planner.GenerateResult, error) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeLimitGenerations,
			"weekly generation limit reached, resets in 5 day(s)",
			nil,
			map[string]any{"limit": 3, "used": 3},
		)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/plans/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Generate(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp core.APIErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, string(types.ErrCodeLimitGenerations), resp.Error.Code)
	assert.EqualValues(t, 3, resp.Error.Details["limit"])
}

func TestPlanHandler_Latest_NotFound(t *testing.T) {
	handler, plans, _, _, _ := newTestPlanHandler()
	plans.latestPlanFn = func(ctx context.Context, userID string) (*types.WeeklyPlan, error) {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "no plan generated yet", nil)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/plans/latest", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Latest(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundPlan), decodeErrorCode(t, rr))
}

func TestPlanHandler_Quota_ReportsStanding(t *testing.T) {
	handler, plans, _, _, _ := newTestPlanHandler()
	plans.quotaFn = func(ctx context.Context, userID string) (*types.GenerationQuota, error) {
		return &types.GenerationQuota{Tier: types.TierFree, Used: 3, Limit: 3}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Quota(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data types.GenerationQuota `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Data.Used)
	assert.Equal(t, 3, resp.Data.Limit)
}

func TestPlanHandler_Weather_UsesProfileLocationAndUnit(t *testing.T) {
	handler, _, _, weather, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/weather", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Weather(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Chicago", weather.lastLocation)
	assert.Equal(t, types.UnitFahrenheit, weather.lastUnit)
}

func TestPlanHandler_Weather_QueryOverrides(t *testing.T) {
	handler, _, _, weather, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/weather?location=Oslo&unit=C", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Weather(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Oslo", weather.lastLocation)
	assert.Equal(t, types.UnitCelsius, weather.lastUnit)
}

func TestPlanHandler_Weather_NoLocationAnywhere(t *testing.T) {
	handler, _, users, _, _ := newTestPlanHandler()
	users.getByIDFn = func(ctx context.Context, id string) (*types.UserProfile, error) {
		return &types.UserProfile{ID: id, TemperatureUnit: types.UnitFahrenheit}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/weather", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Weather(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeErrorCode(t, rr))
}

func TestPlanHandler_Weather_InvalidUnit(t *testing.T) {
	handler, _, _, _, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/weather?unit=kelvin", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Weather(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidUnit), decodeErrorCode(t, rr))
}

func TestPlanHandler_Cities_QueryTooShort(t *testing.T) {
	handler, _, _, _, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/weather/cities?q=a", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Cities(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(types.ErrCodeValidationQueryTooShort), decodeErrorCode(t, rr))
}

func TestPlanHandler_Cities_BuildsDisplayNames(t *testing.T) {
	handler, _, _, _, _ := newTestPlanHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/weather/cities?q=chicago", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Cities(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data []types.City `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Chicago, Illinois, United States", resp.Data[0].Display)
}
