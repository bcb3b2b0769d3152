package planner

// Shared fixtures and mocks for the planner package tests.

import (
	"context"
	"encoding/json"
	"time"

	"weekplan/internal/types"
)

// fixedClock pins "now" for deterministic tests.
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// testNow is a Wednesday morning.
var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

type mockUserRepo struct {
	getByIDFn func(ctx context.Context, id string) (*types.UserProfile, error)

	quotaCalls      []quotaCall
	savedPlans      [][]byte
	updatedProfiles []*types.UserProfile
	updateQuotaFn   func(ctx context.Context, userID string, used int, resetDate time.Time) error
}

type quotaCall struct {
	used  int
	reset time.Time
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*types.UserProfile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &types.UserProfile{ID: id, Tier: types.TierFree, TemperatureUnit: types.UnitFahrenheit}, nil
}

func (m *mockUserRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*types.UserProfile, error) {
	return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown token", nil)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, profile *types.UserProfile) error {
	m.updatedProfiles = append(m.updatedProfiles, profile)
	return nil
}

func (m *mockUserRepo) UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
	return nil
}

func (m *mockUserRepo) UpdateQuota(ctx context.Context, userID string, used int, resetDate time.Time) error {
	m.quotaCalls = append(m.quotaCalls, quotaCall{used: used, reset: resetDate})
	if m.updateQuotaFn != nil {
		return m.updateQuotaFn(ctx, userID, used, resetDate)
	}
	return nil
}

func (m *mockUserRepo) SaveLastPlan(ctx context.Context, userID string, plan json.RawMessage, generatedAt time.Time) error {
	m.savedPlans = append(m.savedPlans, plan)
	return nil
}

type mockActivityRepo struct {
	listFn func(ctx context.Context, userID string) ([]types.ActivityPreference, error)
}

func (m *mockActivityRepo) ListByUser(ctx context.Context, userID string) ([]types.ActivityPreference, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return testActivities(), nil
}

func (m *mockActivityRepo) GetByID(ctx context.Context, userID, id string) (*types.ActivityPreference, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundActivity, "not found", nil)
}

func (m *mockActivityRepo) Create(ctx context.Context, activity *types.ActivityPreference) error {
	return nil
}

func (m *mockActivityRepo) Update(ctx context.Context, activity *types.ActivityPreference) error {
	return nil
}

func (m *mockActivityRepo) Delete(ctx context.Context, userID, id string) error { return nil }

type mockAppointmentRepo struct {
	listWindowFn func(ctx context.Context, userID string, from, to time.Time) ([]types.Appointment, error)
}

func (m *mockAppointmentRepo) ListByUser(ctx context.Context, userID string) ([]types.Appointment, error) {
	return nil, nil
}

func (m *mockAppointmentRepo) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]types.Appointment, error) {
	if m.listWindowFn != nil {
		return m.listWindowFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockAppointmentRepo) GetByID(ctx context.Context, userID, id string) (*types.Appointment, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "not found", nil)
}

func (m *mockAppointmentRepo) Create(ctx context.Context, appt *types.Appointment) error { return nil }
func (m *mockAppointmentRepo) Update(ctx context.Context, appt *types.Appointment) error { return nil }
func (m *mockAppointmentRepo) Delete(ctx context.Context, userID, id string) error       { return nil }

type mockRegistry struct {
	users        *mockUserRepo
	activities   *mockActivityRepo
	appointments *mockAppointmentRepo
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		users:        &mockUserRepo{},
		activities:   &mockActivityRepo{},
		appointments: &mockAppointmentRepo{},
	}
}

func (m *mockRegistry) Users() types.UserRepository               { return m.users }
func (m *mockRegistry) Activities() types.ActivityRepository      { return m.activities }
func (m *mockRegistry) Appointments() types.AppointmentRepository { return m.appointments }

// txMockRegistry is a mockRegistry that also satisfies types.TxRunner,
// recording how many transactions were opened.
type txMockRegistry struct {
	*mockRegistry
	txCount int
}

func (m *txMockRegistry) RunInTx(ctx context.Context, fn func(types.RepositoryRegistry) error) error {
	m.txCount++
	return fn(m.mockRegistry)
}

type mockForecastResolver struct {
	resolveFn func(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error)
}

func (m *mockForecastResolver) Resolve(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, location, unit)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "no weather", nil)
}

type stubReadiness struct {
	snapshot types.ReadinessSnapshot
}

func (s stubReadiness) Resolve(user *types.UserProfile) types.ReadinessSnapshot {
	return s.snapshot
}

type mockCompletion struct {
	completeFn func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	lastSystem string
	lastUser   string
}

func (m *mockCompletion) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.lastSystem = systemPrompt
	m.lastUser = userPrompt
	if m.completeFn != nil {
		return m.completeFn(ctx, systemPrompt, userPrompt)
	}
	return "", types.NewAppError(types.ErrCodeUpstreamCompletion, "unavailable", nil)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func testActivities() []types.ActivityPreference {
	return []types.ActivityPreference{
		{
			ID:              "act_1",
			Name:            "Trail Running",
			DurationMinutes: intPtr(45),
			Intensity:       types.IntensityHigh,
			PreferredTime:   types.TimeMorning,
		},
		{
			ID:        "act_2",
			Name:      "Yoga",
			Intensity: types.IntensityLow,
			Location:  "Home studio",
		},
		{
			ID:   "act_3",
			Name: "Cycling",
		},
	}
}

// testForecast builds a 7-day forecast starting at testNow where day 3 has
// a 75% precipitation probability.
func testForecast() *types.ResolvedForecast {
	days := make([]types.DailyForecast, 7)
	for i := range days {
		date := testNow.Truncate(24 * time.Hour).AddDate(0, 0, i)
		days[i] = types.DailyForecast{
			Date:        date,
			DateDisplay: date.Format("Monday, January 02"),
			DateShort:   date.Format("Mon 01/02"),
			IsToday:     i == 0,
			TempMax:     floatPtr(72),
			TempMin:     floatPtr(55),
			PrecipProb:  intPtr(10),
			PrecipType:  types.PrecipNone,
			PrecipUnit:  "in",
			Sunrise:     "06:12 AM",
			Sunset:      "07:48 PM",
			WindSpeed:   8,
			WindGusts:   14,
		}
	}
	days[3].PrecipProb = intPtr(75)
	days[3].PrecipType = types.PrecipRain
	days[3].WetGround = true
	return &types.ResolvedForecast{Forecast: days, Timezone: "America/Chicago"}
}
