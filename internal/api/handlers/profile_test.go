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
	"weekplan/internal/types"
)

type profileFixedClock struct {
	t time.Time
}

func (c profileFixedClock) Now() time.Time { return c.t }

func newTestProfileHandler(clock types.Clock) (*ProfileHandler, *mockProfileRepo) {
	repo := &mockProfileRepo{}
	logger := slog.Default()
	return NewProfileHandler(repo, core.NewValidator(logger), logger, clock), repo
}

func TestProfileHandler_Get_ReturnsProfile(t *testing.T) {
	handler, _ := newTestProfileHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Get(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data types.UserProfile `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "user_test123", resp.Data.ID)
	assert.Equal(t, "Chicago", resp.Data.Location)
}

func TestProfileHandler_Update_AppliesPartialFields(t *testing.T) {
	handler, repo := newTestProfileHandler(nil)

	req := httptest.NewRequest(http.MethodPatch, "/v1/profile",
		bytes.NewReader([]byte(`{"location": "Oslo", "temperature_unit": "C", "injuries": "sore knee"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Update(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	updated := repo.lastUpdatedProfile
	require.NotNil(t, updated)
	assert.Equal(t, "Oslo", updated.Location)
	assert.Equal(t, types.UnitCelsius, updated.TemperatureUnit)
	assert.Equal(t, "sore knee", updated.Injuries)
	assert.Equal(t, "Test User", updated.Name, "untouched fields keep their stored values")
}

func TestProfileHandler_Update_RejectsInvalidUnit(t *testing.T) {
	handler, repo := newTestProfileHandler(nil)

	req := httptest.NewRequest(http.MethodPatch, "/v1/profile",
		bytes.NewReader([]byte(`{"temperature_unit": "kelvin"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.Update(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, repo.lastUpdatedProfile)
}

func TestProfileHandler_UpdateScores_DefaultsDateToToday(t *testing.T) {
	clock := profileFixedClock{t: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)}
	handler, repo := newTestProfileHandler(clock)

	var gotDate time.Time
	var gotReadiness, gotSleep *int
	repo.updateManualScoresFn = func(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
		gotReadiness, gotSleep, gotDate = readiness, sleep, scoreDate
		return nil
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/profile/scores",
		bytes.NewReader([]byte(`{"readiness": 80}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.UpdateScores(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotReadiness)
	assert.Equal(t, 80, *gotReadiness)
	assert.Nil(t, gotSleep)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), gotDate)
}

func TestProfileHandler_UpdateScores_ExplicitDate(t *testing.T) {
	handler, repo := newTestProfileHandler(nil)

	var gotDate time.Time
	repo.updateManualScoresFn = func(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
		gotDate = scoreDate
		return nil
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/profile/scores",
		bytes.NewReader([]byte(`{"sleep": 70, "date": "2026-08-28"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.UpdateScores(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), gotDate)
}

func TestProfileHandler_UpdateScores_RequiresAtLeastOneScore(t *testing.T) {
	handler, _ := newTestProfileHandler(nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/profile/scores",
		bytes.NewReader([]byte(`{"date": "2026-08-28"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.UpdateScores(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeErrorCode(t, rr))
}

func TestProfileHandler_UpdateScores_RangeValidation(t *testing.T) {
	handler, _ := newTestProfileHandler(nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/profile/scores",
		bytes.NewReader([]byte(`{"readiness": 140}`)))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(contextWithActor())

	rr := httptest.NewRecorder()
	handler.UpdateScores(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
