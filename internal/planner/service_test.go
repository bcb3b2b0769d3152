package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/external"
	"weekplan/internal/types"
)

func newTestService(repos *mockRegistry, forecasts ForecastResolver, completion *mockCompletion) *Service {
	var c external.CompletionClient
	if completion != nil {
		c = completion
	}
	return NewService(repos, forecasts, stubReadiness{}, c, fixedClock{t: testNow}, nil)
}

func TestService_ZeroActivitiesRejectsWithoutTouchingQuota(t *testing.T) {
	repos := newMockRegistry()
	repos.activities.listFn = func(ctx context.Context, userID string) ([]types.ActivityPreference, error) {
		return nil, nil
	}
	svc := newTestService(repos, nil, nil)

	_, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationNoActivities, appErr.Code)
	assert.Empty(t, repos.users.quotaCalls)
	assert.Empty(t, repos.users.savedPlans)
}

func TestService_AllActivitiesExcludedRejects(t *testing.T) {
	repos := newMockRegistry()
	svc := newTestService(repos, nil, nil)

	_, err := svc.Generate(context.Background(), "user_1", GenerateOptions{
		ExcludedActivityIDs: []string{"act_1", "act_2", " act_3 "},
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationAllExcluded, appErr.Code)
	assert.Empty(t, repos.users.quotaCalls)
}

func TestService_ExcludedIDsDropActivityAndNamePromptExclusion(t *testing.T) {
	repos := newMockRegistry()
	completion := &mockCompletion{}
	svc := newTestService(repos, nil, completion)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{
		ExcludedActivityIDs: []string{"act_2"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Plan)

	assert.NotContains(t, completion.lastUser, "act_2", "opaque IDs never reach the model")
	assert.Contains(t, completion.lastUser, "Do NOT schedule these activities this week: Yoga.")
	assert.Contains(t, completion.lastUser, "Trail Running")
}

func TestService_NoCompletionServiceUsesHeuristicAndConsumesQuota(t *testing.T) {
	repos := newMockRegistry()
	svc := newTestService(repos, nil, nil)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err)

	assert.False(t, result.Plan.Structured)
	assert.Len(t, result.Plan.Days, 7)

	// One write to initialize the cycle, one to consume the generation.
	require.NotEmpty(t, repos.users.quotaCalls)
	last := repos.users.quotaCalls[len(repos.users.quotaCalls)-1]
	assert.Equal(t, 1, last.used)
	assert.Equal(t, 1, result.Quota.Used)
	require.Len(t, repos.users.savedPlans, 1)
}

func TestService_CompletionFailureFallsBackAndStillConsumesQuota(t *testing.T) {
	repos := newMockRegistry()
	completion := &mockCompletion{} // returns an upstream error by default
	svc := newTestService(repos, nil, completion)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err)

	assert.False(t, result.Plan.Structured)
	assert.Equal(t, 1, result.Quota.Used)
	assert.NotEmpty(t, completion.lastUser, "the assembled prompt must reach the completion client")
}

func TestService_StructuredResponseRoundTrip(t *testing.T) {
	repos := newMockRegistry()
	raw := validPlanJSON(t)
	completion := &mockCompletion{
		completeFn: func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
			return "```json\n" + raw + "\n```", nil
		},
	}
	svc := newTestService(repos, nil, completion)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err)

	assert.True(t, result.Plan.Structured)
	assert.Equal(t, "Yoga", result.Plan.Days["2026-08-26"].Activity)
	require.Len(t, repos.users.savedPlans, 1)
}

func TestService_ContextFieldsPersistToProfile(t *testing.T) {
	repos := newMockRegistry()
	completion := &mockCompletion{}
	svc := newTestService(repos, nil, completion)

	_, err := svc.Generate(context.Background(), "user_1", GenerateOptions{
		LastActivity: "10k run on Sunday",
		Injuries:     "sore left knee",
		ExtraInfo:    "training for a half marathon",
	})
	require.NoError(t, err)

	require.Len(t, repos.users.updatedProfiles, 1)
	stored := repos.users.updatedProfiles[0]
	assert.Equal(t, "10k run on Sunday", stored.LastActivity)
	assert.Equal(t, "sore left knee", stored.Injuries)
	assert.Equal(t, "training for a half marathon", stored.ExtraInfo)

	assert.Contains(t, completion.lastUser, "sore left knee",
		"the stored context must reach the prompt in the same request")
}

func TestService_NoContextFieldsSkipsProfileWrite(t *testing.T) {
	repos := newMockRegistry()
	svc := newTestService(repos, nil, nil)

	_, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, repos.users.updatedProfiles)
}

func TestService_PersistRunsInTransactionWhenSupported(t *testing.T) {
	repos := &txMockRegistry{mockRegistry: newMockRegistry()}
	svc := NewService(repos, nil, stubReadiness{}, nil, fixedClock{t: testNow}, nil)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, repos.txCount, "quota consume and plan save share one transaction")
	assert.Equal(t, 1, result.Quota.Used)
	require.Len(t, repos.users.savedPlans, 1)
}

func TestService_WeatherFailureDegradesToPlanWithoutForecast(t *testing.T) {
	repos := newMockRegistry()
	repos.users.getByIDFn = func(ctx context.Context, id string) (*types.UserProfile, error) {
		return &types.UserProfile{
			ID:              id,
			Tier:            types.TierFree,
			Location:        "Nowhere, KS",
			TemperatureUnit: types.UnitFahrenheit,
		}, nil
	}
	forecasts := &mockForecastResolver{} // NotFound by default
	svc := newTestService(repos, forecasts, nil)

	result, err := svc.Generate(context.Background(), "user_1", GenerateOptions{})
	require.NoError(t, err, "an unresolvable location must not fail the request")
	assert.Len(t, result.Plan.Days, 7)
}

func TestService_LatestPlanWhenNoneStored(t *testing.T) {
	repos := newMockRegistry()
	svc := newTestService(repos, nil, nil)

	_, err := svc.LatestPlan(context.Background(), "user_1")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
}

func TestService_QuotaReportsStandingEvenWhenExhausted(t *testing.T) {
	repos := newMockRegistry()
	reset := testNow.AddDate(0, 0, 5).Truncate(24 * time.Hour)
	repos.users.getByIDFn = func(ctx context.Context, id string) (*types.UserProfile, error) {
		return &types.UserProfile{
			ID:               id,
			Tier:             types.TierFree,
			GenerationsUsed:  3,
			GenerationsReset: &reset,
		}, nil
	}
	svc := newTestService(repos, nil, nil)

	quota, err := svc.Quota(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 3, quota.Used)
	assert.Equal(t, 3, quota.Limit)
}
