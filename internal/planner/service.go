package planner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"weekplan/internal/external"
	"weekplan/internal/types"
)

// ForecastResolver resolves a location string into a normalized forecast.
type ForecastResolver interface {
	Resolve(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error)
}

// ReadinessResolver selects today's effective biometric snapshot.
type ReadinessResolver interface {
	Resolve(user *types.UserProfile) types.ReadinessSnapshot
}

// GenerateOptions are the per-request knobs on a generation. The free-text
// context fields, when provided, are stored back onto the profile so the
// next generation starts from them.
type GenerateOptions struct {
	ExcludedActivityIDs []string `json:"excluded_activity_ids,omitempty"`
	AllowMultiplePerDay bool     `json:"allow_multiple_per_day,omitempty"`
	LastActivity        string   `json:"last_activity,omitempty"`
	Injuries            string   `json:"injuries,omitempty"`
	ExtraInfo           string   `json:"extra_info,omitempty"`
}

// GenerateResult is a produced plan plus the quota standing after the
// generation was counted.
type GenerateResult struct {
	Plan  *types.WeeklyPlan      `json:"plan"`
	Quota *types.GenerationQuota `json:"quota"`
}

// Service runs the full generation pipeline: quota gate, concurrent input
// gathering, prompt assembly, the completion call, normalization, and
// persistence of the result.
type Service struct {
	repos      types.RepositoryRegistry
	forecasts  ForecastResolver
	readiness  ReadinessResolver
	completion external.CompletionClient
	quota      *QuotaGate
	assembler  Assembler
	normalizer *Normalizer
	clock      types.Clock
	logger     *slog.Logger
}

// NewService wires the pipeline. The completion client may be nil, in which
// case every generation uses the heuristic fallback.
func NewService(
	repos types.RepositoryRegistry,
	forecasts ForecastResolver,
	readiness ReadinessResolver,
	completion external.CompletionClient,
	clock types.Clock,
	logger *slog.Logger,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repos:      repos,
		forecasts:  forecasts,
		readiness:  readiness,
		completion: completion,
		quota:      NewQuotaGate(repos.Users(), clock),
		normalizer: NewNormalizer(clock),
		clock:      clock,
		logger:     logger,
	}
}

// Generate produces a weekly plan for the user. Validation failures (no
// activities, everything excluded) and quota exhaustion reject the request
// without consuming quota; upstream weather or completion failures degrade
// to the heuristic fallback, which still counts as a generation.
func (s *Service) Generate(ctx context.Context, userID string, opts GenerateOptions) (*GenerateResult, error) {
	user, err := s.repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	activities, err := s.repos.Activities().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationNoActivities,
			"add at least one activity before generating a plan", nil)
	}

	usable, excludedNames := filterExcluded(activities, opts.ExcludedActivityIDs)
	if len(usable) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationAllExcluded,
			"every activity on file is excluded from this request", nil)
	}

	if _, err := s.quota.Check(ctx, user); err != nil {
		return nil, err
	}

	if err := s.applyContext(ctx, user, opts); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	windowStart := now.Truncate(24 * time.Hour)

	// Weather and calendar loads are independent; run them concurrently.
	// Weather failures degrade to planning without a forecast.
	var (
		forecast     *types.ResolvedForecast
		appointments []types.Appointment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.forecasts == nil || user.Location == "" {
			return nil
		}
		resolved, err := s.forecasts.Resolve(gctx, user.Location, user.TemperatureUnit)
		if err != nil {
			s.logger.InfoContext(gctx, "planning without weather data",
				"user_id", userID, "error", err)
			return nil
		}
		forecast = resolved
		return nil
	})
	g.Go(func() error {
		var err error
		appointments, err = s.repos.Appointments().ListWindow(gctx, userID, windowStart, windowStart.AddDate(0, 0, 7))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := s.readiness.Resolve(user)
	localNow := s.localNow(now, forecast)

	inputs := PromptInputs{
		Now:                 localNow,
		Activities:          usable,
		Appointments:        appointments,
		Forecast:            forecast,
		Readiness:           snapshot,
		LastActivity:        user.LastActivity,
		Injuries:            user.Injuries,
		ExtraInfo:           user.ExtraInfo,
		Unit:                user.TemperatureUnit,
		ExcludedActivities:  excludedNames,
		AllowMultiplePerDay: opts.AllowMultiplePerDay,
	}

	raw := s.complete(ctx, inputs)
	plan := s.normalizer.Parse(raw, FallbackInputs{
		Now:        localNow,
		Activities: usable,
		Forecast:   forecast,
	})

	if err := s.persist(ctx, user, plan); err != nil {
		return nil, err
	}

	limits := LimitsForTier(user.Tier)
	return &GenerateResult{
		Plan: plan,
		Quota: &types.GenerationQuota{
			Tier:      user.Tier,
			Used:      user.GenerationsUsed,
			Limit:     limits.WeeklyGenerations,
			ResetDate: user.GenerationsReset,
		},
	}, nil
}

// complete runs the single completion attempt. Any failure returns an empty
// string so the normalizer falls back to the heuristic.
func (s *Service) complete(ctx context.Context, inputs PromptInputs) string {
	if s.completion == nil {
		return ""
	}
	raw, err := s.completion.Complete(ctx, s.assembler.SystemPrompt(), s.assembler.Build(inputs))
	if err != nil {
		s.logger.WarnContext(ctx, "completion unavailable, using heuristic plan", "error", err)
		return ""
	}
	return raw
}

// applyContext stores free-text context from the request onto the profile
// before the prompt is assembled, so the generation and the next one both
// see it.
func (s *Service) applyContext(ctx context.Context, user *types.UserProfile, opts GenerateOptions) error {
	changed := false
	if v := strings.TrimSpace(opts.LastActivity); v != "" && v != user.LastActivity {
		user.LastActivity = v
		changed = true
	}
	if v := strings.TrimSpace(opts.Injuries); v != "" && v != user.Injuries {
		user.Injuries = v
		changed = true
	}
	if v := strings.TrimSpace(opts.ExtraInfo); v != "" && v != user.ExtraInfo {
		user.ExtraInfo = v
		changed = true
	}
	if !changed {
		return nil
	}
	return s.repos.Users().UpdateProfile(ctx, user)
}

// persist counts the generation and caches the plan for redisplay. Both
// writes share a transaction when the registry supports one, so a failure
// leaves neither a charged quota nor a stale plan.
func (s *Service) persist(ctx context.Context, user *types.UserProfile, plan *types.WeeklyPlan) error {
	encoded, err := json.Marshal(plan)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode plan", err)
	}

	write := func(r types.RepositoryRegistry) error {
		if err := s.quota.ConsumeWith(ctx, r.Users(), user); err != nil {
			return err
		}
		return r.Users().SaveLastPlan(ctx, user.ID, encoded, plan.GeneratedAt)
	}
	if runner, ok := s.repos.(types.TxRunner); ok {
		return runner.RunInTx(ctx, write)
	}
	return write(s.repos)
}

// localNow shifts the clock anchor into the forecast's timezone when one
// resolved; otherwise planning proceeds in UTC.
func (s *Service) localNow(now time.Time, forecast *types.ResolvedForecast) time.Time {
	if forecast == nil || forecast.Timezone == "" {
		return now
	}
	loc, err := time.LoadLocation(forecast.Timezone)
	if err != nil {
		return now
	}
	local := now.In(loc)
	// Strip the zone so downstream day arithmetic stays on wall-clock dates.
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}

// LatestPlan returns the user's cached most recent plan.
func (s *Service) LatestPlan(ctx context.Context, userID string) (*types.WeeklyPlan, error) {
	user, err := s.repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.LastPlan) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "no plan generated yet", nil)
	}
	var plan types.WeeklyPlan
	if err := json.Unmarshal(user.LastPlan, &plan); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "stored plan is unreadable", err)
	}
	return &plan, nil
}

// Quota reports the user's current standing, applying the lazy cycle
// rollover if the stored reset date has passed.
func (s *Service) Quota(ctx context.Context, userID string) (*types.GenerationQuota, error) {
	user, err := s.repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	quota, err := s.quota.Check(ctx, user)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeLimitGenerations {
			limits := LimitsForTier(user.Tier)
			return &types.GenerationQuota{
				Tier:      user.Tier,
				Used:      user.GenerationsUsed,
				Limit:     limits.WeeklyGenerations,
				ResetDate: user.GenerationsReset,
			}, nil
		}
		return nil, err
	}
	return quota, nil
}

// filterExcluded drops activities whose IDs appear in the exclusion list.
// The names of the dropped activities are returned so the prompt can state
// the exclusion in words the model understands.
func filterExcluded(activities []types.ActivityPreference, excludedIDs []string) (kept []types.ActivityPreference, droppedNames []string) {
	if len(excludedIDs) == 0 {
		return activities, nil
	}
	drop := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		drop[strings.TrimSpace(id)] = struct{}{}
	}
	kept = make([]types.ActivityPreference, 0, len(activities))
	for _, act := range activities {
		if _, skip := drop[act.ID]; skip {
			droppedNames = append(droppedNames, act.Name)
			continue
		}
		kept = append(kept, act)
	}
	return kept, droppedNames
}
