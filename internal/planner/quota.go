package planner

import (
	"context"
	"fmt"
	"time"

	"weekplan/internal/types"
)

// Weekly generation limits per tier. Zero means unlimited.
var tierLimits = map[types.PlanTier]types.TierLimits{
	types.TierFree:  {WeeklyGenerations: 3},
	types.TierPaid:  {WeeklyGenerations: 0},
	types.TierAdmin: {WeeklyGenerations: 0},
}

// LimitsForTier returns the limits for a tier, defaulting unknown tiers to
// the free tier's caps.
func LimitsForTier(tier types.PlanTier) types.TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[types.TierFree]
}

// QuotaGate enforces the Monday-to-Sunday weekly generation cycle. Resets
// happen lazily on each check rather than from a timer.
type QuotaGate struct {
	users types.UserRepository
	clock types.Clock
}

// NewQuotaGate creates a QuotaGate. A nil clock defaults to real UTC time.
func NewQuotaGate(users types.UserRepository, clock types.Clock) *QuotaGate {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &QuotaGate{users: users, clock: clock}
}

// nextMonday returns the upcoming Monday strictly after today, at day
// granularity. Called on a Monday it returns the Monday a full week out;
// the current cycle's boundary is today itself and is handled by the
// caller comparing stored dates.
func nextMonday(today time.Time) time.Time {
	today = today.UTC().Truncate(24 * time.Hour)
	days := (8 - int(today.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// Check applies the lazy cycle rollover and then the tier limit. The user's
// counters are mutated in place (and persisted) when a rollover occurs, so
// a subsequent Consume sees the fresh cycle. Returns the effective quota
// state on success; quota exhaustion returns ErrCodeLimitGenerations with
// the days remaining until reset in the error details.
func (g *QuotaGate) Check(ctx context.Context, user *types.UserProfile) (*types.GenerationQuota, error) {
	today := g.clock.Now().UTC().Truncate(24 * time.Hour)

	// Rollover before the limit check: missing or expired reset dates zero
	// the counter and advance to the next Monday.
	if user.GenerationsReset == nil || user.GenerationsReset.UTC().Truncate(24*time.Hour).Before(today) {
		reset := nextMonday(today)
		user.GenerationsUsed = 0
		user.GenerationsReset = &reset
		if err := g.users.UpdateQuota(ctx, user.ID, 0, reset); err != nil {
			return nil, err
		}
	}

	limits := LimitsForTier(user.Tier)
	quota := &types.GenerationQuota{
		Tier:      user.Tier,
		Used:      user.GenerationsUsed,
		Limit:     limits.WeeklyGenerations,
		ResetDate: user.GenerationsReset,
	}

	if limits.WeeklyGenerations > 0 && user.GenerationsUsed >= limits.WeeklyGenerations {
		daysLeft := int(user.GenerationsReset.UTC().Truncate(24*time.Hour).Sub(today).Hours() / 24)
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeLimitGenerations,
			fmt.Sprintf("weekly generation limit reached, resets in %d day(s)", daysLeft),
			nil,
			map[string]any{
				"limit":            limits.WeeklyGenerations,
				"used":             user.GenerationsUsed,
				"days_until_reset": daysLeft,
				"reset_date":       user.GenerationsReset.Format("2006-01-02"),
			},
		)
	}

	return quota, nil
}

// Consume records one successful generation against the current cycle.
// Callers invoke it only after a plan has actually been produced.
func (g *QuotaGate) Consume(ctx context.Context, user *types.UserProfile) error {
	return g.ConsumeWith(ctx, g.users, user)
}

// ConsumeWith is Consume against an explicit repository, letting callers
// persist the counter inside a transaction shared with other writes.
func (g *QuotaGate) ConsumeWith(ctx context.Context, users types.UserRepository, user *types.UserProfile) error {
	if user.GenerationsReset == nil {
		reset := nextMonday(g.clock.Now().UTC())
		user.GenerationsReset = &reset
	}
	user.GenerationsUsed++
	return users.UpdateQuota(ctx, user.ID, user.GenerationsUsed, *user.GenerationsReset)
}
