// Package readiness selects the biometric scores a plan should honor,
// following a fixed source precedence.
package readiness

import (
	"time"

	"weekplan/internal/types"
)

// Resolver picks readiness and sleep scores for a user. Precedence:
// primary tracker, then secondary tracker (readiness only), then manual
// entry when its score date is today or later, then none.
type Resolver struct {
	clock types.Clock
}

// NewResolver creates a Resolver. A nil clock defaults to real UTC time.
func NewResolver(clock types.Clock) *Resolver {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Resolver{clock: clock}
}

// Resolve returns the snapshot to feed into planning. A tracker only wins
// when it is connected and actually reports a readiness score; manual
// scores are only honored while fresh (score date >= today).
func (r *Resolver) Resolve(user *types.UserProfile) types.ReadinessSnapshot {
	if user.TrackerPrimaryConnected && user.TrackerPrimaryReadiness != nil {
		return types.ReadinessSnapshot{
			Readiness: user.TrackerPrimaryReadiness,
			Sleep:     user.TrackerPrimarySleep,
			Source:    types.SourceTrackerPrimary,
		}
	}

	if user.TrackerSecondaryConnected && user.TrackerSecondaryReadiness != nil {
		// The secondary tracker reports no sleep score.
		return types.ReadinessSnapshot{
			Readiness: user.TrackerSecondaryReadiness,
			Source:    types.SourceTrackerSecondary,
		}
	}

	if r.manualFresh(user) {
		return types.ReadinessSnapshot{
			Readiness: user.ManualReadiness,
			Sleep:     user.ManualSleep,
			Source:    types.SourceManual,
		}
	}

	return types.ReadinessSnapshot{Source: types.SourceNone}
}

// manualFresh reports whether a manual score exists and its date is not in
// the past. Dates compare at day granularity in UTC.
func (r *Resolver) manualFresh(user *types.UserProfile) bool {
	if user.ManualScoreDate == nil {
		return false
	}
	if user.ManualReadiness == nil && user.ManualSleep == nil {
		return false
	}
	today := r.clock.Now().UTC().Truncate(24 * time.Hour)
	return !user.ManualScoreDate.UTC().Truncate(24 * time.Hour).Before(today)
}
