package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"weekplan/internal/types"
)

// UserRepository provides data access for the users table, including the
// quota counters and cached-plan columns that live on the user row.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.email, u.name, u.location, u.temperature_unit,
	u.tracker_primary_connected, u.tracker_primary_readiness, u.tracker_primary_sleep,
	u.tracker_secondary_connected, u.tracker_secondary_readiness,
	u.manual_readiness, u.manual_sleep, u.manual_score_date,
	u.last_activity, u.injuries, u.extra_info,
	u.tier, u.generations_used, u.generations_reset,
	u.last_plan, u.last_plan_at, u.created_at`

// scanUser scans a single user row into a types.UserProfile struct.
// The columns must match the order defined in userColumns. Nullable text
// columns scan through pointers and collapse to empty strings.
func scanUser(row pgx.Row) (*types.UserProfile, error) {
	var u types.UserProfile
	var (
		name         *string
		location     *string
		lastActivity *string
		injuries     *string
		extraInfo    *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&name,
		&location,
		&u.TemperatureUnit,
		&u.TrackerPrimaryConnected,
		&u.TrackerPrimaryReadiness,
		&u.TrackerPrimarySleep,
		&u.TrackerSecondaryConnected,
		&u.TrackerSecondaryReadiness,
		&u.ManualReadiness,
		&u.ManualSleep,
		&u.ManualScoreDate,
		&lastActivity,
		&injuries,
		&extraInfo,
		&u.Tier,
		&u.GenerationsUsed,
		&u.GenerationsReset,
		&u.LastPlan,
		&u.LastPlanAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	if location != nil {
		u.Location = *location
	}
	if lastActivity != nil {
		u.LastActivity = *lastActivity
	}
	if injuries != nil {
		u.Injuries = *injuries
	}
	if extraInfo != nil {
		u.ExtraInfo = *extraInfo
	}
	return &u, nil
}

// GetByID retrieves a user by their ID.
// Returns ErrCodeNotFoundUser if no user is found.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.UserProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// GetByTokenHash retrieves a user by the SHA-256 hash of their API token.
// The raw token is never stored. Returns ErrCodeAuthTokenInvalid if no
// matching user is found, so the authenticator can map it to a 401 directly.
func (r *UserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*types.UserProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.token_hash = $1`,
		tokenHash,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by token", err)
	}
	return u, nil
}

// UpdateProfile applies changes to the mutable planning-context fields:
// name, location, temperature unit, and the free-text fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile *types.UserProfile) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $1, location = $2, temperature_unit = $3,
		 last_activity = $4, injuries = $5, extra_info = $6
		 WHERE id = $7`,
		nilIfEmpty(profile.Name),
		nilIfEmpty(profile.Location),
		profile.TemperatureUnit,
		nilIfEmpty(profile.LastActivity),
		nilIfEmpty(profile.Injuries),
		nilIfEmpty(profile.ExtraInfo),
		profile.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// UpdateManualScores records manually entered readiness and sleep scores
// together with the civil date they apply to.
func (r *UserRepository) UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET manual_readiness = $1, manual_sleep = $2, manual_score_date = $3
		 WHERE id = $4`,
		readiness,
		sleep,
		scoreDate,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update manual scores", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// UpdateQuota writes the generation counter and its reset date in a single
// statement. Callers compute the rollover; this method only persists it.
func (r *UserRepository) UpdateQuota(ctx context.Context, userID string, used int, resetDate time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET generations_used = $1, generations_reset = $2
		 WHERE id = $3`,
		used,
		resetDate,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update generation quota", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// SaveLastPlan caches the most recent plan JSON and its generation time on
// the user row for redisplay without regeneration.
func (r *UserRepository) SaveLastPlan(ctx context.Context, userID string, plan json.RawMessage, generatedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_plan = $1, last_plan_at = $2
		 WHERE id = $3`,
		plan,
		generatedAt,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}
