package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"weekplan/internal/types"
)

// ActivityRepository provides data access for the activities table.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates a new ActivityRepository backed by the given
// database connection (pool or transaction).
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `a.id, a.user_id, a.name, a.location, a.duration_minutes,
	a.intensity, a.dependencies, a.description, a.preferred_time, a.preferred_days, a.created_at`

// scanActivity scans a single activity row. preferred_days is a text[]
// column scanned into a string slice and parsed into a WeekdaySet.
func scanActivity(row pgx.Row) (*types.ActivityPreference, error) {
	var a types.ActivityPreference
	var (
		location      *string
		intensity     *string
		dependencies  *string
		description   *string
		preferredTime *string
		preferredDays []string
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&location,
		&a.DurationMinutes,
		&intensity,
		&dependencies,
		&description,
		&preferredTime,
		&preferredDays,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if location != nil {
		a.Location = *location
	}
	if intensity != nil {
		a.Intensity = types.Intensity(*intensity)
	}
	if dependencies != nil {
		a.Dependencies = *dependencies
	}
	if description != nil {
		a.Description = *description
	}
	if preferredTime != nil {
		a.PreferredTime = types.TimeOfDay(*preferredTime)
	}
	if len(preferredDays) > 0 {
		if days, ok := types.ParseWeekdaySet(preferredDays); ok {
			a.PreferredDays = days
		}
	}
	return &a, nil
}

// ListByUser returns all activities for the user, oldest first so prompt
// ordering is stable across generations.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string) ([]types.ActivityPreference, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+activityColumns+`
		 FROM activities a
		 WHERE a.user_id = $1
		 ORDER BY a.created_at, a.id`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list activities", err)
	}
	defer rows.Close()

	var activities []types.ActivityPreference
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read activities", err)
	}
	return activities, nil
}

// GetByID retrieves a single activity scoped to the owning user.
// Returns ErrCodeNotFoundActivity if no matching row exists.
func (r *ActivityRepository) GetByID(ctx context.Context, userID, id string) (*types.ActivityPreference, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+activityColumns+`
		 FROM activities a
		 WHERE a.id = $1 AND a.user_id = $2`,
		id,
		userID,
	)

	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundActivity, "activity not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve activity", err)
	}
	return a, nil
}

// Create inserts a new activity record.
func (r *ActivityRepository) Create(ctx context.Context, activity *types.ActivityPreference) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO activities (id, user_id, name, location, duration_minutes,
		 intensity, dependencies, description, preferred_time, preferred_days, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))`,
		activity.ID,
		activity.UserID,
		activity.Name,
		nilIfEmpty(activity.Location),
		activity.DurationMinutes,
		nilIfEmpty(string(activity.Intensity)),
		nilIfEmpty(activity.Dependencies),
		nilIfEmpty(activity.Description),
		nilIfEmpty(string(activity.PreferredTime)),
		activity.PreferredDays.Names(),
		nilIfZeroTime(activity.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create activity", err)
	}
	return nil
}

// Update applies changes to an existing activity scoped to the owning user.
func (r *ActivityRepository) Update(ctx context.Context, activity *types.ActivityPreference) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE activities SET name = $1, location = $2, duration_minutes = $3,
		 intensity = $4, dependencies = $5, description = $6,
		 preferred_time = $7, preferred_days = $8
		 WHERE id = $9 AND user_id = $10`,
		activity.Name,
		nilIfEmpty(activity.Location),
		activity.DurationMinutes,
		nilIfEmpty(string(activity.Intensity)),
		nilIfEmpty(activity.Dependencies),
		nilIfEmpty(activity.Description),
		nilIfEmpty(string(activity.PreferredTime)),
		activity.PreferredDays.Names(),
		activity.ID,
		activity.UserID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update activity", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundActivity, "activity not found", nil)
	}
	return nil
}

// Delete removes an activity scoped to the owning user.
func (r *ActivityRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM activities WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete activity", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundActivity, "activity not found", nil)
	}
	return nil
}
