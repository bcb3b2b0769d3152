package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"weekplan/internal/types"
)

// AppointmentRepository provides data access for the appointments table.
// The weekly repeat rule is stored as a JSONB column; repeating appointments
// are expanded into concrete dates by the planner, not in SQL.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `a.id, a.user_id, a.title, a.description, a.appointment_type,
	a.date, a.start_time, a.duration_minutes, a.repeat_rule, a.created_at`

func scanAppointment(row pgx.Row) (*types.Appointment, error) {
	var a types.Appointment
	var (
		description *string
		repeatRaw   []byte
	)
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&description,
		&a.Type,
		&a.Date,
		&a.Time,
		&a.DurationMinutes,
		&repeatRaw,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		a.Description = *description
	}
	if len(repeatRaw) > 0 {
		var rule types.RepeatRule
		if err := json.Unmarshal(repeatRaw, &rule); err != nil {
			return nil, err
		}
		a.Repeat = &rule
	}
	return &a, nil
}

// ListByUser returns all appointments for the user ordered by date.
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.user_id = $1
		 ORDER BY a.date, a.start_time NULLS LAST, a.id`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list appointments", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListWindow returns appointments relevant to the [from, to) window: rows
// dated inside the window plus any repeating appointment that started before
// it and has not ended. The planner expands repeats into concrete dates.
func (r *AppointmentRepository) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.user_id = $1
		   AND (
		     (a.date >= $2 AND a.date < $3)
		     OR (a.repeat_rule IS NOT NULL AND a.date < $3
		         AND (a.repeat_rule->>'until' IS NULL
		              OR (a.repeat_rule->>'until')::timestamptz >= $2))
		   )
		 ORDER BY a.date, a.start_time NULLS LAST, a.id`,
		userID,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list appointments", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]types.Appointment, error) {
	var appts []types.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment", err)
		}
		appts = append(appts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read appointments", err)
	}
	return appts, nil
}

// GetByID retrieves a single appointment scoped to the owning user.
// Returns ErrCodeNotFoundAppointment if no matching row exists.
func (r *AppointmentRepository) GetByID(ctx context.Context, userID, id string) (*types.Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.id = $1 AND a.user_id = $2`,
		id,
		userID,
	)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve appointment", err)
	}
	return a, nil
}

// Create inserts a new appointment record. A unique index on
// (user_id, title, date, start_time) guards against duplicate entries;
// violations surface as ErrCodeConflictAppointment (409).
func (r *AppointmentRepository) Create(ctx context.Context, appt *types.Appointment) error {
	repeatRaw, err := marshalRepeat(appt.Repeat)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode repeat rule", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO appointments (id, user_id, title, description, appointment_type,
		 date, start_time, duration_minutes, repeat_rule, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		appt.ID,
		appt.UserID,
		appt.Title,
		nilIfEmpty(appt.Description),
		appt.Type,
		appt.Date,
		appt.Time,
		appt.DurationMinutes,
		repeatRaw,
		nilIfZeroTime(appt.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictAppointment, "appointment already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create appointment", err)
	}
	return nil
}

// Update applies changes to an existing appointment scoped to the owning user.
func (r *AppointmentRepository) Update(ctx context.Context, appt *types.Appointment) error {
	repeatRaw, err := marshalRepeat(appt.Repeat)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode repeat rule", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE appointments SET title = $1, description = $2, appointment_type = $3,
		 date = $4, start_time = $5, duration_minutes = $6, repeat_rule = $7
		 WHERE id = $8 AND user_id = $9`,
		appt.Title,
		nilIfEmpty(appt.Description),
		appt.Type,
		appt.Date,
		appt.Time,
		appt.DurationMinutes,
		repeatRaw,
		appt.ID,
		appt.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictAppointment, "appointment already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
	}
	return nil
}

// Delete removes an appointment scoped to the owning user.
func (r *AppointmentRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM appointments WHERE id = $1 AND user_id = $2`,
		id,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
	}
	return nil
}

// marshalRepeat encodes the repeat rule for the JSONB column, mapping a nil
// rule to a NULL column value.
func marshalRepeat(rule *types.RepeatRule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	return json.Marshal(rule)
}
