package types

import (
	"context"
	"encoding/json"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// RepositoryRegistry provides access to all repository instances.
type RepositoryRegistry interface {
	Users() UserRepository
	Activities() ActivityRepository
	Appointments() AppointmentRepository
}

// TxRunner is implemented by registries that can scope repository work to a
// single database transaction. fn receives a registry whose repositories all
// share the transaction; returning an error rolls everything back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(RepositoryRegistry) error) error
}

// UserRepository defines data access for user profiles, including the quota
// counters and cached-plan columns that live on the user row.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*UserProfile, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*UserProfile, error)
	UpdateProfile(ctx context.Context, profile *UserProfile) error
	UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error
	UpdateQuota(ctx context.Context, userID string, used int, resetDate time.Time) error
	SaveLastPlan(ctx context.Context, userID string, plan json.RawMessage, generatedAt time.Time) error
}

// ActivityRepository defines data access for activity preferences.
type ActivityRepository interface {
	ListByUser(ctx context.Context, userID string) ([]ActivityPreference, error)
	GetByID(ctx context.Context, userID, id string) (*ActivityPreference, error)
	Create(ctx context.Context, activity *ActivityPreference) error
	Update(ctx context.Context, activity *ActivityPreference) error
	Delete(ctx context.Context, userID, id string) error
}

// AppointmentRepository defines data access for calendar appointments.
type AppointmentRepository interface {
	ListByUser(ctx context.Context, userID string) ([]Appointment, error)
	ListWindow(ctx context.Context, userID string, from, to time.Time) ([]Appointment, error)
	GetByID(ctx context.Context, userID, id string) (*Appointment, error)
	Create(ctx context.Context, appt *Appointment) error
	Update(ctx context.Context, appt *Appointment) error
	Delete(ctx context.Context, userID, id string) error
}

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
