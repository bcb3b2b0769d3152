package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"weekplan/internal/types"
)

// --- MockAuthenticator ---

// MockAuthenticator implements the Authenticator interface for testing.
// It allows injecting a predefined Actor for any token, or returning a fixed
// error to simulate authentication failures.
//
// Usage:
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{ID: "user_test123", Type: types.ActorTypeUser},
//	}
//	actor, err := mock.ResolveToken(ctx, "tok_abc123")
//
// To simulate an error:
//
//	mock := &MockAuthenticator{
//	    Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil),
//	}
type MockAuthenticator struct {
	// Actor is the predefined Actor returned on successful token resolution.
	// If nil and Err is also nil, ResolveToken returns (nil, nil).
	Actor *types.Actor

	// Err is the error returned by ResolveToken. When set, Actor is ignored.
	Err error

	// ResolveTokenFunc overrides the default behavior when set, taking
	// precedence over Actor and Err. This allows tests to implement dynamic
	// behavior based on the token value.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	// mu protects Calls for concurrent access.
	mu sync.Mutex

	// Calls records every token passed to ResolveToken for assertion purposes.
	Calls []string
}

// ResolveToken implements the Authenticator interface.
// It records the call, then delegates to ResolveTokenFunc if set,
// otherwise returns Err (if set) or Actor.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// --- MockRegistry ---

// MockRegistry implements types.RepositoryRegistry for tests that need a
// Server without a database. Each repository field defaults to an empty mock;
// tests override individual function fields as needed.
type MockRegistry struct {
	UsersRepo        *MockUserRepo
	ActivitiesRepo   *MockActivityRepo
	AppointmentsRepo *MockAppointmentRepo
}

// NewMockRegistry creates a MockRegistry with empty mocks for every
// repository.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		UsersRepo:        &MockUserRepo{},
		ActivitiesRepo:   &MockActivityRepo{},
		AppointmentsRepo: &MockAppointmentRepo{},
	}
}

func (m *MockRegistry) Users() types.UserRepository               { return m.UsersRepo }
func (m *MockRegistry) Activities() types.ActivityRepository      { return m.ActivitiesRepo }
func (m *MockRegistry) Appointments() types.AppointmentRepository { return m.AppointmentsRepo }

// MockUserRepo implements types.UserRepository with overridable function
// fields. Unset functions return zero values and nil errors, except GetByID
// and GetByTokenHash which return a not-found error so auth paths fail closed.
type MockUserRepo struct {
	GetByIDFunc            func(ctx context.Context, id string) (*types.UserProfile, error)
	GetByTokenHashFunc     func(ctx context.Context, tokenHash string) (*types.UserProfile, error)
	UpdateProfileFunc      func(ctx context.Context, profile *types.UserProfile) error
	UpdateManualScoresFunc func(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error
	UpdateQuotaFunc        func(ctx context.Context, userID string, used int, resetDate time.Time) error
	SaveLastPlanFunc       func(ctx context.Context, userID string, plan json.RawMessage, generatedAt time.Time) error
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*types.UserProfile, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
}

func (m *MockUserRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*types.UserProfile, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
}

func (m *MockUserRepo) UpdateProfile(ctx context.Context, profile *types.UserProfile) error {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, profile)
	}
	return nil
}

func (m *MockUserRepo) UpdateManualScores(ctx context.Context, userID string, readiness, sleep *int, scoreDate time.Time) error {
	if m.UpdateManualScoresFunc != nil {
		return m.UpdateManualScoresFunc(ctx, userID, readiness, sleep, scoreDate)
	}
	return nil
}

func (m *MockUserRepo) UpdateQuota(ctx context.Context, userID string, used int, resetDate time.Time) error {
	if m.UpdateQuotaFunc != nil {
		return m.UpdateQuotaFunc(ctx, userID, used, resetDate)
	}
	return nil
}

func (m *MockUserRepo) SaveLastPlan(ctx context.Context, userID string, plan json.RawMessage, generatedAt time.Time) error {
	if m.SaveLastPlanFunc != nil {
		return m.SaveLastPlanFunc(ctx, userID, plan, generatedAt)
	}
	return nil
}

// MockActivityRepo implements types.ActivityRepository with overridable
// function fields.
type MockActivityRepo struct {
	ListByUserFunc func(ctx context.Context, userID string) ([]types.ActivityPreference, error)
	GetByIDFunc    func(ctx context.Context, userID, id string) (*types.ActivityPreference, error)
	CreateFunc     func(ctx context.Context, activity *types.ActivityPreference) error
	UpdateFunc     func(ctx context.Context, activity *types.ActivityPreference) error
	DeleteFunc     func(ctx context.Context, userID, id string) error
}

func (m *MockActivityRepo) ListByUser(ctx context.Context, userID string) ([]types.ActivityPreference, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []types.ActivityPreference{}, nil
}

func (m *MockActivityRepo) GetByID(ctx context.Context, userID, id string) (*types.ActivityPreference, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundActivity, "activity not found", nil)
}

func (m *MockActivityRepo) Create(ctx context.Context, activity *types.ActivityPreference) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, activity)
	}
	return nil
}

func (m *MockActivityRepo) Update(ctx context.Context, activity *types.ActivityPreference) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, activity)
	}
	return nil
}

func (m *MockActivityRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

// MockAppointmentRepo implements types.AppointmentRepository with overridable
// function fields.
type MockAppointmentRepo struct {
	ListByUserFunc func(ctx context.Context, userID string) ([]types.Appointment, error)
	ListWindowFunc func(ctx context.Context, userID string, from, to time.Time) ([]types.Appointment, error)
	GetByIDFunc    func(ctx context.Context, userID, id string) (*types.Appointment, error)
	CreateFunc     func(ctx context.Context, appt *types.Appointment) error
	UpdateFunc     func(ctx context.Context, appt *types.Appointment) error
	DeleteFunc     func(ctx context.Context, userID, id string) error
}

func (m *MockAppointmentRepo) ListByUser(ctx context.Context, userID string) ([]types.Appointment, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []types.Appointment{}, nil
}

func (m *MockAppointmentRepo) ListWindow(ctx context.Context, userID string, from, to time.Time) ([]types.Appointment, error) {
	if m.ListWindowFunc != nil {
		return m.ListWindowFunc(ctx, userID, from, to)
	}
	return []types.Appointment{}, nil
}

func (m *MockAppointmentRepo) GetByID(ctx context.Context, userID, id string) (*types.Appointment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
}

func (m *MockAppointmentRepo) Create(ctx context.Context, appt *types.Appointment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, appt)
	}
	return nil
}

func (m *MockAppointmentRepo) Update(ctx context.Context, appt *types.Appointment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, appt)
	}
	return nil
}

func (m *MockAppointmentRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

// Compile-time interface assertions.
var (
	_ Authenticator               = (*MockAuthenticator)(nil)
	_ types.RepositoryRegistry    = (*MockRegistry)(nil)
	_ types.UserRepository        = (*MockUserRepo)(nil)
	_ types.ActivityRepository    = (*MockActivityRepo)(nil)
	_ types.AppointmentRepository = (*MockAppointmentRepo)(nil)
)
