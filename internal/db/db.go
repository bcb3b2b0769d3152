// Package db provides PostgreSQL-backed repository implementations for the
// weekplan service. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weekplan/internal/config"
	"weekplan/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgx connection pool from the database configuration,
// applying the tuning parameters (pool size, lifetimes, health checks).
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	return pool, nil
}

// Registry bundles the concrete repositories behind types.RepositoryRegistry.
// It owns the connection pool and closes it on shutdown.
type Registry struct {
	pool *pgxpool.Pool

	users        *UserRepository
	activities   *ActivityRepository
	appointments *AppointmentRepository
}

// NewRegistry creates a Registry with repositories backed by the given pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{
		pool:         pool,
		users:        NewUserRepository(pool),
		activities:   NewActivityRepository(pool),
		appointments: NewAppointmentRepository(pool),
	}
}

// Users returns the user repository.
func (r *Registry) Users() types.UserRepository { return r.users }

// Activities returns the activity repository.
func (r *Registry) Activities() types.ActivityRepository { return r.activities }

// Appointments returns the appointment repository.
func (r *Registry) Appointments() types.AppointmentRepository { return r.appointments }

// RunInTx executes fn with a registry whose repositories share one
// transaction. The transaction commits when fn returns nil and rolls back
// otherwise.
func (r *Registry) RunInTx(ctx context.Context, fn func(types.RepositoryRegistry) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txRegistry := &Registry{
		users:        NewUserRepository(tx),
		activities:   NewActivityRepository(tx),
		appointments: NewAppointmentRepository(tx),
	}
	if err := fn(txRegistry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Registry) Close() error {
	r.pool.Close()
	return nil
}

// Probe implements core.HealthProbe for the database.
type Probe struct {
	Pool *pgxpool.Pool
}

// Name identifies the probe in health check responses.
func (Probe) Name() string { return "database" }

// Check pings the database within the caller's deadline.
func (p Probe) Check(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
