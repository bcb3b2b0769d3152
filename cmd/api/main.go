// Package main is the entry point for the weekplan API server.
//
// It loads configuration, connects to Postgres, wires the external weather
// and completion clients into the planning pipeline, builds the HTTP server
// with the core chassis (middleware, routing, health checks), and starts
// listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"weekplan/internal/api/handlers"
	"weekplan/internal/auth"
	"weekplan/internal/config"
	"weekplan/internal/core"
	"weekplan/internal/db"
	"weekplan/internal/external"
	"weekplan/internal/planner"
	"weekplan/internal/readiness"
	"weekplan/internal/types"
	"weekplan/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("weekplan API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	repos := db.NewRegistry(pool)

	srv, err := core.NewServer(cfg, repos, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewTokenAuthenticator(repos.Users(), cfg.Auth)
	srv.HealthProbes = append(srv.HealthProbes, db.Probe{Pool: pool})

	// External clients share the config-driven timeouts; the completion
	// call can run for tens of seconds.
	weatherHTTP := &http.Client{Timeout: cfg.Weather.Timeout}
	completionHTTP := &http.Client{Timeout: cfg.Completion.Timeout}

	openMeteo := external.NewOpenMeteoClient(weatherHTTP, cfg.Weather, logger)
	completion := external.NewCompletionClient(completionHTTP, cfg.Completion, logger)

	clock := types.RealClock{}
	forecasts := weather.NewResolver(openMeteo, clock, logger)
	snapshots := readiness.NewResolver(clock)
	plans := planner.NewService(repos, forecasts, snapshots, completion, clock, logger)

	planHandler := handlers.NewPlanHandler(plans, repos.Users(), forecasts, openMeteo, srv.Validator, logger)
	profileHandler := handlers.NewProfileHandler(repos.Users(), srv.Validator, logger, clock)
	activityHandler := handlers.NewActivityHandler(repos.Activities(), srv.Validator, logger)
	appointmentHandler := handlers.NewAppointmentHandler(repos.Appointments(), srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { planHandler.RegisterRoutes(r) },
		func(r chi.Router) { profileHandler.RegisterRoutes(r) },
		func(r chi.Router) { activityHandler.RegisterRoutes(r) },
		func(r chi.Router) { appointmentHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful
// shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
