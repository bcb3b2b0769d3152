// Package config defines the global configuration structure for the weekplan
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"weekplan/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the weekplan service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"weekplan-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Weather    WeatherConfig
	Completion CompletionConfig
	Auth       AuthConfig
	Planner    PlannerConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout    time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds forecast and geocoding provider settings.
type WeatherConfig struct {
	ForecastBaseURL  string        `envconfig:"WEATHER_FORECAST_URL" default:"https://api.open-meteo.com/v1/forecast"`
	GeocodingBaseURL string        `envconfig:"WEATHER_GEOCODING_URL" default:"https://geocoding-api.open-meteo.com/v1/search"`
	Timeout          time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
	ForecastDays     int           `envconfig:"WEATHER_FORECAST_DAYS" default:"7"`
}

// CompletionConfig holds the schedule-generation model provider settings.
type CompletionConfig struct {
	APIKey      SecretString  `envconfig:"COMPLETION_API_KEY" validate:"required"`
	BaseURL     string        `envconfig:"COMPLETION_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"COMPLETION_MODEL" default:"gpt-4o"`
	Temperature float64       `envconfig:"COMPLETION_TEMPERATURE" default:"0.4"`
	MaxTokens   int           `envconfig:"COMPLETION_MAX_TOKENS" default:"3000"`
	Timeout     time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"90s"`
}

// AuthConfig holds API token authentication settings.
type AuthConfig struct {
	// TokenPepper is mixed into token hashes before storage so a leaked
	// database alone cannot be replayed against the API.
	TokenPepper SecretString `envconfig:"AUTH_TOKEN_PEPPER" validate:"required,min=16"`
}

// PlannerConfig holds plan-generation tuning knobs.
type PlannerConfig struct {
	// MaxActivities caps how many activity preferences are folded into a
	// single prompt.
	MaxActivities int `envconfig:"PLANNER_MAX_ACTIVITIES" default:"20"`
	// MaxAppointments caps how many upcoming appointments are folded into a
	// single prompt.
	MaxAppointments int `envconfig:"PLANNER_MAX_APPOINTMENTS" default:"50"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
