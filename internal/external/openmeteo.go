package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weekplan/internal/config"
	"weekplan/internal/types"
)

// dailyVariables are the per-day series requested from the forecast API.
// The weather resolver depends on every one of these being present.
const dailyVariables = "temperature_2m_max,temperature_2m_min,precipitation_probability_max," +
	"weathercode,sunrise,sunset,snowfall_sum,rain_sum,wind_speed_10m_max,wind_gusts_10m_max"

// hourlyVariables are the per-hour series used for the next-3-hours outlook
// and the daily cloud cover average.
const hourlyVariables = "precipitation,rain,snowfall,weathercode,temperature_2m,cloud_cover"

// ForecastPayload is the raw forecast response. Series values are pointers
// because the provider emits null for missing readings; the weather resolver
// owns all interpretation.
type ForecastPayload struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`

	Daily struct {
		Time             []string   `json:"time"`
		TempMax          []*float64 `json:"temperature_2m_max"`
		TempMin          []*float64 `json:"temperature_2m_min"`
		PrecipProbMax    []*int     `json:"precipitation_probability_max"`
		WeatherCode      []*int     `json:"weathercode"`
		Sunrise          []string   `json:"sunrise"`
		Sunset           []string   `json:"sunset"`
		SnowfallSum      []*float64 `json:"snowfall_sum"`
		RainSum          []*float64 `json:"rain_sum"`
		WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
		WindGustsMax     []*float64 `json:"wind_gusts_10m_max"`
	} `json:"daily"`

	Hourly struct {
		Time          []string   `json:"time"`
		Precipitation []*float64 `json:"precipitation"`
		Rain          []*float64 `json:"rain"`
		Snowfall      []*float64 `json:"snowfall"`
		WeatherCode   []*int     `json:"weathercode"`
		Temperature   []*float64 `json:"temperature_2m"`
		CloudCover    []*int     `json:"cloud_cover"`
	} `json:"hourly"`
}

// GeocodeResult is one city match from the geocoding API.
type GeocodeResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
}

// geocodeResponse is the envelope returned by the geocoding API.
type geocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

// OpenMeteoClient calls the Open-Meteo forecast and geocoding APIs through
// BaseClient, inheriting circuit breaking, retries, and error mapping.
// Open-Meteo requires no API key.
type OpenMeteoClient struct {
	base         *BaseClient
	forecastURL  string
	geocodingURL string
	forecastDays int
	logger       *slog.Logger
}

// NewOpenMeteoClient creates a new OpenMeteoClient. The httpClient timeout
// should come from WeatherConfig.Timeout.
func NewOpenMeteoClient(
	httpClient *http.Client,
	cfg config.WeatherConfig,
	logger *slog.Logger,
) *OpenMeteoClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"open-meteo",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"weekplan/1.0",
	)

	return &OpenMeteoClient{
		base:         base,
		forecastURL:  strings.TrimSuffix(cfg.ForecastBaseURL, "/"),
		geocodingURL: strings.TrimSuffix(cfg.GeocodingBaseURL, "/"),
		forecastDays: cfg.ForecastDays,
		logger:       logger,
	}
}

// NewOpenMeteoClientWithBase creates an OpenMeteoClient with a pre-configured
// BaseClient. Used by tests to control retry behavior.
func NewOpenMeteoClientWithBase(
	base *BaseClient,
	cfg config.WeatherConfig,
	logger *slog.Logger,
) *OpenMeteoClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoClient{
		base:         base,
		forecastURL:  strings.TrimSuffix(cfg.ForecastBaseURL, "/"),
		geocodingURL: strings.TrimSuffix(cfg.GeocodingBaseURL, "/"),
		forecastDays: cfg.ForecastDays,
		logger:       logger,
	}
}

// GetForecast fetches the daily and hourly forecast series for a coordinate.
//
// The provider is asked for its local timezone ("auto") so day boundaries
// follow the location, not the server. Wind speeds are always requested in
// mph regardless of the temperature unit; Fahrenheit users also get
// precipitation in inches, Celsius users get the provider's millimeter
// default.
func (c *OpenMeteoClient) GetForecast(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*ForecastPayload, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("daily", dailyVariables)
	q.Set("hourly", hourlyVariables)
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(c.forecastDays))
	q.Set("wind_speed_unit", "mph")
	if unit == types.UnitFahrenheit {
		q.Set("temperature_unit", "fahrenheit")
		q.Set("precipitation_unit", "inch")
	}

	reqURL := c.forecastURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create forecast request",
			err,
		)
	}

	c.logger.InfoContext(ctx, "fetching forecast",
		"latitude", lat,
		"longitude", lon,
		"unit", string(unit),
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("GetForecast", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "GetForecast")
	}

	var payload ForecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode forecast response",
			err,
		)
	}

	// An empty daily block is not an error here: the weather resolver
	// degrades it to a single-entry forecast carrying the timezone and
	// short-term figures.
	return &payload, nil
}

// SearchCities resolves a free-text location query to candidate cities.
// Returns at most count matches; an empty slice means no match.
func (c *OpenMeteoClient) SearchCities(ctx context.Context, query string, count int) ([]GeocodeResult, error) {
	if count <= 0 {
		count = 10
	}

	q := url.Values{}
	q.Set("name", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", "en")
	q.Set("format", "json")

	reqURL := c.geocodingURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create geocoding request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("SearchCities", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "SearchCities")
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode geocoding response",
			err,
		)
	}

	return payload.Results, nil
}

// Geocode resolves a location name to its best-match coordinate.
// Returns ErrCodeNotFoundLocation when the provider has no match.
func (c *OpenMeteoClient) Geocode(ctx context.Context, location string) (*GeocodeResult, error) {
	results, err := c.SearchCities(ctx, location, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundLocation,
			fmt.Sprintf("no coordinates found for %q", location),
			nil,
		)
	}
	return &results[0], nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *OpenMeteoClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("Open-Meteo API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	return types.NewAppError(
		types.ErrCodeUpstreamWeather,
		fmt.Sprintf("weather provider error (%d): %s", resp.StatusCode, operation),
		fmt.Errorf("open-meteo %s returned %d: %s", operation, resp.StatusCode, bodyStr),
	)
}

// wrapError converts errors from BaseClient.Do into weather provider errors.
func (c *OpenMeteoClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("weather provider %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamWeather,
		fmt.Sprintf("weather provider %s failed", operation),
		err,
	)
}
