package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekplan/internal/config"
	"weekplan/internal/external"
	"weekplan/internal/types"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// testNow is Wednesday 2026-08-26 15:00 UTC; the fixture location runs at
// UTC-5, putting local time at 10:00.
var testNow = time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)

const testOffsetSeconds = -5 * 3600

type mockProvider struct {
	geocodeFn  func(ctx context.Context, location string) (*external.GeocodeResult, error)
	forecastFn func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error)
}

func (m *mockProvider) Geocode(ctx context.Context, location string) (*external.GeocodeResult, error) {
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, location)
	}
	return &external.GeocodeResult{Name: "Testville", Latitude: 41.9, Longitude: -87.6}, nil
}

func (m *mockProvider) GetForecast(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
	if m.forecastFn != nil {
		return m.forecastFn(ctx, lat, lon, unit)
	}
	return testPayload(), nil
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// testPayload builds a 7-day provider payload starting on the local today.
func testPayload() *external.ForecastPayload {
	p := &external.ForecastPayload{
		Latitude:         41.9,
		Longitude:        -87.6,
		Timezone:         "America/Chicago",
		UTCOffsetSeconds: testOffsetSeconds,
	}
	for i := 0; i < 7; i++ {
		date := time.Date(2026, 8, 26+i, 0, 0, 0, 0, time.UTC)
		iso := date.Format("2006-01-02")
		p.Daily.Time = append(p.Daily.Time, iso)
		p.Daily.TempMax = append(p.Daily.TempMax, floatPtr(75))
		p.Daily.TempMin = append(p.Daily.TempMin, floatPtr(58))
		p.Daily.PrecipProbMax = append(p.Daily.PrecipProbMax, intPtr(10))
		p.Daily.WeatherCode = append(p.Daily.WeatherCode, intPtr(1))
		p.Daily.Sunrise = append(p.Daily.Sunrise, iso+"T06:12")
		p.Daily.Sunset = append(p.Daily.Sunset, iso+"T19:48")
		p.Daily.SnowfallSum = append(p.Daily.SnowfallSum, floatPtr(0))
		p.Daily.RainSum = append(p.Daily.RainSum, floatPtr(0))
		p.Daily.WindSpeedMax = append(p.Daily.WindSpeedMax, floatPtr(8))
		p.Daily.WindGustsMax = append(p.Daily.WindGustsMax, floatPtr(14))
	}
	return p
}

func newTestResolver(provider Provider) *Resolver {
	return NewResolver(provider, fixedClock{t: testNow}, nil)
}

func TestResolve_SevenDaysChronological(t *testing.T) {
	r := newTestResolver(&mockProvider{})

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)
	require.Len(t, resolved.Forecast, 7)
	assert.Equal(t, "America/Chicago", resolved.Timezone)

	assert.True(t, resolved.Forecast[0].IsToday)
	for i := 1; i < 7; i++ {
		assert.False(t, resolved.Forecast[i].IsToday)
		assert.True(t, resolved.Forecast[i].Date.After(resolved.Forecast[i-1].Date))
	}

	first := resolved.Forecast[0]
	assert.Equal(t, "Wednesday, August 26", first.DateDisplay)
	assert.Equal(t, "Wed 08/26", first.DateShort)
	assert.Equal(t, "06:12 AM", first.Sunrise)
	assert.Equal(t, "07:48 PM", first.Sunset)
}

func TestResolve_WindThresholds(t *testing.T) {
	cases := []struct {
		name      string
		sustained float64
		gusts     float64
		windy     bool
	}{
		{"both above", 20, 30, true},
		{"both below", 10, 20, false},
		{"sustained at threshold", 15, 0, true},
		{"gusts at threshold", 0, 25, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &mockProvider{
				forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
					p := testPayload()
					p.Daily.WindSpeedMax[0] = floatPtr(tc.sustained)
					p.Daily.WindGustsMax[0] = floatPtr(tc.gusts)
					return p, nil
				},
			}
			r := newTestResolver(provider)

			resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
			require.NoError(t, err)
			assert.Equal(t, tc.windy, resolved.Forecast[0].Windy)
		})
	}
}

func TestResolve_FahrenheitSumsUsedDirectly(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			p.Daily.RainSum[0] = floatPtr(0.4)
			p.Daily.SnowfallSum[0] = floatPtr(1.5)
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	day := resolved.Forecast[0]
	assert.Equal(t, "in", day.PrecipUnit)
	assert.InDelta(t, 0.4, *day.RainSum, 1e-9)
	assert.InDelta(t, 1.5, *day.SnowfallSum, 1e-9)
}

func TestResolve_CelsiusRainConvertedToCentimeters(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			p.Daily.RainSum[0] = floatPtr(12.0) // mm from the provider
			p.Daily.SnowfallSum[0] = floatPtr(3.0)
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitCelsius)
	require.NoError(t, err)

	day := resolved.Forecast[0]
	assert.Equal(t, "cm", day.PrecipUnit)
	assert.InDelta(t, 1.2, *day.RainSum, 1e-9)
	assert.InDelta(t, 3.0, *day.SnowfallSum, 1e-9, "snowfall keeps its numeric value as depth")
}

func TestResolve_PrecipTypePriority(t *testing.T) {
	cases := []struct {
		code int
		want types.PrecipType
	}{
		{99, types.PrecipThunderstormHail},
		{95, types.PrecipThunderstorm},
		{73, types.PrecipSnow},
		{66, types.PrecipFreezingRain},
		{63, types.PrecipRain},
		{1, types.PrecipNone},
	}

	for _, tc := range cases {
		provider := &mockProvider{
			forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
				p := testPayload()
				p.Daily.WeatherCode[0] = intPtr(tc.code)
				return p, nil
			},
		}
		r := newTestResolver(provider)

		resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resolved.Forecast[0].PrecipType, "code %d", tc.code)
	}
}

func TestResolve_GroundConditionFlags(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			p.Daily.PrecipProbMax[0] = intPtr(40) // at the wet-ground threshold
			p.Daily.PrecipProbMax[1] = intPtr(39)
			p.Daily.RainSum[2] = floatPtr(0.2) // rain with a low probability
			p.Daily.SnowfallSum[3] = floatPtr(0.5)
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	assert.True(t, resolved.Forecast[0].WetGround)
	assert.False(t, resolved.Forecast[1].WetGround)
	assert.True(t, resolved.Forecast[2].WetGround)
	assert.True(t, resolved.Forecast[3].SnowyGround)
	assert.False(t, resolved.Forecast[1].SnowyGround)
}

func TestResolve_ShortTermOutlookOnlyOnToday(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			// Local time is 10:00; hours 10:00-12:00 fall in the window.
			for _, hour := range []string{"09:00", "10:00", "11:00", "12:00", "13:00"} {
				p.Hourly.Time = append(p.Hourly.Time, "2026-08-26T"+hour)
				p.Hourly.Precipitation = append(p.Hourly.Precipitation, floatPtr(0.1))
				p.Hourly.Rain = append(p.Hourly.Rain, floatPtr(0.1))
				p.Hourly.Snowfall = append(p.Hourly.Snowfall, floatPtr(0))
				p.Hourly.WeatherCode = append(p.Hourly.WeatherCode, intPtr(61))
				p.Hourly.Temperature = append(p.Hourly.Temperature, floatPtr(70))
				p.Hourly.CloudCover = append(p.Hourly.CloudCover, intPtr(50))
			}
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	today := resolved.Forecast[0]
	require.NotNil(t, today.NextThreeHours)
	assert.InDelta(t, 0.3, today.NextThreeHours.Precipitation, 1e-9)
	assert.InDelta(t, 0.3, today.NextThreeHours.Rain, 1e-9)

	for _, day := range resolved.Forecast[1:] {
		assert.Nil(t, day.NextThreeHours)
	}
}

func TestResolve_CloudCoverDailyAverage(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			for i, cover := range []int{20, 40, 60} {
				p.Hourly.Time = append(p.Hourly.Time, time.Date(2026, 8, 27, i, 0, 0, 0, time.UTC).Format("2006-01-02T15:04"))
				p.Hourly.CloudCover = append(p.Hourly.CloudCover, intPtr(cover))
			}
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	require.NotNil(t, resolved.Forecast[1].CloudCover)
	assert.Equal(t, 40, *resolved.Forecast[1].CloudCover)
	assert.Nil(t, resolved.Forecast[2].CloudCover)
}

func TestResolve_GeocodeFailureSurfacesAsNotFound(t *testing.T) {
	provider := &mockProvider{
		geocodeFn: func(ctx context.Context, location string) (*external.GeocodeResult, error) {
			return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "boom", nil)
		},
	}
	r := newTestResolver(provider)

	_, err := r.Resolve(context.Background(), "Atlantis", types.UnitFahrenheit)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundLocation, appErr.Code)
}

func TestResolve_ForecastFailureSurfacesAsNotFound(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			return nil, errors.New("connection refused")
		},
	}
	r := newTestResolver(provider)

	_, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundLocation, appErr.Code)
}

func TestResolve_ShortTermOutlookConvertedForCelsius(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			p := testPayload()
			// Local time is 10:00; 2.0 mm of rain in each window hour.
			for _, hour := range []string{"10:00", "11:00", "12:00"} {
				p.Hourly.Time = append(p.Hourly.Time, "2026-08-26T"+hour)
				p.Hourly.Precipitation = append(p.Hourly.Precipitation, floatPtr(2.0))
				p.Hourly.Rain = append(p.Hourly.Rain, floatPtr(2.0))
				p.Hourly.Snowfall = append(p.Hourly.Snowfall, floatPtr(0.4))
			}
			return p, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitCelsius)
	require.NoError(t, err)

	today := resolved.Forecast[0]
	require.NotNil(t, today.NextThreeHours)
	assert.Equal(t, "cm", today.PrecipUnit)
	assert.InDelta(t, 0.6, today.NextThreeHours.Precipitation, 1e-9, "6 mm shown as cm")
	assert.InDelta(t, 0.6, today.NextThreeHours.Rain, 1e-9)
	assert.InDelta(t, 1.2, today.NextThreeHours.Snow, 1e-9, "snowfall is already cm")
}

func TestResolve_EmptyDailyBlockDegradesToSingleEntry(t *testing.T) {
	provider := &mockProvider{
		forecastFn: func(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error) {
			return &external.ForecastPayload{
				Timezone:         "America/Chicago",
				UTCOffsetSeconds: testOffsetSeconds,
			}, nil
		},
	}
	r := newTestResolver(provider)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	require.Len(t, resolved.Forecast, 1)
	assert.True(t, resolved.Forecast[0].IsToday)
	assert.Equal(t, "America/Chicago", resolved.Timezone)
	assert.Equal(t, types.PrecipNone, resolved.Forecast[0].PrecipType)
}

// A provider response with hourly data but no daily block must degrade to a
// single-entry forecast through the real HTTP client, not just mocks.
func TestResolve_HourlyOnlyResponseDegradesThroughClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"name": "Testville", "latitude": 41.9, "longitude": -87.6}]}`))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"timezone": "America/Chicago",
			"utc_offset_seconds": -18000,
			"daily": {"time": []},
			"hourly": {
				"time": ["2026-08-26T10:00", "2026-08-26T11:00", "2026-08-26T12:00"],
				"precipitation": [0.2, 0.2, 0.2],
				"rain": [0.2, 0.2, 0.2],
				"snowfall": [0, 0, 0]
			}
		}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := external.NewOpenMeteoClient(server.Client(), config.WeatherConfig{
		ForecastBaseURL:  server.URL + "/forecast",
		GeocodingBaseURL: server.URL + "/search",
		ForecastDays:     7,
	}, nil)
	r := NewResolver(client, fixedClock{t: testNow}, nil)

	resolved, err := r.Resolve(context.Background(), "Testville", types.UnitFahrenheit)
	require.NoError(t, err)

	require.Len(t, resolved.Forecast, 1)
	today := resolved.Forecast[0]
	assert.True(t, today.IsToday)
	assert.Equal(t, "America/Chicago", resolved.Timezone)
	require.NotNil(t, today.NextThreeHours)
	assert.InDelta(t, 0.6, today.NextThreeHours.Precipitation, 1e-9)
}
