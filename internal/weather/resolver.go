// Package weather resolves a free-text location into a normalized 7-day
// forecast: geocoding, unit handling, derived condition flags, and the
// same-day short-term precipitation outlook.
package weather

import (
	"context"
	"log/slog"
	"time"

	"weekplan/internal/external"
	"weekplan/internal/types"
)

// Provider abstracts the geocoding and forecast calls so tests can stub the
// upstream without HTTP.
type Provider interface {
	Geocode(ctx context.Context, location string) (*external.GeocodeResult, error)
	GetForecast(ctx context.Context, lat, lon float64, unit types.TemperatureUnit) (*external.ForecastPayload, error)
}

// Resolver turns a location string and unit preference into a
// types.ResolvedForecast. All provider failures surface as a single
// not-found error so callers degrade to planning without weather; nothing
// from this package aborts a planning request.
type Resolver struct {
	provider Provider
	clock    types.Clock
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil clock defaults to real UTC time.
func NewResolver(provider Provider, clock types.Clock, logger *slog.Logger) *Resolver {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, clock: clock, logger: logger}
}

// Resolve geocodes the location and fetches its forecast. On success the
// returned forecast has one chronological entry per provider day (normally
// 7, starting today). If the provider's daily block is missing, a minimal
// single-entry forecast carrying the timezone and short-term figures is
// returned instead of an error.
//
// Every failure path returns ErrCodeNotFoundLocation; the underlying cause
// is logged, never propagated.
func (r *Resolver) Resolve(ctx context.Context, location string, unit types.TemperatureUnit) (*types.ResolvedForecast, error) {
	notFound := func(stage string, err error) (*types.ResolvedForecast, error) {
		r.logger.WarnContext(ctx, "weather resolution failed",
			"location", location,
			"stage", stage,
			"error", err,
		)
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "weather data unavailable for location", nil)
	}

	geo, err := r.provider.Geocode(ctx, location)
	if err != nil {
		return notFound("geocode", err)
	}

	payload, err := r.provider.GetForecast(ctx, geo.Latitude, geo.Longitude, unit)
	if err != nil {
		return notFound("forecast", err)
	}

	return r.normalize(payload, unit), nil
}

// normalize converts the raw provider payload into per-day forecasts with
// derived flags, display strings, and the today-only short-term outlook.
func (r *Resolver) normalize(payload *external.ForecastPayload, unit types.TemperatureUnit) *types.ResolvedForecast {
	// "Now" in the location's own local time, derived from the provider's
	// UTC offset rather than the server timezone.
	localNow := r.clock.Now().UTC().Add(time.Duration(payload.UTCOffsetSeconds) * time.Second)
	localToday := localNow.Format("2006-01-02")

	outlook := shortTermOutlook(payload, localNow, unit)

	daily := payload.Daily
	if len(daily.Time) == 0 {
		// Degraded provider output: a single entry for today with only the
		// short-term figures. Callers must tolerate fewer than 7 entries.
		day, _ := time.Parse("2006-01-02", localToday)
		entry := types.DailyForecast{
			Date:           day,
			DateDisplay:    day.Format("Monday, January 02"),
			DateShort:      day.Format("Mon 01/02"),
			IsToday:        true,
			PrecipType:     types.PrecipNone,
			PrecipUnit:     precipUnit(unit),
			NextThreeHours: outlook,
		}
		return &types.ResolvedForecast{
			Forecast: []types.DailyForecast{entry},
			Timezone: payload.Timezone,
		}
	}

	cloudByDay := dailyCloudAverages(payload)

	forecast := make([]types.DailyForecast, 0, len(daily.Time))
	for i, dateStr := range daily.Time {
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		entry := types.DailyForecast{
			Date:        day,
			DateDisplay: day.Format("Monday, January 02"),
			DateShort:   day.Format("Mon 01/02"),
			IsToday:     dateStr == localToday,
			TempMax:     at(daily.TempMax, i),
			TempMin:     at(daily.TempMin, i),
			PrecipProb:  at(daily.PrecipProbMax, i),
			WeatherCode: at(daily.WeatherCode, i),
			PrecipType:  PrecipTypeForCode(at(daily.WeatherCode, i)),
			Sunrise:     localClock(daily.Sunrise, i),
			Sunset:      localClock(daily.Sunset, i),
			PrecipUnit:  precipUnit(unit),
		}

		entry.SnowfallSum = convertSnowfall(at(daily.SnowfallSum, i), unit)
		entry.RainSum = convertRain(at(daily.RainSum, i), unit)

		if v := at(daily.WindSpeedMax, i); v != nil {
			entry.WindSpeed = *v
		}
		if v := at(daily.WindGustsMax, i); v != nil {
			entry.WindGusts = *v
		}
		entry.Windy = entry.WindSpeed >= WindySustainedMPH || entry.WindGusts >= WindyGustMPH

		if avg, ok := cloudByDay[dateStr]; ok {
			entry.CloudCover = &avg
		}

		entry.WetGround = isWetGround(entry.PrecipProb, entry.RainSum)
		entry.SnowyGround = IsSnowCode(entry.WeatherCode) || (entry.SnowfallSum != nil && *entry.SnowfallSum > 0)

		if entry.IsToday {
			entry.NextThreeHours = outlook
		}

		forecast = append(forecast, entry)
	}

	return &types.ResolvedForecast{
		Forecast: forecast,
		Timezone: payload.Timezone,
	}
}

// precipUnit is the display unit for accumulation sums: inches for
// Fahrenheit users, centimeters for Celsius users.
func precipUnit(unit types.TemperatureUnit) string {
	if unit == types.UnitFahrenheit {
		return "in"
	}
	return "cm"
}

// convertRain normalizes a rain accumulation sum for display. Fahrenheit
// requests receive inches from the provider and use them as-is; Celsius
// requests receive millimeters, converted to centimeters.
func convertRain(v *float64, unit types.TemperatureUnit) *float64 {
	if v == nil || unit == types.UnitFahrenheit {
		return v
	}
	cm := *v * 0.1
	return &cm
}

// convertSnowfall normalizes a snowfall sum for display. Fahrenheit requests
// are inches, used as-is. For Celsius the provider reports millimeters of
// water equivalent; the numeric value is kept and labeled centimeters of
// snow depth (1 mm water ~ 1 cm settled snow).
func convertSnowfall(v *float64, unit types.TemperatureUnit) *float64 {
	return v
}

// isWetGround applies the wet-ground rule: precipitation probability at or
// above the threshold, or any measured rainfall.
func isWetGround(prob *int, rainSum *float64) bool {
	if prob != nil && *prob >= wetGroundProbThreshold {
		return true
	}
	return rainSum != nil && *rainSum > 0
}

// shortTermOutlook sums hourly precipitation, rain, and snowfall over the
// next 3 hours from localNow. Returns nil when no hourly entries fall in
// the window. Precipitation and rain follow the daily unit convention
// (mm→cm for Celsius); snowfall is already in cm.
func shortTermOutlook(payload *external.ForecastPayload, localNow time.Time, unit types.TemperatureUnit) *types.ShortTermOutlook {
	hourly := payload.Hourly
	if len(hourly.Time) == 0 {
		return nil
	}

	var out types.ShortTermOutlook
	found := false
	windowEnd := localNow.Add(3 * time.Hour)

	for i, ts := range hourly.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		// Hourly timestamps are already in location-local time; compare
		// against the hour containing localNow.
		if t.Before(localNow.Truncate(time.Hour)) || !t.Before(windowEnd) {
			continue
		}
		found = true
		if v := at(hourly.Precipitation, i); v != nil {
			out.Precipitation += *v
		}
		if v := at(hourly.Rain, i); v != nil {
			out.Rain += *v
		}
		if v := at(hourly.Snowfall, i); v != nil {
			out.Snow += *v
		}
	}

	if !found {
		return nil
	}
	if unit != types.UnitFahrenheit {
		out.Precipitation *= 0.1
		out.Rain *= 0.1
	}
	return &out
}

// dailyCloudAverages computes the mean hourly cloud cover per calendar day.
func dailyCloudAverages(payload *external.ForecastPayload) map[string]int {
	hourly := payload.Hourly
	sums := make(map[string]int)
	counts := make(map[string]int)

	for i, ts := range hourly.Time {
		if len(ts) < 10 {
			continue
		}
		v := at(hourly.CloudCover, i)
		if v == nil {
			continue
		}
		day := ts[:10]
		sums[day] += *v
		counts[day]++
	}

	avgs := make(map[string]int, len(sums))
	for day, sum := range sums {
		avgs[day] = sum / counts[day]
	}
	return avgs
}

// localClock reformats a provider local timestamp ("2006-01-02T15:04") as a
// 12-hour clock string. Returns empty on parse failure or missing index.
func localClock(series []string, i int) string {
	if i >= len(series) {
		return ""
	}
	t, err := time.Parse("2006-01-02T15:04", series[i])
	if err != nil {
		return ""
	}
	return t.Format("03:04 PM")
}

// at safely indexes a parallel series that may be shorter than the daily
// time axis.
func at[T any](s []*T, i int) *T {
	if i >= len(s) {
		return nil
	}
	return s[i]
}
