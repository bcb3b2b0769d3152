package types

import (
	"sort"
	"strings"
	"time"
)

// TemperatureUnit selects the measurement system used for forecasts and
// display. It also controls which units are requested from the weather
// provider (inches/mph/fahrenheit for F, mm/mph/celsius for C).
type TemperatureUnit string

const (
	UnitCelsius    TemperatureUnit = "C"
	UnitFahrenheit TemperatureUnit = "F"
)

// ParseTemperatureUnit validates a raw unit string at the boundary.
func ParseTemperatureUnit(s string) (TemperatureUnit, bool) {
	switch TemperatureUnit(strings.ToUpper(strings.TrimSpace(s))) {
	case UnitCelsius:
		return UnitCelsius, true
	case UnitFahrenheit:
		return UnitFahrenheit, true
	}
	return "", false
}

// Intensity grades how physically demanding an activity is.
type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityMedium   Intensity = "medium"
	IntensityHigh     Intensity = "high"
	IntensityVeryHigh Intensity = "very_high"
)

// ParseIntensity validates a raw intensity string. Empty input is valid and
// returns the zero value (intensity is optional on activities).
func ParseIntensity(s string) (Intensity, bool) {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case IntensityLow:
		return IntensityLow, true
	case IntensityMedium:
		return IntensityMedium, true
	case IntensityHigh:
		return IntensityHigh, true
	case IntensityVeryHigh:
		return IntensityVeryHigh, true
	}
	return "", false
}

// Display returns the human-readable form used in prompts.
func (i Intensity) Display() string {
	switch i {
	case IntensityLow:
		return "Low"
	case IntensityMedium:
		return "Medium"
	case IntensityHigh:
		return "High"
	case IntensityVeryHigh:
		return "Very High"
	}
	return ""
}

// TimeOfDay is a coarse preferred scheduling window for an activity.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// ParseTimeOfDay validates a raw time-of-day string. Empty input is valid.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	switch TimeOfDay(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", true
	case TimeMorning:
		return TimeMorning, true
	case TimeAfternoon:
		return TimeAfternoon, true
	case TimeEvening:
		return TimeEvening, true
	case TimeNight:
		return TimeNight, true
	}
	return "", false
}

// Display returns the human-readable form used in prompts.
func (t TimeOfDay) Display() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// AppointmentType categorizes a calendar obligation.
type AppointmentType string

const (
	AppointmentWork    AppointmentType = "work"
	AppointmentSchool  AppointmentType = "school"
	AppointmentMedical AppointmentType = "medical"
	AppointmentSocial  AppointmentType = "social"
	AppointmentOther   AppointmentType = "other"
)

// ParseAppointmentType validates a raw appointment type. Empty input maps to
// AppointmentOther.
func ParseAppointmentType(s string) (AppointmentType, bool) {
	switch AppointmentType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return AppointmentOther, true
	case AppointmentWork:
		return AppointmentWork, true
	case AppointmentSchool:
		return AppointmentSchool, true
	case AppointmentMedical:
		return AppointmentMedical, true
	case AppointmentSocial:
		return AppointmentSocial, true
	case AppointmentOther:
		return AppointmentOther, true
	}
	return "", false
}

// Display returns the human-readable form used in prompts.
func (a AppointmentType) Display() string {
	if a == "" {
		return ""
	}
	return strings.ToUpper(string(a[:1])) + string(a[1:])
}

// RepeatFrequency is the cadence of a repeating appointment.
type RepeatFrequency string

const (
	FrequencyWeekly   RepeatFrequency = "weekly"
	FrequencyBiweekly RepeatFrequency = "biweekly"
)

// ParseRepeatFrequency validates a raw repeat frequency. Empty input maps to
// FrequencyWeekly.
func ParseRepeatFrequency(s string) (RepeatFrequency, bool) {
	switch RepeatFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FrequencyWeekly, true
	case FrequencyWeekly:
		return FrequencyWeekly, true
	case FrequencyBiweekly:
		return FrequencyBiweekly, true
	}
	return "", false
}

// WeekdaySet is a closed set of weekdays, stored sorted Monday-first.
// It replaces the comma-joined free-text day columns from legacy profiles:
// parsing happens once at the boundary and the rest of the system only sees
// time.Weekday values.
type WeekdaySet []time.Weekday

// weekdayNames maps accepted lowercase names to time.Weekday values.
var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// mondayFirst orders weekdays for display and storage (Monday=0 .. Sunday=6).
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseWeekdaySet parses a list of weekday names into a deduplicated,
// Monday-first sorted set. Unknown names fail the whole parse.
func ParseWeekdaySet(names []string) (WeekdaySet, bool) {
	seen := make(map[time.Weekday]struct{}, len(names))
	var set WeekdaySet
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, false
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		set = append(set, d)
	}
	sort.Slice(set, func(i, j int) bool {
		return mondayFirst(set[i]) < mondayFirst(set[j])
	})
	return set, true
}

// Contains reports whether the set includes the given weekday.
// An empty set never matches.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}

// Names returns the full weekday names in set order.
func (s WeekdaySet) Names() []string {
	names := make([]string, len(s))
	for i, d := range s {
		names[i] = d.String()
	}
	return names
}

// PrecipType categorizes precipitation derived from a provider weather code.
type PrecipType string

const (
	PrecipNone             PrecipType = "none"
	PrecipRain             PrecipType = "rain"
	PrecipFreezingRain     PrecipType = "freezing rain"
	PrecipSnow             PrecipType = "snow"
	PrecipThunderstorm     PrecipType = "thunderstorm"
	PrecipThunderstormHail PrecipType = "thunderstorm with hail"
)

// ReadinessSource identifies where the effective readiness scores came from.
type ReadinessSource string

const (
	SourceTrackerPrimary   ReadinessSource = "tracker_primary"
	SourceTrackerSecondary ReadinessSource = "tracker_secondary"
	SourceManual           ReadinessSource = "manual"
	SourceNone             ReadinessSource = "none"
)

// PlanTier identifies the subscription tier controlling weekly generation
// limits.
type PlanTier string

const (
	TierFree  PlanTier = "free"
	TierPaid  PlanTier = "paid"
	TierAdmin PlanTier = "admin"
)
