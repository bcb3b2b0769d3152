package types

import (
	"encoding/json"
	"time"
)

// UserProfile is the per-user record the planning core reads and writes.
// Authentication, OAuth token storage, and billing state live with outside
// collaborators; only the fields the pipeline consumes are modeled here.
type UserProfile struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name,omitempty" db:"name"`

	// Planning context
	Location        string          `json:"location,omitempty" db:"location"`
	TemperatureUnit TemperatureUnit `json:"temperature_unit" db:"temperature_unit"`

	// Connected trackers. The secondary tracker provides readiness only.
	TrackerPrimaryConnected   bool `json:"tracker_primary_connected" db:"tracker_primary_connected"`
	TrackerPrimaryReadiness   *int `json:"tracker_primary_readiness,omitempty" db:"tracker_primary_readiness"`
	TrackerPrimarySleep       *int `json:"tracker_primary_sleep,omitempty" db:"tracker_primary_sleep"`
	TrackerSecondaryConnected bool `json:"tracker_secondary_connected" db:"tracker_secondary_connected"`
	TrackerSecondaryReadiness *int `json:"tracker_secondary_readiness,omitempty" db:"tracker_secondary_readiness"`

	// Manually entered scores, valid until the recorded date passes.
	ManualReadiness *int       `json:"manual_readiness,omitempty" db:"manual_readiness"`
	ManualSleep     *int       `json:"manual_sleep,omitempty" db:"manual_sleep"`
	ManualScoreDate *time.Time `json:"manual_score_date,omitempty" db:"manual_score_date"`

	// Free-text planning context persisted across generations.
	LastActivity string `json:"last_activity,omitempty" db:"last_activity"`
	Injuries     string `json:"injuries,omitempty" db:"injuries"`
	ExtraInfo    string `json:"extra_info,omitempty" db:"extra_info"`

	// Quota state
	Tier             PlanTier   `json:"tier" db:"tier"`
	GenerationsUsed  int        `json:"generations_used" db:"generations_used"`
	GenerationsReset *time.Time `json:"generations_reset,omitempty" db:"generations_reset"`

	// Last successful plan, cached for redisplay.
	LastPlan   json.RawMessage `json:"-" db:"last_plan"`
	LastPlanAt *time.Time      `json:"last_plan_at,omitempty" db:"last_plan_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActivityPreference is a user-defined recurring activity. Name is required;
// every other attribute is optional and omitted from prompts when unset.
type ActivityPreference struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"-" db:"user_id"`
	Name            string     `json:"name" db:"name"`
	Location        string     `json:"location,omitempty" db:"location"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Intensity       Intensity  `json:"intensity,omitempty" db:"intensity"`
	Dependencies    string     `json:"dependencies,omitempty" db:"dependencies"`
	Description     string     `json:"description,omitempty" db:"description"`
	PreferredTime   TimeOfDay  `json:"preferred_time,omitempty" db:"preferred_time"`
	PreferredDays   WeekdaySet `json:"preferred_days,omitempty" db:"preferred_days"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// RepeatRule describes a recurring schedule for an appointment. An empty
// Frequency means weekly.
type RepeatRule struct {
	Days      WeekdaySet      `json:"days"`
	Frequency RepeatFrequency `json:"frequency,omitempty"`
	Until     *time.Time      `json:"until,omitempty"`
}

// Appointment is a fixed calendar obligation that constrains planning.
// Time, when present, is a 24-hour "HH:MM" string validated at the boundary.
type Appointment struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"-" db:"user_id"`
	Title           string          `json:"title" db:"title"`
	Description     string          `json:"description,omitempty" db:"description"`
	Type            AppointmentType `json:"type" db:"appointment_type"`
	Date            time.Time       `json:"date" db:"date"`
	Time            *string         `json:"time,omitempty" db:"start_time"`
	DurationMinutes *int            `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Repeat          *RepeatRule     `json:"repeat,omitempty" db:"repeat_rule"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// ShortTermOutlook carries accumulation estimates for the next three hours of
// the current day, in the forecast's precipitation unit.
type ShortTermOutlook struct {
	Precipitation float64 `json:"precipitation"`
	Rain          float64 `json:"rain"`
	Snow          float64 `json:"snow"`
}

// DailyForecast is one normalized day of resolved weather. Nullable fields
// use pointers because the degraded single-entry fallback carries only the
// short-term outlook and timezone-derived date.
type DailyForecast struct {
	Date        time.Time `json:"date"`
	DateDisplay string    `json:"date_display"` // e.g. "Monday, January 02"
	DateShort   string    `json:"date_short"`   // e.g. "Mon 01/02"
	IsToday     bool      `json:"is_today"`

	TempMax     *float64   `json:"temp_max,omitempty"`
	TempMin     *float64   `json:"temp_min,omitempty"`
	PrecipProb  *int       `json:"precip_prob,omitempty"`
	WeatherCode *int       `json:"weather_code,omitempty"`
	PrecipType  PrecipType `json:"precip_type"`

	Sunrise string `json:"sunrise,omitempty"` // local "03:04 PM" display
	Sunset  string `json:"sunset,omitempty"`

	// Accumulation sums in PrecipUnit ("in" or "cm").
	SnowfallSum *float64 `json:"snowfall_sum,omitempty"`
	RainSum     *float64 `json:"rain_sum,omitempty"`
	PrecipUnit  string   `json:"precip_unit"`

	WindSpeed  float64 `json:"wind_speed"`             // mph, daily max sustained
	WindGusts  float64 `json:"wind_gusts"`             // mph, daily max gusts
	CloudCover *int    `json:"cloud_cover,omitempty"` // daily average %

	WetGround   bool `json:"wet_ground"`
	SnowyGround bool `json:"snowy_ground"`
	Windy       bool `json:"windy"`

	// Populated only on the entry whose IsToday is true.
	NextThreeHours *ShortTermOutlook `json:"next_three_hours,omitempty"`
}

// ResolvedForecast is the Weather Resolver's output: a chronological run of
// daily forecasts (normally 7, possibly fewer on degraded provider output)
// plus the location's IANA timezone.
type ResolvedForecast struct {
	Forecast []DailyForecast `json:"forecast"`
	Timezone string          `json:"timezone"`
}

// City is a geocoding search result for location pickers.
type City struct {
	Name      string  `json:"name"`
	Display   string  `json:"display"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReadinessSnapshot is the effective biometric state for "today".
// Nil scores mean no usable data from any source.
type ReadinessSnapshot struct {
	Readiness *int            `json:"readiness,omitempty"`
	Sleep     *int            `json:"sleep,omitempty"`
	Source    ReadinessSource `json:"source"`
}

// RestActivity is the sentinel activity name for recovery days. Rest entries
// carry no scheduling significance for downstream calendar export.
const RestActivity = "Rest"

// PlanDay is one day's entry in a weekly plan.
type PlanDay struct {
	DayName         string `json:"day_name"`
	Activity        string `json:"activity"`
	Time            string `json:"time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes"`
	Weather         string `json:"weather,omitempty"`
}

// WeeklyPlan maps the 7 upcoming ISO dates (today first) to per-day entries.
// Structured is false when the plan came from the deterministic heuristic
// fallback rather than a parsed model response.
type WeeklyPlan struct {
	Days        map[string]PlanDay `json:"days"`
	Structured  bool               `json:"structured"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// GenerationQuota reports a user's standing against the weekly limit.
type GenerationQuota struct {
	Tier      PlanTier   `json:"tier"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"` // 0 means unlimited
	ResetDate *time.Time `json:"reset_date,omitempty"`
}

// TierLimits defines the per-tier weekly generation allowance.
// Zero means unlimited; enforcement code must treat 0 as no limit.
type TierLimits struct {
	WeeklyGenerations int `json:"weekly_generations"`
}
