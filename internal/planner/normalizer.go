package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"weekplan/internal/types"
)

// heuristicPrecipThreshold is the precipitation probability above which the
// fallback plan keeps a day indoors.
const heuristicPrecipThreshold = 60

// FallbackInputs is what the heuristic planner needs when the model response
// is absent or unusable.
type FallbackInputs struct {
	Now        time.Time
	Activities []types.ActivityPreference
	Forecast   *types.ResolvedForecast
}

// Normalizer turns raw completion text into a WeeklyPlan, degrading to the
// deterministic heuristic when the text is empty, unparseable, or missing
// any of the 7 expected date keys.
type Normalizer struct {
	clock types.Clock
}

// NewNormalizer creates a Normalizer. A nil clock defaults to real UTC time.
func NewNormalizer(clock types.Clock) *Normalizer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Normalizer{clock: clock}
}

// Parse attempts a strict structured parse of raw and falls back to
// Heuristic on any failure. It never returns an error: the pipeline always
// produces a displayable 7-day plan.
func (n *Normalizer) Parse(raw string, fallback FallbackInputs) *types.WeeklyPlan {
	cleaned := stripFence(raw)
	if cleaned == "" {
		return n.Heuristic(fallback)
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()

	var days map[string]types.PlanDay
	if err := dec.Decode(&days); err != nil {
		return n.Heuristic(fallback)
	}

	// The model must echo all 7 requested date keys; a truncated or
	// reordered-onto-wrong-dates response is treated as malformed.
	for _, date := range PlanDates(fallback.Now) {
		if _, ok := days[date]; !ok {
			return n.Heuristic(fallback)
		}
	}

	return &types.WeeklyPlan{
		Days:        days,
		Structured:  true,
		GeneratedAt: n.clock.Now().UTC(),
	}
}

// Heuristic builds the deterministic fallback plan: rainy forecast days stay
// indoors, other days rotate through the activity list, and without any
// forecast every third day is a rest day.
func (n *Normalizer) Heuristic(in FallbackInputs) *types.WeeklyPlan {
	byDate := make(map[string]types.DailyForecast)
	if in.Forecast != nil {
		for _, day := range in.Forecast.Forecast {
			byDate[day.Date.Format("2006-01-02")] = day
		}
	}
	hasForecast := len(byDate) > 0

	days := make(map[string]types.PlanDay, 7)
	for i, date := range PlanDates(in.Now) {
		day, _ := time.Parse("2006-01-02", date)
		entry := types.PlanDay{DayName: day.Format("Monday")}

		forecast, haveDay := byDate[date]
		switch {
		case haveDay && forecast.PrecipProb != nil && *forecast.PrecipProb > heuristicPrecipThreshold:
			entry.Activity = types.RestActivity
			entry.Notes = fmt.Sprintf("High chance of precipitation (%d%%); stay indoors and rest.",
				*forecast.PrecipProb)
		case !hasForecast && i%3 == 0:
			entry.Activity = types.RestActivity
			entry.Notes = "Scheduled rest day for recovery."
		case len(in.Activities) > 0:
			act := in.Activities[i%len(in.Activities)]
			entry.Activity = act.Name
			entry.Time = defaultTimeFor(act.PreferredTime)
			if act.DurationMinutes != nil {
				entry.DurationMinutes = *act.DurationMinutes
			}
			entry.Notes = "Planned from your activity rotation."
		default:
			entry.Activity = types.RestActivity
			entry.Notes = "No activities on file; rest day."
		}

		days[date] = entry
	}

	return &types.WeeklyPlan{
		Days:        days,
		Structured:  false,
		GeneratedAt: n.clock.Now().UTC(),
	}
}

// stripFence removes a single wrapping markdown code fence, with or without
// a language tag, and trims surrounding whitespace.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop a language tag like "json" on the fence line.
		first := strings.TrimSpace(s[:nl])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// defaultTimeFor maps a preferred time of day to a representative start
// time for heuristic entries.
func defaultTimeFor(t types.TimeOfDay) string {
	switch t {
	case types.TimeMorning:
		return "08:00"
	case types.TimeAfternoon:
		return "13:00"
	case types.TimeEvening:
		return "18:00"
	case types.TimeNight:
		return "21:00"
	default:
		return "09:00"
	}
}
