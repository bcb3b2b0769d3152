// Package planner implements the generation pipeline: quota gating, prompt
// assembly, the completion call, and response normalization with a
// deterministic heuristic fallback.
package planner

import (
	"fmt"
	"strings"
	"time"

	"weekplan/internal/types"
)

// systemPrompt frames the model's role for every generation request.
const systemPrompt = "You are a personal activity planner. You build realistic weekly " +
	"schedules from the user's activities, calendar, weather, and recovery data. " +
	"You respond with a single JSON object and nothing else: no prose, no markdown."

// PromptInputs is everything the assembler needs. Now is the current
// instant in the planning location's local time; it is an explicit input so
// the prompt is a pure function of its arguments.
type PromptInputs struct {
	Now                 time.Time
	Activities          []types.ActivityPreference
	Appointments        []types.Appointment
	Forecast            *types.ResolvedForecast
	Readiness           types.ReadinessSnapshot
	LastActivity        string
	Injuries            string
	ExtraInfo           string
	Unit                types.TemperatureUnit
	ExcludedActivities  []string
	AllowMultiplePerDay bool
}

// PlanDates returns the 7 ISO date keys a plan must cover, today first.
func PlanDates(now time.Time) []string {
	day := now.Truncate(24 * time.Hour)
	dates := make([]string, 7)
	for i := range dates {
		dates[i] = day.AddDate(0, 0, i).Format("2006-01-02")
	}
	return dates
}

// Assembler builds the constraint prompt. It is stateless; every Build call
// is deterministic given identical inputs.
type Assembler struct{}

// SystemPrompt returns the fixed system instruction paired with every
// assembled user prompt.
func (Assembler) SystemPrompt() string {
	return systemPrompt
}

// Build renders the full user prompt: time anchor, activity catalog,
// obligations, free-text context, weather with safety rules, today's
// biometrics, then the rule list and required output schema with the 7
// date keys embedded verbatim.
func (a Assembler) Build(in PromptInputs) string {
	var b strings.Builder

	a.writeAnchor(&b, in)
	a.writeActivities(&b, in)
	a.writeAppointments(&b, in)
	a.writeContext(&b, in)
	a.writeWeather(&b, in)
	a.writeReadiness(&b, in)
	a.writeRules(&b, in)
	a.writeSchema(&b, in)

	return b.String()
}

func (Assembler) writeAnchor(b *strings.Builder, in PromptInputs) {
	fmt.Fprintf(b, "Today is %s. The current local time is %s.\n",
		in.Now.Format("Monday, January 02, 2006"), in.Now.Format("15:04"))
	fmt.Fprintf(b, "Plan the 7 days starting today, %s through %s.\n\n",
		in.Now.Format("2006-01-02"), in.Now.AddDate(0, 0, 6).Format("2006-01-02"))
}

func (Assembler) writeActivities(b *strings.Builder, in PromptInputs) {
	b.WriteString("## Activities\n")
	b.WriteString("The user wants a schedule built from these activities:\n")
	for _, act := range in.Activities {
		fmt.Fprintf(b, "- %s", act.Name)
		var attrs []string
		if act.DurationMinutes != nil {
			attrs = append(attrs, fmt.Sprintf("duration: %d minutes", *act.DurationMinutes))
		}
		if act.Intensity != "" {
			attrs = append(attrs, "intensity: "+act.Intensity.Display())
		}
		if act.Location != "" {
			attrs = append(attrs, "location: "+act.Location)
		}
		if act.PreferredTime != "" {
			attrs = append(attrs, "preferred time: "+act.PreferredTime.Display())
		}
		if names := act.PreferredDays.Names(); len(names) > 0 {
			attrs = append(attrs, "preferred days: "+strings.Join(names, ", "))
		}
		if act.Dependencies != "" {
			attrs = append(attrs, "requires: "+act.Dependencies)
		}
		if len(attrs) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(attrs, "; "))
		}
		b.WriteString("\n")
		if act.Description != "" {
			fmt.Fprintf(b, "  %s\n", act.Description)
		}
	}
	if len(in.ExcludedActivities) > 0 {
		fmt.Fprintf(b, "Do NOT schedule these activities this week: %s.\n",
			strings.Join(in.ExcludedActivities, ", "))
	}
	b.WriteString("\n")
}

// obligation is one concrete calendar commitment inside the planning window,
// after repeat expansion.
type obligation struct {
	date time.Time
	appt types.Appointment
}

// expandObligations flattens one-off and repeating appointments into the
// concrete dates they occupy within [start, start+days).
func expandObligations(appts []types.Appointment, start time.Time, days int) []obligation {
	start = start.Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days)

	var out []obligation
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		for _, appt := range appts {
			if occursOn(appt, d) {
				out = append(out, obligation{date: d, appt: appt})
			}
		}
	}
	return out
}

// occursOn reports whether an appointment lands on the given day, either
// directly or through its repeat rule.
func occursOn(appt types.Appointment, day time.Time) bool {
	apptDate := appt.Date.UTC().Truncate(24 * time.Hour)
	if apptDate.Equal(day) {
		return true
	}
	if appt.Repeat == nil || day.Before(apptDate) {
		return false
	}
	if appt.Repeat.Until != nil && day.After(appt.Repeat.Until.UTC().Truncate(24*time.Hour)) {
		return false
	}
	if !appt.Repeat.Days.Contains(day.Weekday()) {
		return false
	}
	if appt.Repeat.Frequency == types.FrequencyBiweekly {
		// Biweekly counts calendar weeks (Monday-start) from the
		// appointment's own week; only even offsets occur.
		weeks := int(startOfWeek(day).Sub(startOfWeek(apptDate)).Hours()) / (24 * 7)
		return weeks%2 == 0
	}
	return true
}

// startOfWeek truncates a day to its Monday.
func startOfWeek(day time.Time) time.Time {
	day = day.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func (Assembler) writeAppointments(b *strings.Builder, in PromptInputs) {
	obligations := expandObligations(in.Appointments, in.Now, 7)
	if len(obligations) == 0 {
		return
	}

	b.WriteString("## Appointments\n")
	b.WriteString("These are fixed commitments. Never schedule an activity that conflicts " +
		"with one. If an appointment has no time listed, treat that entire morning as unavailable.\n")
	for _, o := range obligations {
		fmt.Fprintf(b, "- %s on %s", o.appt.Title, o.date.Format("Monday 2006-01-02"))
		var attrs []string
		if o.appt.Type != "" {
			attrs = append(attrs, o.appt.Type.Display())
		}
		if o.appt.Time != nil {
			attrs = append(attrs, "at "+*o.appt.Time)
		}
		if o.appt.DurationMinutes != nil {
			attrs = append(attrs, fmt.Sprintf("%d minutes", *o.appt.DurationMinutes))
		}
		if len(attrs) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(attrs, ", "))
		}
		b.WriteString("\n")
		if o.appt.Description != "" {
			fmt.Fprintf(b, "  %s\n", o.appt.Description)
		}
	}
	b.WriteString("\n")
}

func (Assembler) writeContext(b *strings.Builder, in PromptInputs) {
	if in.LastActivity == "" && in.Injuries == "" && in.ExtraInfo == "" {
		return
	}
	b.WriteString("## Context\n")
	if in.LastActivity != "" {
		fmt.Fprintf(b, "Last completed activity: %s. Favor variety and adequate recovery "+
			"relative to it.\n", in.LastActivity)
	}
	if in.Injuries != "" {
		fmt.Fprintf(b, "Current injuries or pains: %s. This is a hard constraint: never "+
			"recommend an activity that could aggravate the stated condition; prefer a "+
			"modified version or rest instead.\n", in.Injuries)
	}
	if in.ExtraInfo != "" {
		fmt.Fprintf(b, "Additional context from the user: %s\n", in.ExtraInfo)
	}
	b.WriteString("\n")
}

func (a Assembler) writeWeather(b *strings.Builder, in PromptInputs) {
	if in.Forecast == nil || len(in.Forecast.Forecast) == 0 {
		return
	}

	tempUnit := "°C"
	if in.Unit == types.UnitFahrenheit {
		tempUnit = "°F"
	}

	b.WriteString("## Weather\n")
	for _, day := range in.Forecast.Forecast {
		fmt.Fprintf(b, "- %s:", day.DateShort)
		if day.TempMax != nil && day.TempMin != nil {
			fmt.Fprintf(b, " high %.0f%s / low %.0f%s,", *day.TempMax, tempUnit, *day.TempMin, tempUnit)
		}
		if day.PrecipProb != nil {
			fmt.Fprintf(b, " %d%% chance of precipitation", *day.PrecipProb)
			if day.PrecipType != types.PrecipNone {
				fmt.Fprintf(b, " (%s)", day.PrecipType)
			}
			b.WriteString(",")
		}
		if day.CloudCover != nil {
			fmt.Fprintf(b, " %d%% cloud cover,", *day.CloudCover)
		}
		fmt.Fprintf(b, " wind %.0f mph gusting %.0f mph", day.WindSpeed, day.WindGusts)
		if day.Sunrise != "" && day.Sunset != "" {
			fmt.Fprintf(b, ", sunrise %s, sunset %s", day.Sunrise, day.Sunset)
		}
		if tags := conditionTags(day); len(tags) > 0 {
			fmt.Fprintf(b, " [%s]", strings.Join(tags, ", "))
		}
		b.WriteString("\n")
		if day.IsToday && day.NextThreeHours != nil {
			fmt.Fprintf(b, "  Next 3 hours: %.1f %s precipitation (%.1f rain, %.1f snow).\n",
				day.NextThreeHours.Precipitation, day.PrecipUnit,
				day.NextThreeHours.Rain, day.NextThreeHours.Snow)
		}
	}

	b.WriteString("Weather safety rules:\n")
	b.WriteString("- Outdoor activities that need visibility must be scheduled strictly between sunrise and sunset.\n")
	b.WriteString("- On thunderstorm days, schedule no outdoor activity at all.\n")
	b.WriteString("- On snowy days, avoid cycling, running, and sports that need dry ground.\n")
	b.WriteString("- On windy days, avoid cycling and running on exposed routes.\n")
	b.WriteString("- High cloud cover makes light-dependent activities (photography, stargazing) unsuitable.\n")
	b.WriteString("\n")
}

// conditionTags lists the derived per-day condition markers in fixed order.
func conditionTags(day types.DailyForecast) []string {
	var tags []string
	if day.WetGround {
		tags = append(tags, "wet ground")
	}
	if day.SnowyGround {
		tags = append(tags, "snowy ground")
	}
	if day.Windy {
		tags = append(tags, "windy")
	}
	if day.PrecipType == types.PrecipThunderstorm || day.PrecipType == types.PrecipThunderstormHail {
		tags = append(tags, "thunderstorm")
	}
	return tags
}

func (Assembler) writeReadiness(b *strings.Builder, in PromptInputs) {
	r := in.Readiness
	if r.Readiness == nil && r.Sleep == nil {
		return
	}

	b.WriteString("## Recovery (today only)\n")
	if r.Readiness != nil {
		score := *r.Readiness
		switch {
		case score < 30:
			fmt.Fprintf(b, "Readiness score is %d (low): today must prioritize recovery; "+
				"schedule only low-intensity activity or rest.\n", score)
		case score <= 65:
			fmt.Fprintf(b, "Readiness score is %d (moderate): keep today's activity at "+
				"light to moderate intensity.\n", score)
		default:
			fmt.Fprintf(b, "Readiness score is %d (high): today can carry a demanding "+
				"activity if the schedule calls for one.\n", score)
		}
	}
	if r.Sleep != nil {
		score := *r.Sleep
		switch {
		case score < 70:
			fmt.Fprintf(b, "Sleep score is %d (poor): build in extra rest today.\n", score)
		case score <= 85:
			fmt.Fprintf(b, "Sleep score is %d (moderate).\n", score)
		default:
			fmt.Fprintf(b, "Sleep score is %d (excellent).\n", score)
		}
	}
	b.WriteString("These scores apply to today ONLY. Future days have no biometric data; " +
		"plan them from weather and preferences alone.\n\n")
}

func (Assembler) writeRules(b *strings.Builder, in PromptInputs) {
	b.WriteString("## Rules\n")
	b.WriteString("1. Use the exact dates listed below; today's date and local time are stated above.\n")
	b.WriteString("2. Never schedule an activity in conflict with a listed appointment.\n")
	b.WriteString("3. Respect daylight: outdoor activities fall between that day's sunrise and sunset.\n")
	b.WriteString("4. Balance the week: vary activities, and leave recovery room after high-intensity days.\n")
	if in.AllowMultiplePerDay {
		b.WriteString("5. You may schedule more than one activity on a day when time allows.\n")
	} else {
		b.WriteString("5. Schedule at most one activity per day.\n")
	}
	b.WriteString("\n")
}

func (Assembler) writeSchema(b *strings.Builder, in PromptInputs) {
	dates := PlanDates(in.Now)

	b.WriteString("## Required output\n")
	b.WriteString("Respond with exactly one JSON object keyed by these 7 dates, in this order. " +
		"Reuse the date keys and day names below verbatim. Each value has: \"day_name\", " +
		"\"activity\" (an activity name from the list above, or \"Rest\"), \"time\" " +
		"(24-hour HH:MM), \"duration_minutes\" (integer), and \"notes\" (one short sentence " +
		"explaining the choice).\n")
	b.WriteString("{\n")
	for i, date := range dates {
		day, _ := time.Parse("2006-01-02", date)
		comma := ","
		if i == len(dates)-1 {
			comma = ""
		}
		fmt.Fprintf(b, "  %q: {\"day_name\": %q, \"activity\": \"...\", \"time\": \"HH:MM\", \"duration_minutes\": 0, \"notes\": \"...\"}%s\n",
			date, day.Format("Monday"), comma)
	}
	b.WriteString("}\n")
}
