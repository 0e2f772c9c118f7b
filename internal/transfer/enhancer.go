package transfer

import (
	"fmt"
	"math"
	"strings"
)

// Time-of-day and weather multipliers applied to the base duration.
var (
	timeOfDayFactor = map[TimeOfDay]float64{
		TimeEarlyMorning: 0.9,
		TimeMorning:      1.2,
		TimeAfternoon:    1.0,
		TimeEvening:      1.3,
		TimeNight:        0.8,
	}

	weatherFactor = map[Weather]float64{
		WeatherRain:  1.2,
		WeatherSnow:  1.4,
		WeatherStorm: 1.6,
	}
)

const (
	optimisticFactor  = 0.85
	pessimisticFactor = 1.5
	bufferPercent     = 30
)

// Enhance adds instructions, contingency text and the adjusted time
// estimate. TotalDurationMinutes is left untouched.
func Enhance(r *Route, tc TripContext) {
	r.Instructions = Instructions(r)
	r.ContingencyPlan = ContingencyPlan(r)
	r.TimeEstimate = EstimateTime(r.TotalDurationMinutes, tc)
}

// EstimateTime returns the three-point estimate for a base duration.
// Optimistic and pessimistic derive from the adjusted value, so the
// ordering optimistic <= realistic <= pessimistic always holds.
func EstimateTime(baseMinutes int, tc TripContext) TimeEstimate {
	tod, ok := timeOfDayFactor[tc.TimeOfDay]
	if !ok {
		tod = 1.0
	}
	wx, ok := weatherFactor[tc.Weather]
	if !ok {
		wx = 1.0
	}

	adjusted := float64(baseMinutes) * tod * wx
	return TimeEstimate{
		Optimistic:  int(math.Round(adjusted * optimisticFactor)),
		Realistic:   int(math.Round(adjusted)),
		Pessimistic: int(math.Round(adjusted * pessimisticFactor)),
	}
}

// Instructions expands segments into numbered steps.
func Instructions(r *Route) []RouteInstruction {
	out := make([]RouteInstruction, 0, len(r.Segments))
	for i, s := range r.Segments {
		in := RouteInstruction{
			Step:            i + 1,
			DurationMinutes: s.DurationMinutes + s.WaitMinutes,
			DistanceMeters:  math.Round(s.DistanceMeters),
			Landmarks:       s.Landmarks,
			Warnings:        append([]string(nil), s.Warnings...),
		}

		if s.Mode == ModeWalking {
			in.Action = "walk"
			in.Detail = fmt.Sprintf("Walk %.0f m from %s to %s", s.DistanceMeters, nameOrCoords(s.From), nameOrCoords(s.To))
			if len(s.Landmarks) > 0 {
				in.Detail += ", passing " + strings.Join(s.Landmarks, ", ")
			}
			in.Alternatives = []string{"Take a taxi if walking is not practical"}
		} else {
			in.Action = "board"
			if s.Mode.OnDemand() {
				in.Action = "ride"
			}
			in.Detail = boardingDetail(s)
			if s.WaitMinutes > 0 {
				in.Warnings = append(in.Warnings, fmt.Sprintf("Allow up to %d minutes waiting time", s.WaitMinutes))
			}
			for _, alt := range profileFor(s.Mode).alternatives {
				in.Alternatives = append(in.Alternatives, fmt.Sprintf("Switch to %s if the %s is unavailable", alt, s.Mode))
			}
		}

		out = append(out, in)
	}
	return out
}

func boardingDetail(s Segment) string {
	var b strings.Builder
	if s.Mode.OnDemand() {
		fmt.Fprintf(&b, "Take a %s (%s) from %s to %s", s.Mode, s.Provider, nameOrCoords(s.From), nameOrCoords(s.To))
	} else {
		fmt.Fprintf(&b, "Board the %s (%s) at %s", s.Mode, s.Provider, nameOrCoords(s.From))
		if s.From.Platform != "" {
			fmt.Fprintf(&b, ", platform %s", s.From.Platform)
		}
		fmt.Fprintf(&b, " and ride to %s", nameOrCoords(s.To))
	}
	if s.Cost > 0 {
		fmt.Fprintf(&b, ". Fare %.2f %s", s.Cost, s.Currency)
	}
	return b.String()
}

// ContingencyPlan assembles the fallback advice for a route.
func ContingencyPlan(r *Route) string {
	var parts []string

	if r.WeatherSensitive {
		parts = append(parts, "In bad weather, replace walking legs with a taxi.")
	}

	for _, s := range r.Segments {
		if s.Mode.Scheduled() {
			parts = append(parts, "If scheduled service is disrupted, switch to a taxi or rideshare.")
			break
		}
	}

	// Ceiling of 30% in integer arithmetic.
	buffer := (r.TotalDurationMinutes*bufferPercent + 99) / 100
	parts = append(parts, fmt.Sprintf("Allow %d minutes of buffer time.", buffer))

	if r.Type == RouteBackup {
		parts = append(parts, "A taxi is available 24/7 as the final fallback.")
	}

	return strings.Join(parts, " ")
}
