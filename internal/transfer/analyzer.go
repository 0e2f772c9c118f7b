package transfer

import (
	"fmt"
	"math"
	"time"
)

// Analyze compares the selected pair.
func Analyze(primary, backup *Route, now time.Time) RouteAnalysis {
	return RouteAnalysis{
		PrimaryAdvantages: advantages(primary, backup),
		BackupAdvantages:  advantages(backup, primary),
		RiskMitigation:    riskMitigation(primary, backup),
		UsageRecommendations: UsageRecommendations{
			Primary: usage(primary, backup),
			Backup:  usage(backup, primary),
		},
		Confidence: int(math.Round(float64(primary.Confidence+backup.Confidence) / 2)),
		AnalyzedAt: now,
	}
}

// advantages lists what r does better than other.
func advantages(r, other *Route) []string {
	out := []string{}
	if d := other.TotalDurationMinutes - r.TotalDurationMinutes; d > 0 {
		out = append(out, fmt.Sprintf("%d minutes faster", d))
	}
	if d := other.TotalCost - r.TotalCost; d > 0.005 {
		out = append(out, fmt.Sprintf("%.2f %s cheaper", d, currencyOf(r, other)))
	}
	if r.Complexity.rank() < other.Complexity.rank() {
		out = append(out, fmt.Sprintf("Simpler journey (%s instead of %s)", r.Complexity, other.Complexity))
	}
	if !r.WeatherSensitive && other.WeatherSensitive {
		out = append(out, "Not affected by weather")
	}
	if r.Punctuality.rank() < other.Punctuality.rank() {
		out = append(out, "More punctual")
	}
	if r.Accessible && !other.Accessible {
		out = append(out, "Fully accessible")
	}
	if r.WalkingMinutes < other.WalkingMinutes {
		out = append(out, fmt.Sprintf("%d fewer minutes of walking", other.WalkingMinutes-r.WalkingMinutes))
	}
	return out
}

func currencyOf(routes ...*Route) string {
	for _, r := range routes {
		if r.Currency != "" {
			return r.Currency
		}
	}
	return ""
}

func riskMitigation(primary, backup *Route) []string {
	out := []string{}
	if primary.Strategy != backup.Strategy || primary.LeadMode() != backup.LeadMode() {
		out = append(out, fmt.Sprintf("The backup relies on %s instead of %s, so a disruption to the primary does not affect it.",
			backup.LeadMode(), primary.LeadMode()))
	}
	if primary.WeatherSensitive != backup.WeatherSensitive {
		sheltered := "backup"
		if !primary.WeatherSensitive {
			sheltered = "primary"
		}
		out = append(out, fmt.Sprintf("If the weather turns, the %s route is unaffected.", sheltered))
	}
	if primary.Punctuality != backup.Punctuality {
		steady := backup
		if primary.Punctuality.rank() < backup.Punctuality.rank() {
			steady = primary
		}
		out = append(out, fmt.Sprintf("If services run late, the %s route is the more punctual choice.", steady.Type))
	}
	if len(out) == 0 {
		out = append(out, "Both routes behave similarly; allow extra buffer time.")
	}
	return out
}

func usage(r, other *Route) []string {
	out := []string{}
	if r.Type == RoutePrimary {
		out = append(out, "Use by default under normal conditions.")
	} else {
		out = append(out, fmt.Sprintf("Use if the %s is disrupted or unavailable.", other.LeadMode()))
	}
	if !r.WeatherSensitive && other.WeatherSensitive {
		out = append(out, "Prefer in bad weather.")
	}
	if r.TotalDurationMinutes < other.TotalDurationMinutes {
		out = append(out, "Prefer when short on time.")
	}
	if r.TotalCost < other.TotalCost {
		out = append(out, "Prefer on a tight budget.")
	}
	if r.Luggage == LuggageEasy && other.Luggage != LuggageEasy {
		out = append(out, "Prefer with heavy luggage.")
	}
	if r.OperatingHours == allDay && other.OperatingHours != allDay {
		out = append(out, "Prefer late at night or outside service hours.")
	}
	return out
}
