package transfer

import (
	"strings"
	"time"
)

// Category groups providers that fail together.
type Category string

const (
	CategoryRideshare Category = "rideshare"
	CategoryMetro     Category = "metro"
	CategoryBus       Category = "bus"
	CategoryTrain     Category = "train"
	CategoryOther     Category = "other"
)

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryRideshare, []string{"uber", "lyft", "bolt", "rideshare", "taxi", "cab", "freenow"}},
	{CategoryMetro, []string{"metro", "subway", "underground", "tube"}},
	{CategoryTrain, []string{"train", "rail", "express", "regional"}},
	{CategoryBus, []string{"bus", "coach", "shuttle"}},
}

// ProviderCategory classifies a provider name by substring.
func ProviderCategory(provider string) Category {
	name := strings.ToLower(provider)
	for _, c := range categoryKeywords {
		for _, k := range c.keywords {
			if strings.Contains(name, k) {
				return c.category
			}
		}
	}
	return CategoryOther
}

// Distinct reports whether b fails independently of a: a different lead
// mode, complexity class, or provider category.
func Distinct(a, b *Route) bool {
	return a.LeadMode() != b.LeadMode() ||
		a.Complexity != b.Complexity ||
		ProviderCategory(a.LeadProvider()) != ProviderCategory(b.LeadProvider())
}

// Selection is the outcome of pairing ranked candidates.
type Selection struct {
	Primary *Route
	Backup  *Route

	// Diverse is false when no distinct candidate existed and the
	// second-ranked route was taken as is.
	Diverse bool

	// Synthesized is true when the backup is the generic taxi fallback.
	Synthesized bool
}

// Select picks the best route as primary and the first strategically
// distinct route below it as backup. ranked must be sorted and non-empty.
func Select(ranked []*Route, req *TransferRequest, fare TaxiFare, now time.Time) Selection {
	primary := ranked[0]
	sel := Selection{Primary: primary}

	switch {
	case len(ranked) == 1:
		sel.Backup = FallbackRoute(req, fare, now)
		sel.Synthesized = true
		sel.Diverse = Distinct(primary, sel.Backup)
	default:
		for _, r := range ranked[1:] {
			if Distinct(primary, r) {
				sel.Backup = r
				sel.Diverse = true
				break
			}
		}
		if sel.Backup == nil {
			sel.Backup = ranked[1]
		}
	}

	sel.Primary.Type = RoutePrimary
	sel.Backup.Type = RouteBackup
	return sel
}
