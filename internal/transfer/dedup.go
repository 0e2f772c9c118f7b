package transfer

import (
	"math"
	"sort"
	"strings"
)

const (
	dedupDurationMinutes = 5
	dedupCost            = 5.0
)

// modeSet returns the sorted distinct modes of a route. Segment order is
// ignored, so walk+metro and metro+walk compare equal.
func modeSet(r *Route) string {
	seen := make(map[Mode]bool, len(r.Segments))
	modes := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if !seen[s.Mode] {
			seen[s.Mode] = true
			modes = append(modes, string(s.Mode))
		}
	}
	sort.Strings(modes)
	return strings.Join(modes, ",")
}

func similar(a, b *Route) bool {
	return modeSet(a) == modeSet(b) &&
		absInt(a.TotalDurationMinutes-b.TotalDurationMinutes) < dedupDurationMinutes &&
		math.Abs(a.TotalCost-b.TotalCost) < dedupCost
}

// Deduplicate drops every route similar to an earlier one, keeping the
// first-seen instance. Input order decides which duplicate survives.
func Deduplicate(routes []*Route) []*Route {
	out := make([]*Route, 0, len(routes))
	for _, r := range routes {
		dup := false
		for _, kept := range out {
			if similar(kept, r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
