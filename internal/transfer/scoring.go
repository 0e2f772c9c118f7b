package transfer

import (
	"math"
	"sort"
)

// Blend selects how the five subscores combine into one score.
type Blend string

const (
	// BlendSequential interpolates the running score toward each subscore in
	// factor order: score = score*(1-w) + sub*w, starting from 100. The result
	// depends on factor order.
	BlendSequential Blend = "sequential"

	// BlendWeightedSum is the order-independent sum of w*sub.
	BlendWeightedSum Blend = "weighted_sum"
)

// Factor weights, applied in this order.
const (
	WeightTime        = 0.30
	WeightReliability = 0.25
	WeightCost        = 0.20
	WeightConvenience = 0.15
	WeightComfort     = 0.10
)

// Constraint violation codes.
const (
	ViolationMaxCost       = "max_cost"
	ViolationMaxWalking    = "max_walking_time"
	ViolationAccessibility = "accessibility"
	ViolationAvoidedMode   = "avoided_mode"
)

// Scorer ranks candidates against a request.
type Scorer struct {
	Blend Blend
}

func timeSubscore(r *Route) float64 {
	s := 100.0
	if r.TotalDurationMinutes > 60 {
		s -= 20
	}
	if r.TotalDurationMinutes > 90 {
		s -= 20
	}
	if r.TotalDurationMinutes > 120 {
		s -= 30
	}
	if r.WalkingMinutes > 15 {
		s -= 15
	}
	if r.WalkingMinutes > 25 {
		s -= 25
	}
	return math.Max(s, 0)
}

func reliabilitySubscore(r *Route) float64 {
	s := 100.0
	if r.WeatherSensitive {
		s -= 15
	}
	switch r.Complexity {
	case ComplexityComplex:
		s -= 20
	case ComplexityModerate:
		s -= 10
	}
	switch r.Punctuality {
	case PunctualityVeryReliable:
		s += 10
	case PunctualityVariable:
		s -= 15
	case PunctualityUnpredictable:
		s -= 30
	}
	return math.Max(s, 0)
}

func costSubscore(r *Route, c Constraints) float64 {
	s := 100.0
	if r.TotalCost > 50 {
		s -= 25
	}
	if r.TotalCost > 100 {
		s -= 25
	}
	if r.TotalCost == 0 {
		s += 20
	}
	if c.MaxCost != nil && r.TotalCost > *c.MaxCost {
		s -= 50
	}
	return math.Max(s, 0)
}

func usesAvoidedMode(r *Route, c Constraints) bool {
	for _, seg := range r.Segments {
		if c.Avoids(seg.Mode) {
			return true
		}
	}
	return false
}

func convenienceSubscore(r *Route, c Constraints) float64 {
	s := 100.0
	if c.Luggage == LuggageHeavy && r.Luggage == LuggageDifficult {
		s -= 30
	}
	if c.RequireAccessible && !r.Accessible {
		s -= 50
	}
	if usesAvoidedMode(r, c) {
		s -= 25
	}
	return math.Max(s, 0)
}

func hasIndoorWaiting(r *Route) bool {
	for _, seg := range r.Segments {
		if seg.From.HasIndoorWaiting() || seg.To.HasIndoorWaiting() {
			return true
		}
	}
	return false
}

func comfortSubscore(r *Route) float64 {
	s := 100.0
	switch r.Comfort {
	case ComfortPremium:
		s += 20
	case ComfortBasic:
		s -= 10
	}
	if hasIndoorWaiting(r) {
		s += 5
	}
	return math.Max(s, 0)
}

// Breakdown computes the five subscores for a route.
func Breakdown(r *Route, req *TransferRequest) ScoreBreakdown {
	return ScoreBreakdown{
		Time:        timeSubscore(r),
		Reliability: reliabilitySubscore(r),
		Cost:        costSubscore(r, req.Constraints),
		Convenience: convenienceSubscore(r, req.Constraints),
		Comfort:     comfortSubscore(r),
	}
}

// Combine blends a breakdown into one unrounded score.
func (s Scorer) Combine(b ScoreBreakdown) float64 {
	factors := [...]struct {
		weight float64
		sub    float64
	}{
		{WeightTime, b.Time},
		{WeightReliability, b.Reliability},
		{WeightCost, b.Cost},
		{WeightConvenience, b.Convenience},
		{WeightComfort, b.Comfort},
	}

	if s.Blend == BlendWeightedSum {
		total := 0.0
		for _, f := range factors {
			total += f.weight * f.sub
		}
		return total
	}

	score := 100.0
	for _, f := range factors {
		score = score*(1-f.weight) + f.sub*f.weight
	}
	return score
}

// Violations lists the constraints the route breaches. Violations are
// informational and never remove a candidate.
func Violations(r *Route, c Constraints) []string {
	var out []string
	if c.MaxCost != nil && r.TotalCost > *c.MaxCost {
		out = append(out, ViolationMaxCost)
	}
	if r.WalkingMinutes > c.WalkingLimit() {
		out = append(out, ViolationMaxWalking)
	}
	if c.RequireAccessible && !r.Accessible {
		out = append(out, ViolationAccessibility)
	}
	if usesAvoidedMode(r, c) {
		out = append(out, ViolationAvoidedMode)
	}
	return out
}

// Score sets Score, ScoreBreakdown and ConstraintViolations on r.
func (s Scorer) Score(r *Route, req *TransferRequest) {
	r.ScoreBreakdown = Breakdown(r, req)
	r.Score = int(math.Round(s.Combine(r.ScoreBreakdown)))
	r.ConstraintViolations = Violations(r, req.Constraints)
}

// Rank scores every route and sorts descending by score. Ties keep input order.
func (s Scorer) Rank(routes []*Route, req *TransferRequest) []*Route {
	for _, r := range routes {
		s.Score(r, req)
	}
	ranked := make([]*Route, len(routes))
	copy(ranked, routes)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}
