package transfer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripwise/transferroute/internal/geo"
	"github.com/tripwise/transferroute/internal/transportdata"
)

const allDay = "24/7"

// TaxiFare is the meter model used for taxi legs without provider pricing.
type TaxiFare struct {
	Base        float64
	PerKm       float64
	WaitMinutes int
	Currency    string
}

// DefaultTaxiFare returns a typical European city tariff.
func DefaultTaxiFare() TaxiFare {
	return TaxiFare{
		Base:        4.0,
		PerKm:       1.6,
		WaitMinutes: 5,
		Currency:    "EUR",
	}
}

// modeProfile holds the per-mode defaults applied to every segment.
type modeProfile struct {
	weatherDependent bool
	luggageFriendly  bool
	tracking         bool
	punctuality      Punctuality
	comfort          Comfort
	capacity         Capacity
	frequency        string
	alternatives     []string
}

var modeProfiles = map[Mode]modeProfile{
	ModeWalking:   {weatherDependent: true, punctuality: PunctualityVeryReliable, comfort: ComfortBasic, capacity: CapacityUnlimited, frequency: "continuous"},
	ModeMetro:     {luggageFriendly: true, tracking: true, punctuality: PunctualityVeryReliable, comfort: ComfortStandard, capacity: CapacityHigh, alternatives: []string{"bus", "taxi"}},
	ModeTrain:     {luggageFriendly: true, tracking: true, punctuality: PunctualityVeryReliable, comfort: ComfortStandard, capacity: CapacityHigh, alternatives: []string{"bus", "taxi"}},
	ModeTram:      {tracking: true, punctuality: PunctualityReliable, comfort: ComfortStandard, capacity: CapacityMedium, alternatives: []string{"bus", "walking"}},
	ModeBus:       {punctuality: PunctualityVariable, comfort: ComfortStandard, capacity: CapacityMedium, alternatives: []string{"metro", "taxi"}},
	ModeFerry:     {weatherDependent: true, luggageFriendly: true, punctuality: PunctualityVariable, comfort: ComfortStandard, capacity: CapacityHigh, alternatives: []string{"taxi"}},
	ModeTaxi:      {luggageFriendly: true, tracking: true, punctuality: PunctualityReliable, comfort: ComfortPremium, capacity: CapacityLow, frequency: "on demand", alternatives: []string{"rideshare"}},
	ModeRideshare: {luggageFriendly: true, tracking: true, punctuality: PunctualityVariable, comfort: ComfortStandard, capacity: CapacityLow, frequency: "on demand", alternatives: []string{"taxi"}},
}

func profileFor(m Mode) modeProfile {
	if p, ok := modeProfiles[m]; ok {
		return p
	}
	return modeProfiles[ModeBus]
}

func pointOf(p TransferPoint) geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// WalkSegment builds a walking leg between two points.
func WalkSegment(from, to TransferPoint) Segment {
	meters := geo.DistanceMeters(pointOf(from), pointOf(to))
	return Segment{
		Mode:             ModeWalking,
		From:             from,
		To:               to,
		DurationMinutes:  int(math.Ceil(geo.WalkingMinutes(meters))),
		DistanceMeters:   meters,
		OperatingHours:   allDay,
		Frequency:        "continuous",
		WeatherDependent: true,
		Accessible:       from.Accessible && to.Accessible,
		Instruction:      fmt.Sprintf("Walk to %s", nameOrCoords(to)),
	}
}

// TaxiSegment builds a metered taxi leg between two points.
func TaxiSegment(from, to TransferPoint, fare TaxiFare) Segment {
	meters := geo.DistanceMeters(pointOf(from), pointOf(to))
	roadKm := meters * geo.RoadDetourFactor / 1000
	return Segment{
		Mode:             ModeTaxi,
		From:             from,
		To:               to,
		DurationMinutes:  geo.DrivingMinutesBetween(pointOf(from), pointOf(to)),
		WaitMinutes:      fare.WaitMinutes,
		DistanceMeters:   meters * geo.RoadDetourFactor,
		Cost:             math.Round((fare.Base+fare.PerKm*roadKm)*100) / 100,
		Currency:         fare.Currency,
		Provider:         "Licensed taxi",
		OperatingHours:   allDay,
		Frequency:        "on demand",
		Accessible:       true,
		LuggageFriendly:  true,
		RealTimeTracking: true,
		Instruction:      fmt.Sprintf("Take a taxi to %s", nameOrCoords(to)),
	}
}

func nameOrCoords(p TransferPoint) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
}

// NormalizeMode maps provider mode and operator names onto Mode.
func NormalizeMode(raw, provider string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "walk", "walking", "foot":
		return ModeWalking
	case "metro", "subway", "underground":
		return ModeMetro
	case "bus", "coach", "shuttle":
		return ModeBus
	case "train", "rail", "railway":
		return ModeTrain
	case "tram", "light_rail", "streetcar":
		return ModeTram
	case "ferry", "boat":
		return ModeFerry
	case "taxi", "cab":
		return ModeTaxi
	case "rideshare", "ridehail", "ride_hailing":
		return ModeRideshare
	}

	switch ProviderCategory(provider) {
	case CategoryMetro:
		return ModeMetro
	case CategoryTrain:
		return ModeTrain
	case CategoryRideshare:
		return ModeRideshare
	default:
		return ModeBus
	}
}

func stopPoint(s transportdata.Stop, fallback TransferPoint) TransferPoint {
	if s.Name == "" && s.Lat == 0 && s.Lng == 0 {
		return fallback
	}
	return TransferPoint{
		Name:     s.Name,
		Lat:      s.Lat,
		Lng:      s.Lng,
		Type:     PointStop,
		Platform: s.Platform,
	}
}

// vehicleSegment builds a provider-backed leg with mode defaults applied.
func vehicleSegment(mode Mode, from, to TransferPoint, duration, wait int, cost float64, currency string, d transportdata.Details) Segment {
	p := profileFor(mode)
	hours := d.OperatingHours
	if hours == "" && mode.OnDemand() {
		hours = allDay
	}
	freq := d.Frequency
	if freq == "" {
		freq = p.frequency
	}
	provider := d.Provider
	if provider == "" {
		provider = string(mode)
	}

	verb := "Take"
	if mode.Scheduled() {
		verb = "Board"
	}

	return Segment{
		Mode:             mode,
		From:             from,
		To:               to,
		DurationMinutes:  max(duration, 1),
		WaitMinutes:      max(wait, 0),
		DistanceMeters:   geo.DistanceMeters(pointOf(from), pointOf(to)),
		Cost:             cost,
		Currency:         currency,
		Provider:         provider,
		OperatingHours:   hours,
		Frequency:        freq,
		WeatherDependent: p.weatherDependent,
		Accessible:       d.Accessible,
		LuggageFriendly:  d.LuggageFriendly || p.luggageFriendly,
		RealTimeTracking: d.RealTimeTracking || (mode.OnDemand() && p.tracking),
		Instruction:      fmt.Sprintf("%s the %s to %s", verb, provider, nameOrCoords(to)),
	}
}

// segmentsFromCandidate converts a provider candidate into ordered segments.
// Explicit legs are used when present; otherwise the candidate is split into
// an optional access walk and one vehicle leg.
func segmentsFromCandidate(req *TransferRequest, c transportdata.Candidate) []Segment {
	data := c.Data
	currency := data.Pricing.Currency

	if data.Route != nil && len(data.Route.Legs) > 0 {
		legs := data.Route.Legs
		segments := make([]Segment, 0, len(legs))
		prev := req.Origin
		for i, leg := range legs {
			from := stopPoint(leg.From, prev)
			to := stopPoint(leg.To, req.Destination)
			if i == len(legs)-1 && leg.To.Name == "" {
				to = req.Destination
			}

			mode := NormalizeMode(leg.Mode, leg.Provider)
			if mode == ModeWalking {
				seg := WalkSegment(from, to)
				seg.DurationMinutes = max(leg.DurationMinutes, 1)
				segments = append(segments, seg)
			} else {
				details := data.Details
				if leg.Provider != "" {
					details.Provider = leg.Provider
				}
				segments = append(segments, vehicleSegment(mode, from, to, leg.DurationMinutes, leg.WaitMinutes, leg.Fare, currency, details))
			}
			prev = to
		}
		return segments
	}

	mode := NormalizeMode(data.Mode, data.Details.Provider)
	if mode == ModeWalking {
		seg := WalkSegment(req.Origin, req.Destination)
		if data.Timing.DurationMinutes > 0 {
			seg.DurationMinutes = data.Timing.DurationMinutes
		}
		return []Segment{seg}
	}

	var segments []Segment
	boarding := req.Origin
	walking := data.Timing.WalkingMinutes
	if walking > 0 && !mode.OnDemand() {
		boarding.Name = "Boarding point"
		boarding.Type = PointStop
		if data.Route != nil && len(data.Route.Stops) > 0 {
			boarding = stopPoint(data.Route.Stops[0], boarding)
		}
		walk := WalkSegment(req.Origin, boarding)
		walk.DurationMinutes = walking
		segments = append(segments, walk)
	} else {
		walking = 0
	}

	ride := data.Timing.DurationMinutes - walking - data.Timing.WaitMinutes
	segments = append(segments, vehicleSegment(mode, boarding, req.Destination, ride, data.Timing.WaitMinutes, data.Pricing.Amount, currency, data.Details))

	return segments
}

// confidenceBaseline is the starting confidence per strategy.
var confidenceBaseline = map[Strategy]int{
	StrategyFastest:     80,
	StrategyReliable:    90,
	StrategyCheapest:    75,
	StrategySimplest:    85,
	StrategyHybrid:      75,
	StrategyTransitOnly: 80,
	StrategyFallback:    70,
}

// NewRoute assembles a route from ordered segments and derives every aggregate.
// TotalDurationMinutes is the sum of segment durations and waits.
func NewRoute(strategy Strategy, segments []Segment, now time.Time) *Route {
	r := &Route{
		ID:               uuid.NewString(),
		Strategy:         strategy,
		Segments:         segments,
		Complexity:       ComplexityFor(len(segments)),
		Accessible:       len(segments) > 0,
		Punctuality:      PunctualityVeryReliable,
		Capacity:         CapacityUnlimited,
		OperatingHours:   allDay,
		Confidence:       confidenceBaseline[strategy],
		LastUpdated:      now,
	}

	seenProvider := make(map[string]bool)
	vehicles := 0
	tracked := 0
	longest := -1
	luggageUnfriendly := false

	for i, s := range segments {
		r.TotalDurationMinutes += s.DurationMinutes + s.WaitMinutes
		r.TotalDistanceMeters += s.DistanceMeters
		r.TotalCost += s.Cost
		if r.Currency == "" && s.Currency != "" {
			r.Currency = s.Currency
		}
		r.WeatherSensitive = r.WeatherSensitive || s.WeatherDependent
		r.Accessible = r.Accessible && s.Accessible

		p := profileFor(s.Mode)
		if p.punctuality.rank() > r.Punctuality.rank() {
			r.Punctuality = p.punctuality
		}

		if s.Mode == ModeWalking {
			r.WalkingMinutes += s.DurationMinutes
			continue
		}

		vehicles++
		if s.RealTimeTracking {
			tracked++
		}
		if !s.LuggageFriendly {
			luggageUnfriendly = true
		}
		if p.capacity.rank() < r.Capacity.rank() {
			r.Capacity = p.capacity
		}
		if r.OperatingHours == allDay && s.OperatingHours != "" && s.OperatingHours != allDay {
			r.OperatingHours = s.OperatingHours
		}
		if r.Frequency == "" && s.Frequency != "" {
			r.Frequency = s.Frequency
		}
		if s.Provider != "" && !seenProvider[s.Provider] {
			seenProvider[s.Provider] = true
			r.Providers = append(r.Providers, s.Provider)
		}
		if longest < 0 || s.DurationMinutes > segments[longest].DurationMinutes {
			longest = i
		}
	}

	r.TotalCost = math.Round(r.TotalCost*100) / 100
	r.RealTimeTracking = vehicles > 0 && tracked == vehicles

	if longest >= 0 {
		r.Comfort = profileFor(segments[longest].Mode).comfort
	} else {
		r.Comfort = ComfortBasic
		r.Frequency = "continuous"
	}

	switch {
	case luggageUnfriendly || r.WalkingMinutes > 15:
		r.Luggage = LuggageDifficult
	case r.WalkingMinutes > 0 || vehicles > 1:
		r.Luggage = LuggageModerate
	default:
		r.Luggage = LuggageEasy
	}

	return r
}

// FallbackRoute synthesizes the always-available taxi used when no second
// candidate exists.
func FallbackRoute(req *TransferRequest, fare TaxiFare, now time.Time) *Route {
	seg := TaxiSegment(req.Origin, req.Destination, fare)
	seg.Instruction = fmt.Sprintf("Call or hail a licensed taxi to %s", nameOrCoords(req.Destination))
	r := NewRoute(StrategyFallback, []Segment{seg}, now)
	r.Accessible = true
	r.Punctuality = PunctualityReliable
	r.OperatingHours = allDay
	return r
}
