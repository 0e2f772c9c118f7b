// Package transfer composes a primary and a strategically independent backup
// journey between two points. Six strategies generate candidates concurrently;
// candidates are deduplicated, scored, ranked, paired for diversity, enhanced
// with instructions and contingency text, compared, and cached.
package transfer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transfer errors.
var (
	// ErrNoRouteFound is returned when every strategy was infeasible.
	ErrNoRouteFound = errors.New("no route found")

	// ErrInvalidRequest is wrapped by *ValidationError.
	ErrInvalidRequest = errors.New("invalid transfer request")

	// ErrCacheMiss is returned by a Cache when it holds no entry for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoCandidate is returned by a strategy that found nothing viable.
	// It is an expected outcome, not a failure.
	ErrNoCandidate = errors.New("strategy produced no candidate")
)

// Mode is the transport mode of a segment.
type Mode string

const (
	ModeWalking   Mode = "walking"
	ModeMetro     Mode = "metro"
	ModeBus       Mode = "bus"
	ModeTrain     Mode = "train"
	ModeTaxi      Mode = "taxi"
	ModeRideshare Mode = "rideshare"
	ModeFerry     Mode = "ferry"
	ModeTram      Mode = "tram"
)

// Scheduled reports whether the mode runs to a timetable.
func (m Mode) Scheduled() bool {
	switch m {
	case ModeMetro, ModeBus, ModeTrain, ModeFerry, ModeTram:
		return true
	default:
		return false
	}
}

// OnDemand reports whether the mode is hailed rather than boarded at a stop.
func (m Mode) OnDemand() bool {
	return m == ModeTaxi || m == ModeRideshare
}

// PointType is the semantic type of a transfer point.
type PointType string

const (
	PointHotel    PointType = "hotel"
	PointAirport  PointType = "airport"
	PointStation  PointType = "station"
	PointStop     PointType = "stop"
	PointLandmark PointType = "landmark"
	PointAddress  PointType = "address"
)

// Strategy names the generator that produced a route.
type Strategy string

const (
	StrategyFastest     Strategy = "fastest"
	StrategyReliable    Strategy = "reliable"
	StrategyCheapest    Strategy = "cheapest"
	StrategySimplest    Strategy = "simplest"
	StrategyHybrid      Strategy = "hybrid"
	StrategyTransitOnly Strategy = "transit_only"
	StrategyFallback    Strategy = "fallback"
)

// RouteType tags a selected route.
type RouteType string

const (
	RoutePrimary RouteType = "primary"
	RouteBackup  RouteType = "backup"
)

// Complexity is the segment-count bucket of a route.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ComplexityFor returns the complexity class for a segment count.
func ComplexityFor(segments int) Complexity {
	switch {
	case segments <= 1:
		return ComplexitySimple
	case segments == 2:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}

func (c Complexity) rank() int {
	switch c {
	case ComplexitySimple:
		return 0
	case ComplexityModerate:
		return 1
	default:
		return 2
	}
}

// Punctuality describes how closely a route keeps to its estimate.
type Punctuality string

const (
	PunctualityVeryReliable  Punctuality = "very_reliable"
	PunctualityReliable      Punctuality = "reliable"
	PunctualityVariable      Punctuality = "variable"
	PunctualityUnpredictable Punctuality = "unpredictable"
)

func (p Punctuality) rank() int {
	switch p {
	case PunctualityVeryReliable:
		return 0
	case PunctualityReliable:
		return 1
	case PunctualityVariable:
		return 2
	default:
		return 3
	}
}

// Comfort is the comfort class of a route.
type Comfort string

const (
	ComfortBasic    Comfort = "basic"
	ComfortStandard Comfort = "standard"
	ComfortPremium  Comfort = "premium"
)

// LuggageClass describes how easy the route is with luggage.
type LuggageClass string

const (
	LuggageEasy      LuggageClass = "easy"
	LuggageModerate  LuggageClass = "moderate"
	LuggageDifficult LuggageClass = "difficult"
)

// Capacity is the passenger capacity class of a route.
type Capacity string

const (
	CapacityLow       Capacity = "low"
	CapacityMedium    Capacity = "medium"
	CapacityHigh      Capacity = "high"
	CapacityUnlimited Capacity = "unlimited"
)

func (c Capacity) rank() int {
	switch c {
	case CapacityLow:
		return 0
	case CapacityMedium:
		return 1
	case CapacityHigh:
		return 2
	default:
		return 3
	}
}

// TimeOfDay is the departure time bucket.
type TimeOfDay string

const (
	TimeEarlyMorning TimeOfDay = "early_morning"
	TimeMorning      TimeOfDay = "morning"
	TimeAfternoon    TimeOfDay = "afternoon"
	TimeEvening      TimeOfDay = "evening"
	TimeNight        TimeOfDay = "night"
)

// TimeOfDayAt buckets a clock time: early morning from 05:00, morning from
// 07:00, afternoon from 10:00, evening from 17:00 and night from 21:00.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 21 || h < 5:
		return TimeNight
	case h < 7:
		return TimeEarlyMorning
	case h < 10:
		return TimeMorning
	case h < 17:
		return TimeAfternoon
	default:
		return TimeEvening
	}
}

// DayOfWeekAt returns the lowercase weekday name used in cache keys.
func DayOfWeekAt(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// Weather is the forecast condition for the trip.
type Weather string

const (
	WeatherClear Weather = "clear"
	WeatherRain  Weather = "rain"
	WeatherSnow  Weather = "snow"
	WeatherStorm Weather = "storm"
)

// LuggageLoad is how much the traveller carries.
type LuggageLoad string

const (
	LuggageNone  LuggageLoad = "none"
	LuggageLight LuggageLoad = "light"
	LuggageHeavy LuggageLoad = "heavy"
)

// Flexibility describes how strict the timing is.
type Flexibility string

const (
	FlexibilityStrict   Flexibility = "strict"
	FlexibilityModerate Flexibility = "moderate"
	FlexibilityFlexible Flexibility = "flexible"
)

// Facilities that count as indoor waiting.
const (
	FacilityIndoorWaiting = "indoor_waiting"
	FacilityWaitingRoom   = "waiting_room"
)

// TransferPoint is a named location. It is not modified after construction.
type TransferPoint struct {
	Name               string    `json:"name"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	Type               PointType `json:"type,omitempty"`
	Facilities         []string  `json:"facilities,omitempty"`
	Accessible         bool      `json:"accessible"`
	Platform           string    `json:"platform,omitempty"`
	Terminal           string    `json:"terminal,omitempty"`
	Gate               string    `json:"gate,omitempty"`
	MinTransferMinutes int       `json:"minTransferMinutes,omitempty"`
	PeakCrowding       string    `json:"peakCrowding,omitempty"`
}

// HasIndoorWaiting reports whether the point offers sheltered waiting.
func (p TransferPoint) HasIndoorWaiting() bool {
	for _, f := range p.Facilities {
		if f == FacilityIndoorWaiting || f == FacilityWaitingRoom {
			return true
		}
	}
	return false
}

// Segment is one single-mode leg of a route.
type Segment struct {
	Mode             Mode          `json:"mode"`
	From             TransferPoint `json:"from"`
	To               TransferPoint `json:"to"`
	DurationMinutes  int           `json:"durationMinutes"`
	WaitMinutes      int           `json:"waitMinutes,omitempty"`
	DistanceMeters   float64       `json:"distanceMeters,omitempty"`
	Cost             float64       `json:"cost"`
	Currency         string        `json:"currency,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	OperatingHours   string        `json:"operatingHours,omitempty"`
	Frequency        string        `json:"frequency,omitempty"`
	WeatherDependent bool          `json:"weatherDependent"`
	Accessible       bool          `json:"accessible"`
	LuggageFriendly  bool          `json:"luggageFriendly"`
	RealTimeTracking bool          `json:"realTimeTracking"`
	Instruction      string        `json:"instruction"`
	Landmarks        []string      `json:"landmarks,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
}

// RouteInstruction is one numbered step of a route.
type RouteInstruction struct {
	Step            int      `json:"step"`
	Action          string   `json:"action"`
	Detail          string   `json:"detail"`
	DurationMinutes int      `json:"durationMinutes"`
	DistanceMeters  float64  `json:"distanceMeters,omitempty"`
	Landmarks       []string `json:"landmarks,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Alternatives    []string `json:"alternatives,omitempty"`
}

// TimeEstimate is a three-point duration estimate in minutes.
type TimeEstimate struct {
	Optimistic  int `json:"optimistic"`
	Realistic   int `json:"realistic"`
	Pessimistic int `json:"pessimistic"`
}

// ScoreBreakdown records the five factor subscores.
type ScoreBreakdown struct {
	Time        float64 `json:"time"`
	Reliability float64 `json:"reliability"`
	Cost        float64 `json:"cost"`
	Convenience float64 `json:"convenience"`
	Comfort     float64 `json:"comfort"`
}

// Route is a complete origin-to-destination journey.
type Route struct {
	ID                   string             `json:"id"`
	Type                 RouteType          `json:"type,omitempty"`
	Strategy             Strategy           `json:"strategy"`
	Segments             []Segment          `json:"segments"`
	TotalDurationMinutes int                `json:"totalDurationMinutes"`
	TotalDistanceMeters  float64            `json:"totalDistanceMeters"`
	TotalCost            float64            `json:"totalCost"`
	Currency             string             `json:"currency"`
	OperatingHours       string             `json:"operatingHours"`
	Frequency            string             `json:"frequency"`
	WeatherSensitive     bool               `json:"weatherSensitive"`
	Capacity             Capacity           `json:"capacity"`
	Complexity           Complexity         `json:"complexity"`
	WalkingMinutes       int                `json:"walkingMinutes"`
	Luggage              LuggageClass       `json:"luggage"`
	Accessible           bool               `json:"accessible"`
	Comfort              Comfort            `json:"comfort"`
	Punctuality          Punctuality        `json:"punctuality"`
	RealTimeTracking     bool               `json:"realTimeTracking"`
	Confidence           int                `json:"confidence"`
	Instructions         []RouteInstruction `json:"instructions,omitempty"`
	TimeEstimate         TimeEstimate       `json:"timeEstimate"`
	ContingencyPlan      string             `json:"contingencyPlan,omitempty"`
	Providers            []string           `json:"providers,omitempty"`
	Score                int                `json:"score"`
	ScoreBreakdown       ScoreBreakdown     `json:"scoreBreakdown"`
	ConstraintViolations []string           `json:"constraintViolations,omitempty"`
	LastUpdated          time.Time          `json:"lastUpdated"`
}

// LeadMode is the route's main transport mode: the first non-walking
// segment, or walking for a pure walk.
func (r *Route) LeadMode() Mode {
	for _, s := range r.Segments {
		if s.Mode != ModeWalking {
			return s.Mode
		}
	}
	return ModeWalking
}

// LeadProvider is the provider of the lead segment.
func (r *Route) LeadProvider() string {
	for _, s := range r.Segments {
		if s.Mode != ModeWalking {
			return s.Provider
		}
	}
	if len(r.Segments) > 0 {
		return r.Segments[0].Provider
	}
	return ""
}

// UsesMode reports whether any segment uses m.
func (r *Route) UsesMode(m Mode) bool {
	for _, s := range r.Segments {
		if s.Mode == m {
			return true
		}
	}
	return false
}

// Timing is the requested departure window.
type Timing struct {
	// DepartureTime is nil for a flexible departure.
	DepartureTime   *time.Time  `json:"departureTime,omitempty"`
	ArrivalDeadline *time.Time  `json:"arrivalDeadline,omitempty"`
	Flexibility     Flexibility `json:"flexibility,omitempty"`
}

// Constraints bound the acceptable journeys.
type Constraints struct {
	// MaxWalkingMinutes of zero means DefaultMaxWalkingMinutes.
	MaxWalkingMinutes int         `json:"maxWalkingMinutes,omitempty"`
	AvoidModes        []Mode      `json:"avoidModes,omitempty"`
	PreferModes       []Mode      `json:"preferModes,omitempty"`
	MaxCost           *float64    `json:"maxCost,omitempty"`
	RequireAccessible bool        `json:"requireAccessible,omitempty"`
	Luggage           LuggageLoad `json:"luggage,omitempty"`
}

// DefaultMaxWalkingMinutes applies when no walking limit is given.
const DefaultMaxWalkingMinutes = 20

// WalkingLimit returns the effective walking limit in minutes.
func (c Constraints) WalkingLimit() int {
	if c.MaxWalkingMinutes <= 0 {
		return DefaultMaxWalkingMinutes
	}
	return c.MaxWalkingMinutes
}

// Avoids reports whether m is in the avoided modes.
func (c Constraints) Avoids(m Mode) bool {
	for _, a := range c.AvoidModes {
		if a == m {
			return true
		}
	}
	return false
}

// TripContext carries the travel context that adjusts estimates.
type TripContext struct {
	Purpose   string    `json:"purpose,omitempty"`
	TimeOfDay TimeOfDay `json:"timeOfDay"`
	DayOfWeek string    `json:"dayOfWeek"`
	Season    string    `json:"season,omitempty"`
	Weather   Weather   `json:"weather,omitempty"`
}

// TransferRequest is a composition query.
type TransferRequest struct {
	Origin      TransferPoint `json:"origin"`
	Destination TransferPoint `json:"destination"`
	Timing      Timing        `json:"timing"`
	Constraints Constraints   `json:"constraints"`
	Context     TripContext   `json:"context"`
}

// UsageRecommendations gives "when to use" guidance per route.
type UsageRecommendations struct {
	Primary []string `json:"primary"`
	Backup  []string `json:"backup"`
}

// RouteAnalysis compares the selected pair. It is derived and never stored on its own.
type RouteAnalysis struct {
	PrimaryAdvantages    []string             `json:"primaryAdvantages"`
	BackupAdvantages     []string             `json:"backupAdvantages"`
	RiskMitigation       []string             `json:"riskMitigation"`
	UsageRecommendations UsageRecommendations `json:"usageRecommendations"`
	Confidence           int                  `json:"confidence"`
	AnalyzedAt           time.Time            `json:"analyzedAt"`
}

// Result is the output of Compose.
type Result struct {
	Primary    *Route        `json:"primary"`
	Backup     *Route        `json:"backup"`
	Analysis   RouteAnalysis `json:"analysis"`
	Cached     bool          `json:"cached"`
	ComposedAt time.Time     `json:"composedAt"`
}

// ValidationError lists the problems found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

var validTimesOfDay = map[TimeOfDay]bool{
	TimeEarlyMorning: true,
	TimeMorning:      true,
	TimeAfternoon:    true,
	TimeEvening:      true,
	TimeNight:        true,
}

// Validate checks that coordinates and context are present and in range.
func (r *TransferRequest) Validate() error {
	var problems []string

	checkPoint := func(field string, p TransferPoint) {
		if !pointOf(p).Valid() {
			problems = append(problems, field+" must have lat between -90 and 90 and lng between -180 and 180")
		}
	}
	checkPoint("origin", r.Origin)
	checkPoint("destination", r.Destination)

	if r.Constraints.MaxWalkingMinutes < 0 {
		problems = append(problems, "constraints.maxWalkingMinutes must not be negative")
	}
	if r.Constraints.MaxCost != nil && *r.Constraints.MaxCost < 0 {
		problems = append(problems, "constraints.maxCost must not be negative")
	}
	if !validTimesOfDay[r.Context.TimeOfDay] {
		problems = append(problems, "context.timeOfDay is required")
	}
	if strings.TrimSpace(r.Context.DayOfWeek) == "" {
		problems = append(problems, "context.dayOfWeek is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
