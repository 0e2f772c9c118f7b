// Package transportdata defines the contract with the external transport-data provider
// that supplies scored journey candidates (timing, pricing, operator, stops) for a query.
package transportdata

import (
	"context"
	"errors"
)

// Sentinel errors for transport-data operations.
var (
	// ErrProviderUnavailable indicates the provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("transport data provider unavailable")
	// ErrNoCandidates indicates the provider answered but had nothing for the query.
	ErrNoCandidates = errors.New("no transport candidates")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidQuery indicates the provider rejected the query.
	ErrInvalidQuery = errors.New("invalid transport query")
)

// DomainTransport is the only query domain this module issues.
const DomainTransport = "transport"

// Provider is the transport-data collaborator. Implementations may be slow or fail;
// callers bound every call with a context deadline.
type Provider interface {
	// Search returns candidates for the query, best first.
	Search(ctx context.Context, q Query) ([]Candidate, error)
	// Name returns the provider identifier for logging and health tracking.
	Name() string
}

// Mode is the search mode requested from the provider.
type Mode string

const (
	ModeFastest  Mode = "fastest"
	ModeReliable Mode = "reliable"
	ModeCheapest Mode = "cheapest"
	ModeTaxi     Mode = "taxi"
	ModeDirect   Mode = "direct"
	ModeTransit  Mode = "transit"
)

// Query is the structured request sent to the provider.
type Query struct {
	Domain      string      `json:"domain"`
	Parameters  Parameters  `json:"parameters"`
	Constraints Constraints `json:"constraints"`
	Filters     Filters     `json:"filters"`
	Scoring     Scoring     `json:"scoring"`
}

// Parameters identify the journey being searched.
type Parameters struct {
	Origin        Location `json:"origin"`
	Destination   Location `json:"destination"`
	DepartureTime string   `json:"departure_time"` // RFC 3339 or "flexible"
	Mode          Mode     `json:"mode"`
}

// Location is a named coordinate.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Constraints split into hard (must hold) and soft (preference) requirements.
type Constraints struct {
	Hard HardConstraints `json:"hard"`
	Soft SoftConstraints `json:"soft"`
}

// HardConstraints must be honoured by every returned candidate.
type HardConstraints struct {
	MaxWalkingMinutes *int     `json:"max_walking_minutes,omitempty"`
	MaxTransfers      *int     `json:"max_transfers,omitempty"`
	ExcludeModes      []string `json:"exclude_modes,omitempty"`
	Accessible        bool     `json:"accessible,omitempty"`
}

// SoftConstraints steer provider ranking.
type SoftConstraints struct {
	PreferModes     []string `json:"prefer_modes,omitempty"`
	MinimizeWalking bool     `json:"minimize_walking,omitempty"`
	MaxCost         *float64 `json:"max_cost,omitempty"`
}

// Filters narrow the candidate set.
type Filters struct {
	ScheduledOnly bool `json:"scheduled_only,omitempty"`
	DirectOnly    bool `json:"direct_only,omitempty"`
}

// Scoring tells the provider which attribute to rank by.
type Scoring struct {
	Priority string `json:"priority,omitempty"` // time, reliability, cost, simplicity, walking
	Limit    int    `json:"limit,omitempty"`
}

// Candidate is one scored journey option.
type Candidate struct {
	Score float64       `json:"score"`
	Data  CandidateData `json:"data"`
}

// CandidateData carries the journey attributes.
type CandidateData struct {
	Mode    string     `json:"mode"`
	Timing  Timing     `json:"timing"`
	Pricing Pricing    `json:"pricing"`
	Details Details    `json:"details"`
	Route   *RouteInfo `json:"route,omitempty"`
}

// Timing is expressed in whole minutes.
type Timing struct {
	DurationMinutes int    `json:"duration_minutes"`
	WaitMinutes     int    `json:"wait_minutes,omitempty"`
	WalkingMinutes  int    `json:"walking_minutes,omitempty"`
	Departure       string `json:"departure,omitempty"`
	Arrival         string `json:"arrival,omitempty"`
}

// Pricing is the total fare.
type Pricing struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Details describe the operator and service characteristics.
type Details struct {
	Provider         string `json:"provider"`
	OperatingHours   string `json:"operating_hours,omitempty"`
	Frequency        string `json:"frequency,omitempty"`
	Transfers        int    `json:"transfers"`
	Accessible       bool   `json:"accessible"`
	LuggageFriendly  bool   `json:"luggage_friendly"`
	RealTimeTracking bool   `json:"real_time_tracking"`
}

// RouteInfo optionally breaks the candidate into stops and legs.
type RouteInfo struct {
	Stops []Stop `json:"stops,omitempty"`
	Legs  []Leg  `json:"legs,omitempty"`
}

// Stop is a boarding or alighting point.
type Stop struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Platform string  `json:"platform,omitempty"`
}

// Leg is a single-mode part of a candidate.
type Leg struct {
	Mode            string  `json:"mode"`
	DurationMinutes int     `json:"duration_minutes"`
	WaitMinutes     int     `json:"wait_minutes,omitempty"`
	Fare            float64 `json:"fare"`
	Provider        string  `json:"provider,omitempty"`
	From            Stop    `json:"from"`
	To              Stop    `json:"to"`
}

// Error provides detailed error information from the provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// IntPtr is a convenience for optional integer constraints.
func IntPtr(v int) *int {
	return &v
}
