package transfer_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tripwise/transferroute/internal/transfer"
	"github.com/tripwise/transferroute/internal/transportdata"
)

// mockProvider answers searches by mode.
type mockProvider struct {
	mu        sync.Mutex
	byMode    map[transportdata.Mode][]transportdata.Candidate
	errs      map[transportdata.Mode]error
	delay     time.Duration
	queries   []transportdata.Query
	callCount atomic.Int32
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		byMode: make(map[transportdata.Mode][]transportdata.Candidate),
		errs:   make(map[transportdata.Mode]error),
	}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Search(ctx context.Context, q transportdata.Query) ([]transportdata.Candidate, error) {
	m.callCount.Add(1)

	m.mu.Lock()
	m.queries = append(m.queries, q)
	delay := m.delay
	err := m.errs[q.Parameters.Mode]
	cands := m.byMode[q.Parameters.Mode]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return cands, nil
}

func (m *mockProvider) queriesFor(mode transportdata.Mode) []transportdata.Query {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []transportdata.Query
	for _, q := range m.queries {
		if q.Parameters.Mode == mode {
			out = append(out, q)
		}
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	hotel   = transfer.TransferPoint{Name: "Hotel Artemide", Lat: 41.9, Lng: 12.5, Type: transfer.PointHotel}
	airport = transfer.TransferPoint{Name: "Fiumicino Airport", Lat: 41.8, Lng: 12.25, Type: transfer.PointAirport, Facilities: []string{transfer.FacilityIndoorWaiting}}
	cafe    = transfer.TransferPoint{Name: "Caffe Greco", Lat: 41.9027, Lng: 12.5, Type: transfer.PointLandmark}
)

func newRequest(origin, dest transfer.TransferPoint) *transfer.TransferRequest {
	return &transfer.TransferRequest{
		Origin:      origin,
		Destination: dest,
		Constraints: transfer.Constraints{MaxWalkingMinutes: 15},
		Context: transfer.TripContext{
			TimeOfDay: transfer.TimeMorning,
			DayOfWeek: "tuesday",
		},
	}
}

func candidate(mode, provider string, duration, walking, wait int, cost float64, transfers int) transportdata.Candidate {
	return transportdata.Candidate{
		Score: 0.9,
		Data: transportdata.CandidateData{
			Mode: mode,
			Timing: transportdata.Timing{
				DurationMinutes: duration,
				WalkingMinutes:  walking,
				WaitMinutes:     wait,
			},
			Pricing: transportdata.Pricing{Amount: cost, Currency: "EUR"},
			Details: transportdata.Details{
				Provider:   provider,
				Transfers:  transfers,
				Accessible: true,
			},
		},
	}
}

// airportProvider models the hotel to airport corridor.
func airportProvider() *mockProvider {
	p := newMockProvider()
	train := candidate("train", "Leonardo Express", 32, 8, 5, 14, 0)
	bus := candidate("bus", "Airport Shuttle Bus", 55, 6, 10, 6, 0)
	taxi := candidate("taxi", "Roma Taxi", 40, 0, 0, 50, 0)

	p.byMode[transportdata.ModeFastest] = []transportdata.Candidate{train, taxi}
	p.byMode[transportdata.ModeReliable] = []transportdata.Candidate{train, bus}
	p.byMode[transportdata.ModeCheapest] = []transportdata.Candidate{train, bus}
	p.byMode[transportdata.ModeTaxi] = []transportdata.Candidate{taxi}
	p.byMode[transportdata.ModeDirect] = []transportdata.Candidate{train}
	p.byMode[transportdata.ModeTransit] = []transportdata.Candidate{train, bus}
	return p
}
