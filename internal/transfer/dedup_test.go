package transfer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/transferroute/internal/transfer"
)

func segmentRoute(strategy transfer.Strategy, duration int, cost float64, modes ...transfer.Mode) *transfer.Route {
	segments := make([]transfer.Segment, 0, len(modes))
	for _, m := range modes {
		segments = append(segments, transfer.Segment{Mode: m, From: hotel, To: airport, Provider: string(m)})
	}
	r := transfer.NewRoute(strategy, segments, time.Now())
	r.TotalDurationMinutes = duration
	r.TotalCost = cost
	return r
}

func TestDeduplicate_KeepsFirstSeen(t *testing.T) {
	first := segmentRoute(transfer.StrategyFastest, 30, 10, transfer.ModeWalking, transfer.ModeMetro)
	dup := segmentRoute(transfer.StrategyReliable, 33, 12, transfer.ModeMetro, transfer.ModeWalking)
	other := segmentRoute(transfer.StrategySimplest, 30, 10, transfer.ModeTaxi)

	out := transfer.Deduplicate([]*transfer.Route{first, dup, other})

	require.Len(t, out, 2)
	assert.Same(t, first, out[0])
	assert.Same(t, other, out[1])
}

func TestDeduplicate_Thresholds(t *testing.T) {
	base := segmentRoute(transfer.StrategyFastest, 30, 10, transfer.ModeMetro)

	tests := []struct {
		name     string
		duration int
		cost     float64
		kept     int
	}{
		{"within both", 34, 14.9, 1},
		{"five minutes apart", 35, 10, 2},
		{"five currency units apart", 30, 15, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := segmentRoute(transfer.StrategyCheapest, tt.duration, tt.cost, transfer.ModeMetro)
			assert.Len(t, transfer.Deduplicate([]*transfer.Route{base, other}), tt.kept)
		})
	}
}

func TestDeduplicate_ModeSetsIgnoreRepeats(t *testing.T) {
	a := segmentRoute(transfer.StrategyFastest, 40, 5, transfer.ModeWalking, transfer.ModeBus, transfer.ModeWalking)
	b := segmentRoute(transfer.StrategyTransitOnly, 41, 5, transfer.ModeBus, transfer.ModeWalking)

	assert.Len(t, transfer.Deduplicate([]*transfer.Route{a, b}), 1)
}

func TestDeduplicate_Idempotent(t *testing.T) {
	routes := []*transfer.Route{
		segmentRoute(transfer.StrategyFastest, 30, 10, transfer.ModeMetro),
		segmentRoute(transfer.StrategyReliable, 31, 11, transfer.ModeMetro),
		segmentRoute(transfer.StrategyCheapest, 60, 2, transfer.ModeBus),
		segmentRoute(transfer.StrategySimplest, 25, 40, transfer.ModeTaxi),
		segmentRoute(transfer.StrategyHybrid, 27, 38, transfer.ModeTaxi),
		segmentRoute(transfer.StrategyTransitOnly, 62, 2, transfer.ModeBus, transfer.ModeWalking),
	}

	once := transfer.Deduplicate(routes)
	twice := transfer.Deduplicate(once)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 4)
}
