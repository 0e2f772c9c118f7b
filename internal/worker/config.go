// Package worker warms the transfer cache for frequently requested corridors.
package worker

import (
	"time"

	"github.com/tripwise/transferroute/internal/config"
	"github.com/tripwise/transferroute/internal/transfer"
)

// Corridor is an origin and destination pair composed ahead of demand.
type Corridor struct {
	Name        string
	Origin      transfer.TransferPoint
	Destination transfer.TransferPoint

	// TimeOfDay and DayOfWeek are pinned when set. Otherwise they follow the
	// clock at warm time, so warmed keys match requests made right now.
	TimeOfDay transfer.TimeOfDay
	DayOfWeek string
}

// Request builds the composition request for the corridor at now.
func (c Corridor) Request(now time.Time) *transfer.TransferRequest {
	tod := c.TimeOfDay
	if tod == "" {
		tod = transfer.TimeOfDayAt(now)
	}
	day := c.DayOfWeek
	if day == "" {
		day = transfer.DayOfWeekAt(now)
	}
	return &transfer.TransferRequest{
		Origin:      c.Origin,
		Destination: c.Destination,
		Context: transfer.TripContext{
			TimeOfDay: tod,
			DayOfWeek: day,
		},
	}
}

// WarmConfig holds configuration for the warm job.
type WarmConfig struct {
	// Corridors are composed on every run.
	Corridors []Corridor

	// Concurrency is the number of corridors composed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each corridor.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWarmConfig returns the defaults with no corridors.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// CorridorsFromConfig converts file-configured corridors.
func CorridorsFromConfig(in []config.Corridor) []Corridor {
	out := make([]Corridor, 0, len(in))
	for _, c := range in {
		out = append(out, Corridor{
			Name:        c.Name,
			Origin:      endpoint(c.Origin),
			Destination: endpoint(c.Destination),
			TimeOfDay:   transfer.TimeOfDay(c.TimeOfDay),
			DayOfWeek:   c.DayOfWeek,
		})
	}
	return out
}

func endpoint(e config.Endpoint) transfer.TransferPoint {
	return transfer.TransferPoint{
		Name: e.Name,
		Type: transfer.PointType(e.Type),
		Lat:  e.Lat,
		Lng:  e.Lng,
	}
}
