// Package hubs stores pickup points (transit hubs, taxi ranks, through-streets)
// that the hybrid strategy walks to before hailing a vehicle.
package hubs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripwise/transferroute/internal/geo"
)

// ErrInvalidHub is returned when a hub has no ID or its point is out of range.
var ErrInvalidHub = errors.New("invalid hub")

// Kind classifies a pickup point.
type Kind string

const (
	KindTransitHub    Kind = "transit_hub"
	KindTaxiRank      Kind = "taxi_rank"
	KindThroughStreet Kind = "through_street"
)

// Hub is a pickup point with good vehicle access.
type Hub struct {
	ID         string
	Name       string
	Kind       Kind
	Point      geo.Point
	Facilities []string
	Accessible bool
}

// Validate reports ErrInvalidHub when h cannot be stored.
func (h *Hub) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidHub)
	}
	if !h.Point.Valid() {
		return fmt.Errorf("%w: hub %s has coordinates out of range", ErrInvalidHub, h.ID)
	}
	return nil
}

// NearbyHub is a hub together with its distance from the query point.
type NearbyHub struct {
	Hub
	DistanceMeters float64
}

// Repository looks up hubs by location.
type Repository interface {
	// Nearby returns up to limit hubs within radiusMeters of p, closest first.
	Nearby(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]NearbyHub, error)

	// Upsert creates or replaces a hub.
	Upsert(ctx context.Context, h *Hub) error
}
