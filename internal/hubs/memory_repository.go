package hubs

import (
	"context"
	"sort"
	"sync"

	"github.com/tripwise/transferroute/internal/geo"
)

// InMemoryRepository keeps hubs in a map and scans linearly.
// Suitable for tests and small seeded hub lists.
type InMemoryRepository struct {
	mu   sync.RWMutex
	hubs map[string]*Hub
}

// NewInMemoryRepository creates a repository seeded with hubs.
func NewInMemoryRepository(seed ...Hub) *InMemoryRepository {
	r := &InMemoryRepository{hubs: make(map[string]*Hub, len(seed))}
	for i := range seed {
		h := seed[i]
		r.hubs[h.ID] = &h
	}
	return r
}

// Nearby returns hubs within radiusMeters of p, closest first.
func (r *InMemoryRepository) Nearby(_ context.Context, p geo.Point, radiusMeters float64, limit int) ([]NearbyHub, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []NearbyHub
	for _, h := range r.hubs {
		d := geo.DistanceMeters(p, h.Point)
		if d <= radiusMeters {
			out = append(out, NearbyHub{Hub: *h, DistanceMeters: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters == out[j].DistanceMeters {
			return out[i].ID < out[j].ID
		}
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Upsert creates or replaces a hub.
func (r *InMemoryRepository) Upsert(_ context.Context, h *Hub) error {
	if err := h.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *h
	r.hubs[h.ID] = &cpy
	return nil
}
