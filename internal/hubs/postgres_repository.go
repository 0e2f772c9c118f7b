package hubs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripwise/transferroute/internal/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Expected schema:
//
//	CREATE TABLE pickup_hubs (
//	    id         TEXT PRIMARY KEY,
//	    name       TEXT NOT NULL,
//	    kind       TEXT NOT NULL,
//	    lat        DOUBLE PRECISION NOT NULL,
//	    lng        DOUBLE PRECISION NOT NULL,
//	    facilities TEXT[] NOT NULL DEFAULT '{}',
//	    accessible BOOLEAN NOT NULL DEFAULT FALSE
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL hub repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Nearby returns hubs within radiusMeters of p, closest first.
// A lat/lng bounding box prefilters rows before the haversine distance is computed.
func (r *PostgresRepository) Nearby(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]NearbyHub, error) {
	if limit <= 0 {
		limit = 10
	}

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(p, radiusMeters)

	query := `
		SELECT id, name, kind, lat, lng, facilities, accessible, distance
		FROM (
			SELECT
				id, name, kind, lat, lng, facilities, accessible,
				2 * $9 * asin(sqrt(
					power(sin(radians(lat - $1) / 2), 2) +
					cos(radians($1)) * cos(radians(lat)) * power(sin(radians(lng - $2) / 2), 2)
				)) AS distance
			FROM pickup_hubs
			WHERE lat BETWEEN $3 AND $4 AND lng BETWEEN $5 AND $6
		) h
		WHERE distance <= $7
		ORDER BY distance, id
		LIMIT $8
	`

	rows, err := r.pool.Query(ctx, query,
		p.Lat, p.Lng, minLat, maxLat, minLng, maxLng, radiusMeters, limit, geo.EarthRadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("querying hubs: %w", err)
	}
	defer rows.Close()

	var out []NearbyHub
	for rows.Next() {
		var (
			h    NearbyHub
			kind string
		)
		if err := rows.Scan(
			&h.ID,
			&h.Name,
			&kind,
			&h.Point.Lat,
			&h.Point.Lng,
			&h.Facilities,
			&h.Accessible,
			&h.DistanceMeters,
		); err != nil {
			return nil, fmt.Errorf("scanning hub: %w", err)
		}
		h.Kind = Kind(kind)
		out = append(out, h)
	}

	return out, rows.Err()
}

// Upsert creates or replaces a hub.
func (r *PostgresRepository) Upsert(ctx context.Context, h *Hub) error {
	if err := h.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO pickup_hubs (id, name, kind, lat, lng, facilities, accessible)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			facilities = EXCLUDED.facilities,
			accessible = EXCLUDED.accessible
	`

	facilities := h.Facilities
	if facilities == nil {
		facilities = []string{}
	}

	_, err := r.pool.Exec(ctx, query, h.ID, h.Name, string(h.Kind), h.Point.Lat, h.Point.Lng, facilities, h.Accessible)
	if err != nil {
		return fmt.Errorf("upserting hub %s: %w", h.ID, err)
	}
	return nil
}
