package hubs_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/transferroute/internal/geo"
	"github.com/tripwise/transferroute/internal/hubs"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pickup_hubs (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			lat        DOUBLE PRECISION NOT NULL,
			lng        DOUBLE PRECISION NOT NULL,
			facilities TEXT[] NOT NULL DEFAULT '{}',
			accessible BOOLEAN NOT NULL DEFAULT FALSE
		)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM pickup_hubs WHERE id LIKE 'test-%'`)
	require.NoError(t, err)

	return pool
}

func TestPostgresRepository_Nearby(t *testing.T) {
	pool := newTestPool(t)
	repo := hubs.NewPostgresRepository(pool)
	ctx := context.Background()

	origin := geo.Point{Lat: 41.9, Lng: 12.5}
	require.NoError(t, repo.Upsert(ctx, &hubs.Hub{
		ID: "test-near", Name: "Termini", Kind: hubs.KindTransitHub,
		Point: geo.Point{Lat: 41.901, Lng: 12.501}, Facilities: []string{"indoor_waiting"}, Accessible: true,
	}))
	require.NoError(t, repo.Upsert(ctx, &hubs.Hub{
		ID: "test-far", Name: "Far", Kind: hubs.KindTaxiRank, Point: geo.Point{Lat: 42.2, Lng: 12.5},
	}))

	got, err := repo.Nearby(ctx, origin, 1000, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "test-near", got[0].ID)
	assert.Equal(t, hubs.KindTransitHub, got[0].Kind)
	assert.Equal(t, []string{"indoor_waiting"}, got[0].Facilities)
	assert.InDelta(t, geo.DistanceMeters(origin, got[0].Point), got[0].DistanceMeters, 1)
}
