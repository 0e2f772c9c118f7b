// Package app assembles the transfer service and its backing stores from
// configuration. Both the API server and the worker start from here.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/api/handler"
	"github.com/tripwise/transferroute/internal/config"
	"github.com/tripwise/transferroute/internal/database"
	"github.com/tripwise/transferroute/internal/geo"
	"github.com/tripwise/transferroute/internal/hubs"
	"github.com/tripwise/transferroute/internal/provider/resilience"
	"github.com/tripwise/transferroute/internal/transfer"
	"github.com/tripwise/transferroute/internal/transfer/memcache"
	"github.com/tripwise/transferroute/internal/transfer/rediscache"
	"github.com/tripwise/transferroute/internal/transportdata"
	"github.com/tripwise/transferroute/internal/transportdata/restapi"
)

// Components are the long-lived dependencies of a process.
type Components struct {
	Service     *transfer.Service
	Hubs        hubs.Repository
	Registry    *resilience.Registry
	ReadyChecks map[string]handler.ReadinessCheck

	closers []func()
}

// Close releases connections in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// NewLogger creates the process logger at the configured level.
func NewLogger(w io.Writer, cfg config.AppConfig, service, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("env", cfg.Env).
		Logger()
}

// Build wires the transport client, hub repository, cache and transfer
// service. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Components, err error) {
	c := &Components{
		Registry:    resilience.NewRegistry(),
		ReadyChecks: make(map[string]handler.ReadinessCheck),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	var provider transportdata.Provider
	if cfg.Transport.BaseURL != "" {
		provider = restapi.NewClient(restapi.ClientConfig{
			BaseURL:  cfg.Transport.BaseURL,
			APIKey:   cfg.Transport.APIKey,
			Timeout:  cfg.Transport.Timeout,
			Registry: c.Registry,
			Logger:   log,
		})
	} else {
		log.Warn().Msg("TRANSPORT_API_URL not set, only walking and taxi routes will be composed")
	}

	hubRepo, err := c.openHubs(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := seedHubs(ctx, hubRepo, cfg.Hubs.Seed); err != nil {
		return nil, err
	}
	if len(cfg.Hubs.Seed) > 0 {
		log.Info().Int("count", len(cfg.Hubs.Seed)).Msg("pickup hubs seeded")
	}
	c.Hubs = hubRepo

	cache, err := c.openCache(cfg, log)
	if err != nil {
		return nil, err
	}

	metrics, err := transfer.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("transfer metrics: %w", err)
	}

	c.Service = transfer.NewService(transfer.ServiceConfig{
		Provider:        provider,
		Hubs:            hubRepo,
		Cache:           cache,
		Metrics:         metrics,
		Logger:          log,
		CacheTTL:        cfg.Cache.TTL,
		StrategyTimeout: cfg.Transfer.StrategyTimeout,
		Blend:           transfer.Blend(cfg.Transfer.Blend),
	})

	return c, nil
}

func (c *Components) openHubs(ctx context.Context, cfg *config.Config, log zerolog.Logger) (hubs.Repository, error) {
	if cfg.Hubs.Backend != config.HubsPostgres {
		return hubs.NewInMemoryRepository(), nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect hub database: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.ReadyChecks["postgres"] = pool.Ping

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Name).
		Msg("hub database connected")

	return hubs.NewPostgresRepository(pool), nil
}

func seedHubs(ctx context.Context, repo hubs.Repository, seed []config.HubSeed) error {
	for _, s := range seed {
		h := &hubs.Hub{
			ID:         s.ID,
			Name:       s.Name,
			Kind:       hubs.Kind(s.Kind),
			Point:      geo.Point{Lat: s.Lat, Lng: s.Lng},
			Facilities: s.Facilities,
			Accessible: s.Accessible,
		}
		if h.Kind == "" {
			h.Kind = hubs.KindThroughStreet
		}
		if err := repo.Upsert(ctx, h); err != nil {
			return fmt.Errorf("seed pickup hub %q: %w", s.ID, err)
		}
	}
	return nil
}

func (c *Components) openCache(cfg *config.Config, log zerolog.Logger) (transfer.Cache, error) {
	if cfg.Cache.Backend != config.CacheRedis {
		log.Info().Int("size", cfg.Cache.Size).Dur("ttl", cfg.Cache.TTL).Msg("using in-process route cache")
		return memcache.New(cfg.Cache.Size, cfg.Cache.TTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c.closers = append(c.closers, func() { _ = client.Close() })
	c.ReadyChecks["redis"] = func(ctx context.Context) error {
		return rediscache.Ping(ctx, client)
	}

	log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Cache.TTL).Msg("using redis route cache")
	return rediscache.New(client, cfg.Cache.TTL), nil
}
