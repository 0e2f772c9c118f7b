package transfer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tripwise/transferroute/internal/hubs"
	"github.com/tripwise/transferroute/internal/transportdata"
)

// ServiceConfig holds configuration for the transfer service.
type ServiceConfig struct {
	// Provider supplies transport candidates (required for every strategy
	// except walking and hub-based taxi routes).
	Provider transportdata.Provider

	// Hubs finds better pickup points for the hybrid strategy (optional).
	Hubs hubs.Repository

	// Cache stores composed pairs (optional, nil disables caching).
	Cache Cache

	// Metrics records pipeline metrics (optional).
	Metrics *Metrics

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL bounds the age of both routes in a cached pair (default: 30 minutes).
	CacheTTL time.Duration

	// StrategyTimeout bounds each strategy run (default: 10 seconds).
	StrategyTimeout time.Duration

	// Blend selects the score combination (default: BlendSequential).
	Blend Blend

	// TaxiFare prices geometric taxi legs (default: DefaultTaxiFare).
	TaxiFare TaxiFare

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service composes primary and backup routes.
type Service struct {
	gens            *generators
	cache           Cache
	metrics         *Metrics
	logger          zerolog.Logger
	tracer          trace.Tracer
	scorer          Scorer
	fare            TaxiFare
	cacheTTL        time.Duration
	strategyTimeout time.Duration
	now             func() time.Time

	flight singleflight.Group
}

// NewService creates a new transfer service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	strategyTimeout := cfg.StrategyTimeout
	if strategyTimeout == 0 {
		strategyTimeout = 10 * time.Second
	}

	blend := cfg.Blend
	if blend == "" {
		blend = BlendSequential
	}

	fare := cfg.TaxiFare
	if fare == (TaxiFare{}) {
		fare = DefaultTaxiFare()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		gens: &generators{
			provider: cfg.Provider,
			hubs:     cfg.Hubs,
			fare:     fare,
			logger:   cfg.Logger,
			now:      now,
		},
		cache:           cfg.Cache,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		tracer:          otel.Tracer(instrumentationName),
		scorer:          Scorer{Blend: blend},
		fare:            fare,
		cacheTTL:        cacheTTL,
		strategyTimeout: strategyTimeout,
		now:             now,
	}
}

// Compose returns a primary and a backup route for the request.
// A fresh cached pair is returned without running any strategy. Concurrent
// misses for the same key share one computation.
func (s *Service) Compose(ctx context.Context, req *TransferRequest) (*Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "transfer.Compose")
	defer span.End()

	if err := req.Validate(); err != nil {
		s.metrics.recordCompose(ctx, time.Since(start), "invalid")
		return nil, err
	}

	key := CacheKey(req)
	span.SetAttributes(attribute.String("transfer.cache_key", key))

	if res, ok := s.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("transfer.cached", true))
		s.metrics.recordCompose(ctx, time.Since(start), "cached")
		return res, nil
	}

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		return s.composeFresh(context.WithoutCancel(ctx), req, key)
	})

	select {
	case <-ctx.Done():
		s.metrics.recordCompose(ctx, time.Since(start), "cancelled")
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(codes.Error, r.Err.Error())
			s.metrics.recordCompose(ctx, time.Since(start), "error")
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		s.metrics.recordCompose(ctx, time.Since(start), "composed")
		return &res, nil
	}
}

func (s *Service) lookup(ctx context.Context, key string) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}

	res, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("cache read failed, recomputing")
		}
		s.metrics.recordCache(ctx, false)
		return nil, false
	}

	if !Fresh(res, s.now(), s.cacheTTL) {
		s.logger.Debug().Str("cache_key", key).Msg("cached pair is stale")
		s.metrics.recordCache(ctx, false)
		return nil, false
	}

	s.metrics.recordCache(ctx, true)
	out := *res
	out.Cached = true
	return &out, true
}

func (s *Service) composeFresh(ctx context.Context, req *TransferRequest, key string) (*Result, error) {
	routes := s.runStrategies(ctx, req)
	if len(routes) == 0 {
		s.logger.Error().
			Str("cache_key", key).
			Str("origin", nameOrCoords(req.Origin)).
			Str("destination", nameOrCoords(req.Destination)).
			Msg("all strategies infeasible")
		return nil, ErrNoRouteFound
	}

	unique := Deduplicate(routes)
	ranked := s.scorer.Rank(unique, req)

	now := s.now()
	sel := Select(ranked, req, s.fare, now)
	if sel.Synthesized {
		s.scorer.Score(sel.Backup, req)
	}

	Enhance(sel.Primary, req.Context)
	Enhance(sel.Backup, req.Context)

	res := &Result{
		Primary:    sel.Primary,
		Backup:     sel.Backup,
		Analysis:   Analyze(sel.Primary, sel.Backup, now),
		ComposedAt: now,
	}

	s.logger.Info().
		Str("cache_key", key).
		Int("candidates", len(routes)).
		Int("unique", len(unique)).
		Str("primary", string(sel.Primary.Strategy)).
		Str("backup", string(sel.Backup.Strategy)).
		Bool("diverse", sel.Diverse).
		Bool("synthesized", sel.Synthesized).
		Msg("composed transfer routes")

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
		}
	}

	return res, nil
}

type strategyOutcome struct {
	index int
	route *Route
}

// runStrategies fans the generators out and returns their routes in
// generator order, skipping failed and infeasible strategies.
func (s *Service) runStrategies(ctx context.Context, req *TransferRequest) []*Route {
	ordered := s.gens.ordered()

	p := pool.NewWithResults[strategyOutcome]().WithMaxGoroutines(len(ordered))
	for i, g := range ordered {
		p.Go(func() strategyOutcome {
			return strategyOutcome{index: i, route: s.runStrategy(ctx, g, req)}
		})
	}
	outcomes := p.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	routes := make([]*Route, 0, len(outcomes))
	for _, o := range outcomes {
		if o.route != nil {
			routes = append(routes, o.route)
		}
	}
	return routes
}

// runStrategy runs one generator under its own deadline. Errors and panics
// are logged and reported as no route.
func (s *Service) runStrategy(ctx context.Context, g namedGenerator, req *TransferRequest) (route *Route) {
	ctx, cancel := context.WithTimeout(ctx, s.strategyTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "transfer.strategy",
		trace.WithAttributes(attribute.String("transfer.strategy", string(g.strategy))))
	defer span.End()

	start := time.Now()
	log := s.logger.With().Str("strategy", string(g.strategy)).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("strategy panicked: %v", rec)
			span.RecordError(err)
			log.Error().Err(err).Msg("strategy failed")
			s.metrics.recordStrategy(ctx, g.strategy, "panic")
			route = nil
		}
	}()

	route, err := g.generate(ctx, req)
	switch {
	case err == nil && route != nil:
		s.metrics.recordStrategy(ctx, g.strategy, "ok")
		log.Debug().Dur("duration", time.Since(start)).Int("duration_minutes", route.TotalDurationMinutes).Msg("strategy produced candidate")
		return route
	case err == nil || isInfeasible(err):
		s.metrics.recordStrategy(ctx, g.strategy, "infeasible")
		log.Debug().Dur("duration", time.Since(start)).Msg("strategy infeasible")
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.recordStrategy(ctx, g.strategy, "timeout")
		log.Warn().Dur("duration", time.Since(start)).Msg("strategy timed out")
	default:
		span.RecordError(err)
		s.metrics.recordStrategy(ctx, g.strategy, "error")
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("provider failure, dropping strategy")
	}
	return nil
}
