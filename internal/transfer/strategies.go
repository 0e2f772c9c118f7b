package transfer

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/geo"
	"github.com/tripwise/transferroute/internal/hubs"
	"github.com/tripwise/transferroute/internal/transportdata"
)

// generator builds at most one candidate route. It returns ErrNoCandidate
// when the strategy is infeasible and any other error on provider failure.
type generator func(ctx context.Context, req *TransferRequest) (*Route, error)

type namedGenerator struct {
	strategy Strategy
	generate generator
}

// generators holds the collaborators shared by every strategy.
type generators struct {
	provider transportdata.Provider
	hubs     hubs.Repository
	fare     TaxiFare
	logger   zerolog.Logger
	now      func() time.Time
}

// ordered returns the strategies in the order that decides dedup survivors.
func (g *generators) ordered() []namedGenerator {
	return []namedGenerator{
		{StrategyFastest, g.fastest},
		{StrategyReliable, g.reliable},
		{StrategyCheapest, g.cheapest},
		{StrategySimplest, g.simplest},
		{StrategyHybrid, g.hybrid},
		{StrategyTransitOnly, g.transitOnly},
	}
}

func modeStrings(modes []Mode) []string {
	if len(modes) == 0 {
		return nil
	}
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}

// baseQuery maps the request onto a provider query for one search mode.
func baseQuery(req *TransferRequest, mode transportdata.Mode) transportdata.Query {
	departure := "flexible"
	if req.Timing.DepartureTime != nil {
		departure = req.Timing.DepartureTime.Format(time.RFC3339)
	}

	q := transportdata.Query{
		Domain: transportdata.DomainTransport,
		Parameters: transportdata.Parameters{
			Origin:        transportdata.Location{Name: req.Origin.Name, Lat: req.Origin.Lat, Lng: req.Origin.Lng},
			Destination:   transportdata.Location{Name: req.Destination.Name, Lat: req.Destination.Lat, Lng: req.Destination.Lng},
			DepartureTime: departure,
			Mode:          mode,
		},
		Constraints: transportdata.Constraints{
			Hard: transportdata.HardConstraints{
				MaxWalkingMinutes: transportdata.IntPtr(req.Constraints.WalkingLimit()),
				ExcludeModes:      modeStrings(req.Constraints.AvoidModes),
				Accessible:        req.Constraints.RequireAccessible,
			},
			Soft: transportdata.SoftConstraints{
				PreferModes: modeStrings(req.Constraints.PreferModes),
				MaxCost:     req.Constraints.MaxCost,
			},
		},
	}
	return q
}

func (g *generators) search(ctx context.Context, q transportdata.Query) ([]transportdata.Candidate, error) {
	if g.provider == nil {
		return nil, nil
	}
	return g.provider.Search(ctx, q)
}

// fromCandidate builds a route from c. It reports false when any vehicle
// segment uses an avoided mode, or an on-demand mode unless onDemand is set.
func (g *generators) fromCandidate(strategy Strategy, req *TransferRequest, c transportdata.Candidate, onDemand bool) (*Route, bool) {
	segs := segmentsFromCandidate(req, c)
	for _, s := range segs {
		if s.Mode == ModeWalking {
			continue
		}
		if req.Constraints.Avoids(s.Mode) || (!onDemand && s.Mode.OnDemand()) {
			return nil, false
		}
	}
	return NewRoute(strategy, segs, g.now()), true
}

func candidateMode(c transportdata.Candidate) Mode {
	return NormalizeMode(c.Data.Mode, c.Data.Details.Provider)
}

// fastest takes the provider's top usable candidate under the walking limit.
func (g *generators) fastest(ctx context.Context, req *TransferRequest) (*Route, error) {
	q := baseQuery(req, transportdata.ModeFastest)
	q.Scoring = transportdata.Scoring{Priority: "time", Limit: 5}

	cands, err := g.search(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		if r, ok := g.fromCandidate(StrategyFastest, req, c, true); ok {
			return r, nil
		}
	}
	return nil, ErrNoCandidate
}

// reliable prefers a direct metro or train, then any scheduled multimodal option.
func (g *generators) reliable(ctx context.Context, req *TransferRequest) (*Route, error) {
	q := baseQuery(req, transportdata.ModeReliable)
	q.Constraints.Soft.PreferModes = appendUnique(q.Constraints.Soft.PreferModes, string(ModeMetro), string(ModeTrain))
	q.Filters.ScheduledOnly = true
	q.Scoring = transportdata.Scoring{Priority: "reliability", Limit: 10}

	cands, err := g.search(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, c := range cands {
		m := candidateMode(c)
		if (m == ModeMetro || m == ModeTrain) && c.Data.Details.Transfers == 0 && !req.Constraints.Avoids(m) {
			if r, ok := g.fromCandidate(StrategyReliable, req, c, true); ok {
				return r, nil
			}
		}
	}
	for _, c := range cands {
		m := candidateMode(c)
		if m.Scheduled() && !req.Constraints.Avoids(m) {
			if r, ok := g.fromCandidate(StrategyReliable, req, c, true); ok {
				return r, nil
			}
		}
	}
	return nil, ErrNoCandidate
}

// cheapest walks when the walk fits the limit, otherwise takes the
// lowest-fare public transport option.
func (g *generators) cheapest(ctx context.Context, req *TransferRequest) (*Route, error) {
	walkMinutes := geo.WalkingMinutesBetween(pointOf(req.Origin), pointOf(req.Destination))
	if walkMinutes <= req.Constraints.WalkingLimit() && !req.Constraints.Avoids(ModeWalking) {
		return NewRoute(StrategyCheapest, []Segment{WalkSegment(req.Origin, req.Destination)}, g.now()), nil
	}

	q := baseQuery(req, transportdata.ModeCheapest)
	q.Constraints.Hard.ExcludeModes = appendUnique(q.Constraints.Hard.ExcludeModes, string(ModeTaxi), string(ModeRideshare))
	q.Scoring = transportdata.Scoring{Priority: "cost", Limit: 10}

	cands, err := g.search(ctx, q)
	if err != nil {
		return nil, err
	}

	var best *Route
	bestFare := math.Inf(1)
	for _, c := range cands {
		if candidateMode(c).OnDemand() || c.Data.Pricing.Amount >= bestFare {
			continue
		}
		if r, ok := g.fromCandidate(StrategyCheapest, req, c, false); ok {
			best = r
			bestFare = c.Data.Pricing.Amount
		}
	}
	if best == nil {
		return nil, ErrNoCandidate
	}
	return best, nil
}

// simplest tries a direct taxi, then direct public transport, then a
// one-transfer journey, returning the first that succeeds. A provider
// error that is not transient ends the search.
func (g *generators) simplest(ctx context.Context, req *TransferRequest) (*Route, error) {
	type attempt struct {
		mode         transportdata.Mode
		maxTransfers int
		accept       func(Mode) bool
		skip         bool
	}

	attempts := []attempt{
		{
			mode:         transportdata.ModeTaxi,
			maxTransfers: 0,
			accept:       func(m Mode) bool { return m.OnDemand() },
			skip:         req.Constraints.Avoids(ModeTaxi) && req.Constraints.Avoids(ModeRideshare),
		},
		{
			mode:         transportdata.ModeDirect,
			maxTransfers: 0,
			accept:       func(m Mode) bool { return !m.OnDemand() },
		},
		{
			mode:         transportdata.ModeTransit,
			maxTransfers: 1,
			accept:       func(m Mode) bool { return !m.OnDemand() },
		},
	}

	var lastErr error
	for _, a := range attempts {
		if a.skip {
			continue
		}

		q := baseQuery(req, a.mode)
		q.Constraints.Hard.MaxTransfers = transportdata.IntPtr(a.maxTransfers)
		q.Filters.DirectOnly = a.maxTransfers == 0
		q.Scoring = transportdata.Scoring{Priority: "simplicity", Limit: 5}
		if a.mode != transportdata.ModeTaxi {
			q.Constraints.Hard.ExcludeModes = appendUnique(q.Constraints.Hard.ExcludeModes, string(ModeTaxi), string(ModeRideshare))
		}

		cands, err := g.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var perr *transportdata.Error
			if errors.As(err, &perr) && !perr.IsRetryable() {
				return nil, err
			}
			g.logger.Debug().Err(err).Str("strategy", string(StrategySimplest)).Str("mode", string(a.mode)).Msg("simplest attempt failed")
			lastErr = err
			continue
		}

		for _, c := range cands {
			m := candidateMode(c)
			if !a.accept(m) || req.Constraints.Avoids(m) || c.Data.Details.Transfers > a.maxTransfers {
				continue
			}
			if r, ok := g.fromCandidate(StrategySimplest, req, c, a.mode == transportdata.ModeTaxi); ok {
				return r, nil
			}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoCandidate
}

// hybrid walks to a better pickup point when one exists, then rides from there.
func (g *generators) hybrid(ctx context.Context, req *TransferRequest) (*Route, error) {
	vehicle := ModeTaxi
	if req.Constraints.Avoids(ModeTaxi) {
		if req.Constraints.Avoids(ModeRideshare) {
			return nil, ErrNoCandidate
		}
		vehicle = ModeRideshare
	}

	ride := func(from TransferPoint) Segment {
		seg := TaxiSegment(from, req.Destination, g.fare)
		if vehicle == ModeRideshare {
			seg.Mode = ModeRideshare
			seg.Provider = "Rideshare"
			seg.Instruction = "Book a rideshare to " + nameOrCoords(req.Destination)
		}
		return seg
	}

	if pickup, ok := g.betterPickup(ctx, req); ok {
		walk := WalkSegment(req.Origin, pickup)
		return NewRoute(StrategyHybrid, []Segment{walk, ride(pickup)}, g.now()), nil
	}

	return NewRoute(StrategyHybrid, []Segment{ride(req.Origin)}, g.now()), nil
}

// betterPickup finds the hub within walking range that is closest to the
// destination, provided it is strictly closer than the origin.
func (g *generators) betterPickup(ctx context.Context, req *TransferRequest) (TransferPoint, bool) {
	if g.hubs == nil || req.Constraints.Avoids(ModeWalking) {
		return TransferPoint{}, false
	}

	radius := float64(req.Constraints.WalkingLimit()) / 60 * geo.WalkingSpeedKmh * 1000
	origin := pointOf(req.Origin)
	dest := pointOf(req.Destination)

	nearby, err := g.hubs.Nearby(ctx, origin, radius, 10)
	if err != nil {
		g.logger.Warn().Err(err).Str("strategy", string(StrategyHybrid)).Msg("hub lookup failed, using direct pickup")
		return TransferPoint{}, false
	}

	bestDist := geo.DistanceMeters(origin, dest)
	best := -1
	for i, h := range nearby {
		if req.Constraints.RequireAccessible && !h.Accessible {
			continue
		}
		if d := geo.DistanceMeters(h.Point, dest); d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return TransferPoint{}, false
	}

	h := nearby[best]
	pointType := PointLandmark
	if h.Kind == hubs.KindTransitHub {
		pointType = PointStation
	}
	return TransferPoint{
		Name:       h.Name,
		Lat:        h.Point.Lat,
		Lng:        h.Point.Lng,
		Type:       pointType,
		Facilities: h.Facilities,
		Accessible: h.Accessible,
	}, true
}

// transitOnly uses scheduled public transport only, with the least walking.
func (g *generators) transitOnly(ctx context.Context, req *TransferRequest) (*Route, error) {
	q := baseQuery(req, transportdata.ModeTransit)
	q.Constraints.Hard.ExcludeModes = appendUnique(q.Constraints.Hard.ExcludeModes, string(ModeTaxi), string(ModeRideshare))
	q.Constraints.Soft.MinimizeWalking = true
	q.Filters.ScheduledOnly = true
	q.Scoring = transportdata.Scoring{Priority: "walking", Limit: 10}

	cands, err := g.search(ctx, q)
	if err != nil {
		return nil, err
	}

	var best *Route
	bestWalk := math.MaxInt
	for _, c := range cands {
		m := candidateMode(c)
		if !m.Scheduled() || req.Constraints.Avoids(m) || c.Data.Timing.WalkingMinutes >= bestWalk {
			continue
		}
		if r, ok := g.fromCandidate(StrategyTransitOnly, req, c, false); ok {
			best = r
			bestWalk = c.Data.Timing.WalkingMinutes
		}
	}
	if best == nil {
		return nil, ErrNoCandidate
	}
	return best, nil
}

// isInfeasible reports whether err only means the strategy had nothing to offer.
func isInfeasible(err error) bool {
	return errors.Is(err, ErrNoCandidate) || errors.Is(err, transportdata.ErrNoCandidates)
}
