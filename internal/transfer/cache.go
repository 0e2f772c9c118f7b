package transfer

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sort"
	"strings"
	"time"
)

// DefaultCacheTTL is how long a composed pair stays valid.
const DefaultCacheTTL = 30 * time.Minute

// Cache stores composed results by key. Implementations must be safe for
// concurrent use and return ErrCacheMiss when no entry exists.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, error)
	Set(ctx context.Context, key string, result *Result) error
}

// CacheKey identifies a request by endpoints, time-of-day bucket and day of
// week. Requests with non-default constraints get a constraints hash suffix so
// they never share an entry with the unconstrained pair.
func CacheKey(req *TransferRequest) string {
	key := fmt.Sprintf("transfer:%.5f,%.5f:%.5f,%.5f:%s:%s",
		req.Origin.Lat, req.Origin.Lng,
		req.Destination.Lat, req.Destination.Lng,
		req.Context.TimeOfDay,
		strings.ToLower(strings.TrimSpace(req.Context.DayOfWeek)),
	)

	c := constraintsFingerprint(req.Constraints)
	if c == defaultFingerprint {
		return key
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(c))
	return fmt.Sprintf("%s:c%016x", key, h.Sum64())
}

var defaultFingerprint = constraintsFingerprint(Constraints{})

// constraintsFingerprint renders c canonically. Mode lists are order-free and
// an unset walking limit equals the default one.
func constraintsFingerprint(c Constraints) string {
	modes := func(ms []Mode) string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, string(m))
		}
		sort.Strings(out)
		return strings.Join(slices.Compact(out), ",")
	}

	maxCost := "-"
	if c.MaxCost != nil {
		maxCost = fmt.Sprintf("%.2f", *c.MaxCost)
	}
	luggage := c.Luggage
	if luggage == "" {
		luggage = LuggageNone
	}

	return fmt.Sprintf("w=%d|avoid=%s|prefer=%s|cost=%s|acc=%t|lug=%s",
		c.WalkingLimit(), modes(c.AvoidModes), modes(c.PreferModes), maxCost, c.RequireAccessible, luggage)
}

// Fresh reports whether both routes of a cached pair were updated within ttl.
// A pair missing either route counts as stale.
func Fresh(res *Result, now time.Time, ttl time.Duration) bool {
	if res == nil || res.Primary == nil || res.Backup == nil {
		return false
	}
	return now.Sub(res.Primary.LastUpdated) < ttl && now.Sub(res.Backup.LastUpdated) < ttl
}
