package transfer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tripwise/transferroute/internal/transfer"

// Metrics holds the compose pipeline instruments.
type Metrics struct {
	composeDuration metric.Float64Histogram
	composeTotal    metric.Int64Counter
	strategyTotal   metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	composeDuration, err := meter.Float64Histogram(
		"transfer.compose.duration",
		metric.WithDescription("Duration of route composition in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	composeTotal, err := meter.Int64Counter(
		"transfer.compose.total",
		metric.WithDescription("Total number of compose calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	strategyTotal, err := meter.Int64Counter(
		"transfer.strategy.total",
		metric.WithDescription("Strategy outcomes by strategy and result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"transfer.cache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"transfer.cache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		composeDuration: composeDuration,
		composeTotal:    composeTotal,
		strategyTotal:   strategyTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

func (m *Metrics) recordCompose(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.composeDuration.Record(ctx, d.Seconds(), attrs)
	m.composeTotal.Add(ctx, 1, attrs)
}

func (m *Metrics) recordStrategy(ctx context.Context, strategy Strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategyTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) recordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}
