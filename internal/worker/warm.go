package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/transfer"
)

// Composer is the part of transfer.Service the worker needs.
type Composer interface {
	Compose(ctx context.Context, req *transfer.TransferRequest) (*transfer.Result, error)
}

// WarmJob composes configured corridors so user requests hit the cache.
type WarmJob struct {
	config   WarmConfig
	composer Composer
	logger   zerolog.Logger
	now      func() time.Time

	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	Composed         int64
	AlreadyCached    int64
	Failed           int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
	TotalRunDuration time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config   WarmConfig
	Composer Composer
	Logger   zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewWarmJob creates a new warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	c := cfg.Config
	def := DefaultWarmConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &WarmJob{
		config:   c,
		composer: cfg.Composer,
		logger:   cfg.Logger,
		now:      now,
		metrics:  &WarmMetrics{},
	}
}

// WarmResult summarises one run.
type WarmResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Total         int
	Composed      int
	AlreadyCached int
	Failed        int
	Errors        []WarmError
}

// WarmError records a corridor that could not be composed.
type WarmError struct {
	Corridor string
	Error    string
}

type corridorResult struct {
	name   string
	cached bool
	err    error
}

// Run composes every corridor with bounded concurrency. Corridors not yet
// started when ctx is cancelled are skipped.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	return j.run(ctx, j.config.Corridors, j.config.Concurrency)
}

// Check composes the first corridor only, as a connectivity probe.
func (j *WarmJob) Check(ctx context.Context) *WarmResult {
	if len(j.config.Corridors) == 0 {
		return &WarmResult{StartTime: j.now(), EndTime: j.now()}
	}
	return j.run(ctx, j.config.Corridors[:1], 1)
}

func (j *WarmJob) run(ctx context.Context, corridors []Corridor, concurrency int) *WarmResult {
	start := time.Now()
	result := &WarmResult{
		StartTime: j.now(),
		Total:     len(corridors),
	}

	j.logger.Info().
		Int("corridors", result.Total).
		Int("concurrency", concurrency).
		Msg("starting cache warm job")

	work := make(chan Corridor, len(corridors))
	results := make(chan corridorResult, len(corridors))

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, work, results)
		}()
	}

	for _, c := range corridors {
		work <- c
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, WarmError{Corridor: r.name, Error: r.err.Error()})
		case r.cached:
			result.AlreadyCached++
		default:
			result.Composed++
		}
	}

	result.EndTime = j.now()
	result.Duration = time.Since(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("composed", result.Composed).
		Int("already_cached", result.AlreadyCached).
		Int("failed", result.Failed).
		Msg("cache warm job completed")

	return result
}

func (j *WarmJob) warmWorker(ctx context.Context, corridors <-chan Corridor, results chan<- corridorResult) {
	for c := range corridors {
		if ctx.Err() != nil {
			return
		}
		results <- j.warmCorridor(ctx, c)
	}
}

func (j *WarmJob) warmCorridor(ctx context.Context, c Corridor) corridorResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.composer.Compose(ctx, c.Request(j.now()))
	if err != nil {
		j.logger.Warn().Err(err).Str("corridor", c.Name).Msg("corridor warm failed")
		return corridorResult{name: c.Name, err: err}
	}
	return corridorResult{name: c.Name, cached: res.Cached}
}

func (j *WarmJob) updateMetrics(r *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Composed += int64(r.Composed)
	j.metrics.AlreadyCached += int64(r.AlreadyCached)
	j.metrics.Failed += int64(r.Failed)
	j.metrics.LastRunAt = r.EndTime
	j.metrics.LastRunDuration = r.Duration
	j.metrics.TotalRunDuration += r.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		Composed:         j.metrics.Composed,
		AlreadyCached:    j.metrics.AlreadyCached,
		Failed:           j.metrics.Failed,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalRunDuration: j.metrics.TotalRunDuration,
	}
}

// MetricsSnapshot returns the metrics keyed for a JSON health payload.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"composed":           m.Composed,
		"already_cached":     m.AlreadyCached,
		"failed":             m.Failed,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_run_duration": m.TotalRunDuration.String(),
	}
}
