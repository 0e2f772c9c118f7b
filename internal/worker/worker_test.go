package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/transferroute/internal/config"
	"github.com/tripwise/transferroute/internal/transfer"
	"github.com/tripwise/transferroute/internal/transfer/memcache"
	"github.com/tripwise/transferroute/internal/worker"
)

// mockComposer records requests and fails for corridors named in fail.
type mockComposer struct {
	mu        sync.Mutex
	requests  []*transfer.TransferRequest
	fail      map[string]bool
	cached    bool
	delay     time.Duration
	callCount atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (m *mockComposer) Compose(ctx context.Context, req *transfer.TransferRequest) (*transfer.Result, error) {
	m.callCount.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxFlight.Load()
		if n <= peak || m.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fail[req.Origin.Name] {
		return nil, transfer.ErrNoRouteFound
	}
	return &transfer.Result{Cached: m.cached}, nil
}

func corridors(n int) []worker.Corridor {
	out := make([]worker.Corridor, n)
	for i := range out {
		out[i] = worker.Corridor{
			Name:        "corridor",
			Origin:      transfer.TransferPoint{Name: string(rune('a' + i)), Lat: 41.9, Lng: 12.5},
			Destination: transfer.TransferPoint{Name: "airport", Lat: 41.8, Lng: 12.25},
		}
	}
	return out
}

var tuesdayMorning = time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

func fixedNow() time.Time { return tuesdayMorning }

func TestCorridor_RequestFollowsClock(t *testing.T) {
	c := worker.Corridor{Origin: transfer.TransferPoint{Lat: 1, Lng: 2}}

	req := c.Request(tuesdayMorning)
	assert.Equal(t, transfer.TimeMorning, req.Context.TimeOfDay)
	assert.Equal(t, "tuesday", req.Context.DayOfWeek)
	assert.NoError(t, req.Validate())

	c.TimeOfDay = transfer.TimeEvening
	c.DayOfWeek = "friday"
	req = c.Request(tuesdayMorning)
	assert.Equal(t, transfer.TimeEvening, req.Context.TimeOfDay)
	assert.Equal(t, "friday", req.Context.DayOfWeek)
}

func TestCorridorsFromConfig(t *testing.T) {
	in := []config.Corridor{{
		Name:        "hotel-airport",
		Origin:      config.Endpoint{Name: "Hotel", Type: "hotel", Lat: 41.9, Lng: 12.5},
		Destination: config.Endpoint{Name: "FCO", Type: "airport", Lat: 41.8, Lng: 12.25},
		TimeOfDay:   "night",
	}}

	out := worker.CorridorsFromConfig(in)
	require.Len(t, out, 1)
	assert.Equal(t, "hotel-airport", out[0].Name)
	assert.Equal(t, transfer.PointAirport, out[0].Destination.Type)
	assert.Equal(t, transfer.TimeNight, out[0].TimeOfDay)
	assert.InDelta(t, 12.5, out[0].Origin.Lng, 1e-9)
}

func TestDefaultWarmConfig(t *testing.T) {
	cfg := worker.DefaultWarmConfig()
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Corridors)
}

func TestWarmJob_Run(t *testing.T) {
	composer := &mockComposer{fail: map[string]bool{"b": true}}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(4), Concurrency: 2},
		Composer: composer,
		Logger:   zerolog.Nop(),
		Now:      fixedNow,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Composed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, "no route")
	assert.Equal(t, int32(4), composer.callCount.Load())

	for _, req := range composer.requests {
		assert.Equal(t, transfer.TimeMorning, req.Context.TimeOfDay)
	}
}

func TestWarmJob_Run_BoundsConcurrency(t *testing.T) {
	composer := &mockComposer{delay: 20 * time.Millisecond}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(10), Concurrency: 3},
		Composer: composer,
		Logger:   zerolog.Nop(),
	})

	result := job.Run(context.Background())

	assert.Equal(t, 10, result.Composed)
	assert.LessOrEqual(t, composer.maxFlight.Load(), int32(3))
	assert.Greater(t, composer.maxFlight.Load(), int32(1))
}

func TestWarmJob_Run_CountsCachedPairs(t *testing.T) {
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(2)},
		Composer: &mockComposer{cached: true},
		Logger:   zerolog.Nop(),
	})

	result := job.Run(context.Background())
	assert.Equal(t, 2, result.AlreadyCached)
	assert.Zero(t, result.Composed)
}

func TestWarmJob_Run_CancelledContext(t *testing.T) {
	composer := &mockComposer{}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(20), Concurrency: 1},
		Composer: composer,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)
	assert.Equal(t, 20, result.Total)
	assert.Zero(t, composer.callCount.Load())
}

func TestWarmJob_Check(t *testing.T) {
	composer := &mockComposer{}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(5)},
		Composer: composer,
		Logger:   zerolog.Nop(),
	})

	result := job.Check(context.Background())
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, int32(1), composer.callCount.Load())

	empty := worker.NewWarmJob(worker.WarmJobConfig{Composer: composer, Logger: zerolog.Nop()})
	assert.Zero(t, empty.Check(context.Background()).Total)
}

func TestWarmJob_Metrics(t *testing.T) {
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(3)},
		Composer: &mockComposer{fail: map[string]bool{"c": true}},
		Logger:   zerolog.Nop(),
	})

	_ = job.Run(context.Background())
	_ = job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(4), m.Composed)
	assert.Equal(t, int64(2), m.Failed)
	assert.NotZero(t, m.LastRunAt)

	snapshot := job.MetricsSnapshot()
	assert.Contains(t, snapshot, "total_runs")
	assert.Contains(t, snapshot, "already_cached")
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestWarmJob_WarmsRealCache(t *testing.T) {
	svc := transfer.NewService(transfer.ServiceConfig{
		Cache:  memcache.New(100, time.Hour),
		Logger: zerolog.Nop(),
	})
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config: worker.WarmConfig{Corridors: []worker.Corridor{{
			Name:        "hotel-cafe",
			Origin:      transfer.TransferPoint{Name: "Hotel", Lat: 41.9, Lng: 12.5},
			Destination: transfer.TransferPoint{Name: "Cafe", Lat: 41.9027, Lng: 12.5},
		}}},
		Composer: svc,
		Logger:   zerolog.Nop(),
	})

	first := job.Run(context.Background())
	require.Equal(t, 1, first.Composed, "errors: %v", first.Errors)

	second := job.Run(context.Background())
	assert.Equal(t, 1, second.AlreadyCached)
}

func TestDispatcher_Process(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		fail    map[string]bool
		wantErr error
		calls   int32
	}{
		{name: "warm corridors", payload: `{"job_type":"warm_corridors"}`, calls: 4},
		{name: "warm tolerates a minority of failures", payload: `{"job_type":"warm_corridors"}`, fail: map[string]bool{"a": true}, calls: 4},
		{name: "health check", payload: `{"job_type":"health_check"}`, calls: 1},
		{name: "unknown job", payload: `{"job_type":"provider_refresh"}`, wantErr: worker.ErrUnknownJob},
		{name: "malformed payload", payload: `{job_type`, wantErr: worker.ErrUnknownJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := &mockComposer{fail: tt.fail}
			job := worker.NewWarmJob(worker.WarmJobConfig{
				Config:   worker.WarmConfig{Corridors: corridors(4)},
				Composer: composer,
				Logger:   zerolog.Nop(),
			})

			err := worker.NewDispatcher(job, zerolog.Nop()).Process(context.Background(), []byte(tt.payload))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.calls, composer.callCount.Load())
		})
	}
}

func TestDispatcher_ProcessFailures(t *testing.T) {
	composer := &mockComposer{fail: map[string]bool{"a": true, "b": true, "c": true}}
	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   worker.WarmConfig{Corridors: corridors(4)},
		Composer: composer,
		Logger:   zerolog.Nop(),
	})
	d := worker.NewDispatcher(job, zerolog.Nop())

	err := d.Process(context.Background(), []byte(`{"job_type":"warm_corridors"}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, worker.ErrUnknownJob))

	err = d.Process(context.Background(), []byte(`{"job_type":"health_check"}`))
	assert.ErrorContains(t, err, "health check failed")
}
