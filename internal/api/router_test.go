package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/transferroute/internal/api"
	"github.com/tripwise/transferroute/internal/api/handler"
	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/provider/resilience"
	"github.com/tripwise/transferroute/internal/transfer"
	"github.com/tripwise/transferroute/internal/transfer/memcache"
	"github.com/tripwise/transferroute/internal/transportdata"
)

// emptyProvider finds no transport, leaving walking and geometric taxi routes.
type emptyProvider struct {
	calls atomic.Int32
}

func (p *emptyProvider) Search(context.Context, transportdata.Query) ([]transportdata.Candidate, error) {
	p.calls.Add(1)
	return nil, nil
}

func (p *emptyProvider) Name() string { return "empty" }

type stubComposer struct {
	calls atomic.Int32
}

func (c *stubComposer) Compose(context.Context, *transfer.TransferRequest) (*transfer.Result, error) {
	c.calls.Add(1)
	return &transfer.Result{
		Primary: &transfer.Route{ID: "p", Strategy: transfer.StrategySimplest},
		Backup:  &transfer.Route{ID: "b", Strategy: transfer.StrategyFastest},
	}, nil
}

func newTestRouter(cfg api.RouterConfig) http.Handler {
	cfg.Version = "test"
	cfg.BuildTime = "2026-01-01T00:00:00Z"
	cfg.Logger = zerolog.Nop()
	if cfg.Composer == nil {
		cfg.Composer = &stubComposer{}
	}
	return api.NewRouter(cfg)
}

func do(h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const walkBody = `{
	"origin": {"name": "Hotel Artemide", "lat": 41.9, "lng": 12.5, "type": "hotel"},
	"destination": {"name": "Caffe Greco", "lat": 41.9027, "lng": 12.5, "type": "landmark"},
	"constraints": {"maxWalkingMinutes": 20},
	"context": {"timeOfDay": "afternoon", "dayOfWeek": "friday"}
}`

func TestRouter_HealthCheck(t *testing.T) {
	r := newTestRouter(api.RouterConfig{})

	rec := do(r, http.MethodGet, "/v1/ops/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "test", body.Details["version"])
}

func TestRouter_ReadinessFailsWithDependency(t *testing.T) {
	r := newTestRouter(api.RouterConfig{
		ReadyChecks: map[string]handler.ReadinessCheck{
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		},
	})

	rec := do(r, http.MethodGet, "/v1/ops/ready", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"DOWN"`)
}

func TestRouter_Providers(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "transport-api", Registry: registry})
	r := newTestRouter(api.RouterConfig{Registry: registry})

	rec := do(r, http.MethodGet, "/v1/ops/providers", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "closed", body.Providers[0].CircuitState)
}

func TestRouter_UnknownRoutesReturnProblems(t *testing.T) {
	r := newTestRouter(api.RouterConfig{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantType   string
	}{
		{"unknown path", http.MethodGet, "/v1/routes:compute", http.StatusNotFound, models.ProblemTypeNotFound},
		{"wrong method", http.MethodGet, "/v1/transfers:compose", http.StatusMethodNotAllowed, models.ProblemTypeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.path, "", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var p models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.path, p.Instance)
		})
	}
}

func TestRouter_ComposeRequiresJSON(t *testing.T) {
	c := &stubComposer{}
	r := newTestRouter(api.RouterConfig{Composer: c})

	rec := do(r, http.MethodPost, "/v1/transfers:compose", "text/plain", walkBody)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, c.calls.Load())
}

func TestRouter_ComposeRateLimited(t *testing.T) {
	c := &stubComposer{}
	r := newTestRouter(api.RouterConfig{Composer: c})

	for i := 0; i < 30; i++ {
		rec := do(r, http.MethodPost, "/v1/transfers:compose", "application/json", walkBody)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := do(r, http.MethodPost, "/v1/transfers:compose", "application/json", walkBody)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(30), c.calls.Load())
}

func TestRouter_ComposeEndToEnd(t *testing.T) {
	provider := &emptyProvider{}
	svc := transfer.NewService(transfer.ServiceConfig{
		Provider: provider,
		Cache:    memcache.New(100, time.Hour),
		Logger:   zerolog.Nop(),
	})
	r := newTestRouter(api.RouterConfig{Composer: svc})

	rec := do(r, http.MethodPost, "/v1/transfers:compose", "application/json; charset=utf-8", walkBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first transfer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.NotNil(t, first.Primary)
	require.NotNil(t, first.Backup)
	assert.NotEqual(t, first.Primary.ID, first.Backup.ID)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Backup.ContingencyPlan)
	callsAfterFirst := provider.calls.Load()

	rec = do(r, http.MethodPost, "/v1/transfers:compose", "application/json", walkBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var second transfer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Primary.ID, second.Primary.ID)
	assert.Equal(t, callsAfterFirst, provider.calls.Load())
}

func TestRouter_ComposeNoRoute(t *testing.T) {
	svc := transfer.NewService(transfer.ServiceConfig{
		Provider: &emptyProvider{},
		Logger:   zerolog.Nop(),
	})
	r := newTestRouter(api.RouterConfig{Composer: svc})

	rec := do(r, http.MethodPost, "/v1/transfers:compose", "application/json", `{
		"origin": {"lat": 41.9, "lng": 12.5},
		"destination": {"lat": 41.8, "lng": 12.25},
		"constraints": {"avoidModes": ["taxi", "rideshare"]}
	}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, models.ProblemTypeNoRoute, p.Type)
}
