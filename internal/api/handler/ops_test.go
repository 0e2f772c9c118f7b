package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/transferroute/internal/api/handler"
	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/provider/resilience"
)

func serve(t *testing.T, fn http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOps_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.2.3", BuildTime: "2026-10-01"})

	rec := serve(t, h.HealthCheck, "/v1/ops/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "1.2.3", body.Details["version"])
	assert.False(t, body.Time.IsZero())
}

func TestOps_ReadinessCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]handler.ReadinessCheck
		wantStatus int
		wantChecks map[string]models.HealthStatus
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
		},
		{
			name:       "all ready",
			checks:     map[string]handler.ReadinessCheck{"redis": ok, "postgres": ok},
			wantStatus: http.StatusOK,
			wantChecks: map[string]models.HealthStatus{"redis": models.HealthStatusOK, "postgres": models.HealthStatusOK},
		},
		{
			name:       "one down",
			checks:     map[string]handler.ReadinessCheck{"redis": down, "postgres": ok},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]models.HealthStatus{"redis": models.HealthStatusDown, "postgres": models.HealthStatusOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(handler.OpsConfig{Checks: tt.checks})

			rec := serve(t, h.ReadinessCheck, "/v1/ops/ready")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body models.Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantChecks != nil {
				assert.Equal(t, tt.wantChecks, body.Checks)
			}
		})
	}
}

func TestOps_ReadinessCheckHasDeadline(t *testing.T) {
	var hasDeadline bool
	h := handler.NewOpsHandler(handler.OpsConfig{Checks: map[string]handler.ReadinessCheck{
		"probe": func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	}})

	serve(t, h.ReadinessCheck, "/v1/ops/ready")

	assert.True(t, hasDeadline)
}

func TestOps_ProvidersWithoutRegistry(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{})

	rec := serve(t, h.Providers, "/v1/ops/providers")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Empty(t, body.Providers)
}

func TestOps_ProvidersReportsOpenCircuit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	registry := resilience.NewRegistry()

	cb := resilience.DefaultCircuitBreakerConfig("flaky")
	cb.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	flaky := resilience.NewClient(resilience.ClientConfig{
		Name:           "flaky",
		MaxRetries:     0,
		CircuitBreaker: &cb,
		Registry:       registry,
	})
	resilience.NewClient(resilience.ClientConfig{Name: "steady", Registry: registry})

	req, err := http.NewRequest(http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)
	if resp, _ := flaky.Do(req); resp != nil {
		resp.Body.Close()
	}
	require.Equal(t, gobreaker.StateOpen, flaky.CircuitBreakerState())

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})
	rec := serve(t, h.Providers, "/v1/ops/providers")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.ProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, models.HealthStatusDown, body.Status)
	require.Len(t, body.Providers, 2)

	assert.Equal(t, "flaky", body.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusDown, body.Providers[0].Status)
	assert.Equal(t, "open", body.Providers[0].CircuitState)
	assert.NotNil(t, body.Providers[0].LastFailureAt)
	assert.NotEmpty(t, body.Providers[0].LastError)

	assert.Equal(t, "steady", body.Providers[1].Provider)
	assert.Equal(t, models.HealthStatusOK, body.Providers[1].Status)
	assert.Equal(t, "closed", body.Providers[1].CircuitState)
}
