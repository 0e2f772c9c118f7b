// Package handler provides HTTP handlers for the transfer API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/api/response"
	"github.com/tripwise/transferroute/internal/provider/resilience"
)

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// OpsConfig holds configuration for the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports upstream provider health (optional).
	Registry *resilience.Registry

	// Checks are run by the readiness endpoint, keyed by dependency name.
	Checks map[string]ReadinessCheck

	// CheckTimeout bounds all readiness checks together (default: 2 seconds).
	CheckTimeout time.Duration
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health, the liveness probe.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now().UTC(),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing check gives 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.CheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   time.Now().UTC(),
		Checks: make(map[string]models.HealthStatus, len(names)),
	}
	for _, name := range names {
		if err := h.cfg.Checks[name](ctx); err != nil {
			health.Checks[name] = models.HealthStatusDown
			health.Status = models.HealthStatusDown
			continue
		}
		health.Checks[name] = models.HealthStatusOK
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// Providers handles GET /v1/ops/providers. An open circuit marks the set
// DOWN and a half-open one DEGRADED.
func (h *OpsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	out := models.ProvidersResponse{
		Status:    models.HealthStatusOK,
		Providers: []models.ProviderStatus{},
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:      ph.Name,
				Status:        models.HealthStatusOK,
				CircuitState:  ph.CircuitState.String(),
				Requests:      ph.Counts.Requests,
				Failures:      ph.Counts.ConsecutiveFailures,
				LastSuccessAt: ph.LastSuccessAt,
				LastFailureAt: ph.LastFailureAt,
				LastError:     ph.LastError,
			}
			switch {
			case ph.IsUnhealthy():
				ps.Status = models.HealthStatusDown
				out.Status = models.HealthStatusDown
			case ph.IsDegraded():
				ps.Status = models.HealthStatusDegraded
				if out.Status == models.HealthStatusOK {
					out.Status = models.HealthStatusDegraded
				}
			}
			out.Providers = append(out.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}
