// Package api provides the HTTP API for transfer route composition.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/api/handler"
	"github.com/tripwise/transferroute/internal/api/middleware"
	"github.com/tripwise/transferroute/internal/api/models"
	"github.com/tripwise/transferroute/internal/api/response"
	"github.com/tripwise/transferroute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// Composer serves POST /v1/transfers:compose.
	Composer handler.Composer

	// Registry backs /v1/ops/providers (optional).
	Registry *resilience.Registry

	// ReadyChecks are run by /v1/ops/ready.
	ReadyChecks map[string]handler.ReadinessCheck

	// Now overrides the clock used to bucket requests without a departure time.
	Now func() time.Time
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), "No endpoint matches "+r.URL.Path+"."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewMethodNotAllowed(middleware.GetRequestID(r.Context()), r.Method+" is not supported on "+r.URL.Path+"."))
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadyChecks,
	})
	transferHandler := handler.NewTransferHandler(cfg.Composer, cfg.Now)

	composeRateLimit := middleware.RateLimitByIP(middleware.ComposeRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Probes are not rate limited.
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/providers", opsHandler.Providers)
		})

		r.With(composeRateLimit, middleware.RequireJSON).
			Post("/transfers:compose", transferHandler.Compose)
	})

	return r
}
