// Package main provides the entrypoint for the cache-warming worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tripwise/transferroute/internal/api/handler"
	"github.com/tripwise/transferroute/internal/api/middleware"
	"github.com/tripwise/transferroute/internal/api/response"
	"github.com/tripwise/transferroute/internal/app"
	"github.com/tripwise/transferroute/internal/config"
	"github.com/tripwise/transferroute/internal/telemetry"
	"github.com/tripwise/transferroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "transferroute-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := app.NewLogger(os.Stdout, cfg.App, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Int("corridors", len(cfg.Worker.Corridors)).
		Msg("starting transfer route worker")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(serviceName, Version, cfg.App, cfg.Telemetry))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	warmCfg := worker.DefaultWarmConfig()
	warmCfg.Corridors = worker.CorridorsFromConfig(cfg.Worker.Corridors)
	warmCfg.Concurrency = cfg.Worker.WarmConcurrency
	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Config:   warmCfg,
		Composer: components.Service,
		Logger:   log,
	})

	// Worker also exposes health endpoints for Cloud Run
	server := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           healthRouter(components, warmJob, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			stop()
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("health server forced to shutdown")
		}
	}()

	if cfg.Worker.ProjectID == "" {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, warming once and serving health only")
		res := warmJob.Run(ctx)
		log.Info().
			Int("composed", res.Composed).
			Int("already_cached", res.AlreadyCached).
			Int("failed", res.Failed).
			Msg("startup warm finished")
		<-ctx.Done()
		return nil
	}

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.Worker.ProjectID,
		SubscriptionName: cfg.Worker.Subscription,
		WarmJob:          warmJob,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func healthRouter(components *app.Components, warmJob *worker.WarmJob, log zerolog.Logger) http.Handler {
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  components.Registry,
		Checks:    components.ReadyChecks,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/providers", ops.Providers)
	r.Get("/warm", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, warmJob.MetricsSnapshot())
	})

	return r
}
