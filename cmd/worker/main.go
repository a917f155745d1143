// Package main provides the entrypoint for the OneMap worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/config"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/dispatch/upstream"
	"github.com/onemap/onemap/internal/featureflags"
	"github.com/onemap/onemap/internal/provider/resilience"
	"github.com/onemap/onemap/internal/telemetry"
	"github.com/onemap/onemap/internal/tripmap"
	"github.com/onemap/onemap/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "onemap-worker"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := cfg.Logger(os.Stdout, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting OneMap worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	traceMetrics, err := telemetry.NewTraceMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize trace metrics")
	}

	if cfg.Dispatch.BaseURL == "" {
		log.Fatal().Msg("dispatch base URL is required for the worker")
	}
	httpCfg := resilience.DefaultClientConfig(upstream.ProviderName)
	httpCfg.Timeout = cfg.Dispatch.Timeout
	httpCfg.Registry = resilience.GlobalRegistry
	httpCfg.Logger = log

	trips := dispatch.NewService(dispatch.ServiceConfig{
		Provider: upstream.NewClient(upstream.ClientConfig{
			BaseURL:    cfg.Dispatch.BaseURL,
			APIKey:     cfg.Dispatch.APIKey,
			HTTPClient: resilience.NewClient(httpCfg),
			Metrics:    providerMetrics,
			Logger:     log,
		}),
		Logger:          log,
		CacheTTL:        cfg.Dispatch.CacheTTL,
		StaleIfErrorTTL: cfg.Dispatch.StaleIfErrorTTL,
		Metrics:         providerMetrics,
	})

	seed, err := featureflags.FromMap(cfg.FeatureFlags)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid feature_flags in configuration")
	}
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(seed...),
		Logger:     log,
	})

	maps := tripmap.NewService(tripmap.ServiceConfig{
		Trips:    trips,
		Flags:    flags,
		Location: cfg.Location(),
		Metrics:  traceMetrics,
		Logger:   log,
	})

	job := worker.NewSummaryJob(worker.SummaryJobConfig{
		Config: worker.SummaryConfig{
			Concurrency: cfg.Worker.Concurrency,
			Timeout:     cfg.Worker.Timeout,
		},
		Maps:   maps,
		Logger: log,
	})

	// Cloud Run probes the worker over HTTP.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(job, resilience.GlobalRegistry))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.ProjectID == "" {
		log.Warn().Msg("pubsub project not configured - worker will only serve health checks")
	} else {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			ResultsTopic:     cfg.PubSub.ResultsTopic,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub handler")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// healthHandler reports job counters and the upstream status for probes.
func healthHandler(job *worker.SummaryJob, registry *resilience.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "healthy",
			"version":   Version,
			"job":       job.MetricsSnapshot(),
			"providers": registry.Overall(),
		})
	}
}
