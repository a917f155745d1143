// Package main provides the entrypoint for the OneMap API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/api"
	"github.com/onemap/onemap/internal/api/middleware"
	"github.com/onemap/onemap/internal/config"
	"github.com/onemap/onemap/internal/database"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/dispatch/upstream"
	"github.com/onemap/onemap/internal/featureflags"
	"github.com/onemap/onemap/internal/provider/resilience"
	"github.com/onemap/onemap/internal/telemetry"
	"github.com/onemap/onemap/internal/tripmap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "onemap-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := cfg.Logger(os.Stdout, serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting OneMap API")

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Instruments go to the global provider, which Init points at OTLP.
	httpMetrics, err := middleware.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	traceMetrics, err := telemetry.NewTraceMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize trace metrics")
	}

	trips := newDispatchService(cfg, providerMetrics, log)

	seed, err := featureflags.FromMap(cfg.FeatureFlags)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid feature_flags in configuration")
	}
	flagRepo, closeRepo, err := newFlagRepository(ctx, cfg, seed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feature flag storage")
	}
	defer closeRepo()

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   time.Minute,
	})
	log.Info().Int("seeded", len(seed)).Msg("feature flags service initialized")

	mapCfg := tripmap.ServiceConfig{
		Flags:    flags,
		Location: cfg.Location(),
		Metrics:  traceMetrics,
		Logger:   log,
	}
	if trips != nil {
		mapCfg.Trips = trips
	}
	maps := tripmap.NewService(mapCfg)

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.App.RequireTLS,
		Registry:    resilience.GlobalRegistry,
		Dispatch:    trips,
		TripMaps:    maps,
		Flags:       flags,
		Depots:      cfg.Depots,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// newDispatchService returns nil when no dispatch backend is configured.
func newDispatchService(cfg *config.Config, metrics dispatch.Metrics, log zerolog.Logger) *dispatch.Service {
	if cfg.Dispatch.BaseURL == "" {
		log.Warn().Msg("dispatch base URL not configured - trip maps will be unavailable")
		return nil
	}

	httpCfg := resilience.DefaultClientConfig(upstream.ProviderName)
	httpCfg.Timeout = cfg.Dispatch.Timeout
	httpCfg.Registry = resilience.GlobalRegistry
	httpCfg.Logger = log

	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:    cfg.Dispatch.BaseURL,
		APIKey:     cfg.Dispatch.APIKey,
		HTTPClient: resilience.NewClient(httpCfg),
		Metrics:    metrics,
		Logger:     log,
	})

	log.Info().Str("base_url", cfg.Dispatch.BaseURL).Msg("dispatch client initialized")

	return dispatch.NewService(dispatch.ServiceConfig{
		Provider:        client,
		Logger:          log,
		CacheTTL:        cfg.Dispatch.CacheTTL,
		StaleIfErrorTTL: cfg.Dispatch.StaleIfErrorTTL,
		Metrics:         metrics,
	})
}

// newFlagRepository stores flags in Postgres when a database URL is set and in
// memory otherwise. Seeded values never overwrite stored overrides.
func newFlagRepository(
	ctx context.Context,
	cfg *config.Config,
	seed []*featureflags.Flag,
	log zerolog.Logger,
) (featureflags.Repository, func(), error) {
	if cfg.Database.URL == "" {
		return featureflags.NewInMemoryRepository(seed...), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, database.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(connectCtx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	repo := featureflags.NewPostgresRepository(pool)
	if err := repo.SeedFlags(connectCtx, seed); err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info().Msg("feature flags stored in PostgreSQL")
	return repo, pool.Close, nil
}
