// Package api provides the HTTP API for OneMap.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/api/handler"
	"github.com/onemap/onemap/internal/api/middleware"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/featureflags"
	"github.com/onemap/onemap/internal/provider/resilience"
	"github.com/onemap/onemap/internal/tripmap"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	// Registry reports upstream health on /v1/ops/status. Optional.
	Registry *resilience.Registry

	// Dispatch is the cached trip source. Without it trip maps answer 503.
	Dispatch *dispatch.Service

	// TripMaps is built from Dispatch and Flags when nil.
	TripMaps *tripmap.Service

	// Flags is an in-memory service with defaults when nil.
	Flags *featureflags.Service

	// Depots defaults to dispatch.DefaultDepots.
	Depots []dispatch.Depot
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "onemap-api"
	}

	flags := cfg.Flags
	if flags == nil {
		flags = featureflags.NewService(featureflags.ServiceConfig{Logger: cfg.Logger})
	}

	maps := cfg.TripMaps
	if maps == nil {
		mapCfg := tripmap.ServiceConfig{Flags: flags, Logger: cfg.Logger}
		if cfg.Dispatch != nil {
			mapCfg.Trips = cfg.Dispatch
		}
		maps = tripmap.NewService(mapCfg)
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Dispatch)
	metadataHandler := handler.NewMetadataHandler(cfg.Depots)
	tripMapHandler := handler.NewTripMapHandler(maps, flags, cfg.Logger)
	traceHandler := handler.NewTraceHandler(maps)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(flags, cfg.Logger)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/enums", metadataHandler.GetEnums)
			r.Get("/depots", metadataHandler.ListDepots)
		})

		// Segmentation is the expensive path.
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/trip-maps", tripMapHandler.GetTripMap)
			r.Post("/traces:segment", traceHandler.SegmentTrace)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.With(middleware.RequireJSON).Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
