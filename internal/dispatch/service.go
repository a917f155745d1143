package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider defines the interface for trip-data providers.
type Provider interface {
	// GetTrip fetches both periods of a route on a service date.
	GetTrip(ctx context.Context, route string, date time.Time) (*Trip, error)

	// Name returns the provider name for logging.
	Name() string
}

// Metrics records provider call outcomes.
type Metrics interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

const opGetTrip = "get_trip"

// ServiceConfig holds configuration for the dispatch service.
type ServiceConfig struct {
	// Provider is the trip-data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a trip stays fresh (default: 2 minutes).
	// Trips for today keep growing while buses are out.
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 30 minutes).
	StaleIfErrorTTL time.Duration

	// Metrics is optional.
	Metrics Metrics
}

// Service provides trips with caching.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	metrics         Metrics

	inflight singleflight.Group

	mu              sync.RWMutex
	tripCache       map[string]*cachedTrip
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type cachedTrip struct {
	trip      *Trip
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new dispatch service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 2 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		metrics:         cfg.Metrics,
		tripCache:       make(map[string]*cachedTrip),
		cleanupInterval: 10 * time.Minute,
	}
}

// ProviderName returns the underlying provider's name.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetTrip returns the trip for route on date.
func (s *Service) GetTrip(ctx context.Context, route string, date time.Time) (*Trip, error) {
	route = NormalizeRoute(route)
	if route == "" || date.IsZero() {
		return nil, ErrInvalidRequest
	}
	key := tripCacheKey(route, date)

	s.mu.RLock()
	if cached, ok := s.tripCache[key]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.recordCache(true)
		return cached.trip, nil
	}
	s.mu.RUnlock()

	s.recordCache(false)
	return s.fetchTrip(ctx, route, date, key)
}

// fetchTrip fetches from provider and updates cache. Concurrent misses for
// the same key share one upstream call; different keys never wait on each
// other.
func (s *Service) fetchTrip(ctx context.Context, route string, date time.Time, key string) (*Trip, error) {
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.loadTrip(ctx, route, date, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Trip), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loadTrip calls the provider without holding mu.
func (s *Service) loadTrip(ctx context.Context, route string, date time.Time, key string) (*Trip, error) {
	s.mu.RLock()
	cached, ok := s.tripCache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.trip, nil
	}

	s.logger.Debug().
		Str("route", route).
		Str("date", date.Format(DateLayout)).
		Str("provider", s.provider.Name()).
		Msg("fetching trip from provider")

	start := time.Now()
	trip, err := s.provider.GetTrip(ctx, route, date)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), opGetTrip, time.Since(start), err)
	}
	if err != nil {
		if errors.Is(err, ErrTripNotFound) || errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}

		s.logger.Error().Err(err).
			Str("route", route).
			Msg("failed to fetch trip")

		if ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale trip data due to provider error")
			return cached.trip, nil
		}

		return nil, ErrProviderUnavailable
	}

	trip.Route = route
	trip.Date = date
	trip.ApplyDefaults()

	now := time.Now()
	trip.FetchedAt = now

	s.mu.Lock()
	s.tripCache[key] = &cachedTrip{
		trip:      trip,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded()
	s.mu.Unlock()

	return trip, nil
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(s.provider.Name(), opGetTrip)
	} else {
		s.metrics.RecordCacheMiss(s.provider.Name(), opGetTrip)
	}
}

func tripCacheKey(route string, date time.Time) string {
	return route + "|" + date.Format(DateLayout)
}

// cleanupIfNeeded removes entries past their stale window. Callers hold mu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.tripCache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.tripCache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired trip cache entries")
	}
}

// InvalidateCache clears all cached trips.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tripCache = make(map[string]*cachedTrip)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := CacheStats{
		Provider:    s.provider.Name(),
		TripEntries: len(s.tripCache),
	}
	for _, cached := range s.tripCache {
		if now.Before(cached.expiresAt) {
			stats.FreshEntries++
		}
	}
	return stats
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Provider     string
	TripEntries  int
	FreshEntries int
}
