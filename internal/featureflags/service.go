package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long flags are served from memory (default: 1 minute).
	CacheTTL time.Duration

	DefaultFlags map[string]*Flag
}

// Service evaluates flags with a TTL cache and falls back to defaults when
// the repository has no value or fails.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu    sync.RWMutex
	cache map[string]cachedFlag
}

type cachedFlag struct {
	flag      *Flag
	expiresAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}

	return &Service{
		repo:         repo,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]cachedFlag),
	}
}

// GetFlag returns the effective flag for key, or nil when neither the
// repository nor the defaults know it.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag, ok := s.getCached(key); ok {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrFlagNotFound):
		flag = s.defaultFlags[key]
	default:
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
		return s.defaultFlags[key]
	}

	if flag != nil {
		s.setCached(flag)
	}
	return flag
}

// GetAllFlags returns repository values merged over defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}
	for k, v := range flags {
		result[k] = v
	}
	return result
}

// SetFlags validates and stores flag overrides. Only well-known keys are
// accepted so a typo cannot silently create a new flag.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		if _, ok := s.defaultFlags[flag.Key]; !ok {
			return fmt.Errorf("%w: %s", ErrFlagNotFound, flag.Key)
		}
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return fmt.Errorf("storing flags: %w", err)
	}

	for _, flag := range flags {
		s.setCached(flag)
	}

	s.logger.Info().Int("count", len(flags)).Msg("feature flags updated")
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedFlag)
}

// IsEnabled reports whether the boolean flag key is on. Unknown keys are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// SingleSpeedingAsMarker reports whether one-point speeding runs are drawn.
func (s *Service) SingleSpeedingAsMarker(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagSingleSpeedingAsMarker)
}

// ShowExceptionsByDefault reports whether the safety layer starts visible.
func (s *Service) ShowExceptionsByDefault(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagShowExceptionsByDefault)
}

func (s *Service) getCached(key string) (*Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.flag, true
}

func (s *Service) setCached(flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[flag.Key] = cachedFlag{flag: flag, expiresAt: time.Now().Add(s.cacheTTL)}
}
