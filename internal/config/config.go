// Package config loads process configuration from .env, an optional YAML
// file and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/onemap/onemap/internal/dispatch"
)

// DefaultPath is read when ONEMAP_CONFIG is unset. A missing default file is
// not an error; a missing explicit file is.
const DefaultPath = "config.yml"

// Config is the merged process configuration.
type Config struct {
	App          AppConfig        `yaml:"app"`
	Telemetry    TelemetryConfig  `yaml:"telemetry"`
	Dispatch     DispatchConfig   `yaml:"dispatch"`
	Database     DatabaseConfig   `yaml:"database"`
	Display      DisplayConfig    `yaml:"display"`
	PubSub       PubSubConfig     `yaml:"pubsub"`
	Worker       WorkerConfig     `yaml:"worker"`
	Depots       []dispatch.Depot `yaml:"depots" validate:"dive"`
	FeatureFlags map[string]any   `yaml:"feature_flags"`
}

type AppConfig struct {
	Port       string `yaml:"port" validate:"required,numeric"`
	Env        string `yaml:"env" validate:"required,oneof=development test staging production"`
	LogLevel   string `yaml:"log_level" validate:"required,oneof=trace debug info warn error"`
	RequireTLS bool   `yaml:"require_tls"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SampleRatio  float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

type DispatchConfig struct {
	// BaseURL may be empty; the API then answers trip-map requests with 503.
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	StaleIfErrorTTL time.Duration `yaml:"stale_if_error_ttl" validate:"gte=0"`
}

// DatabaseConfig is optional; without a URL feature flags live in memory.
type DatabaseConfig struct {
	URL             string        `yaml:"url" validate:"omitempty,url"`
	MaxConns        int           `yaml:"max_conns" validate:"gte=1"`
	MinConns        int           `yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

type DisplayConfig struct {
	Timezone string `yaml:"timezone" validate:"required,timezone"`
}

type PubSubConfig struct {
	ProjectID    string `yaml:"project_id"`
	Subscription string `yaml:"subscription"`
	ResultsTopic string `yaml:"results_topic"`
}

type WorkerConfig struct {
	Concurrency int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Dispatch: DispatchConfig{
			Timeout:         10 * time.Second,
			CacheTTL:        2 * time.Minute,
			StaleIfErrorTTL: 30 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Display: DisplayConfig{Timezone: "America/New_York"},
		PubSub: PubSubConfig{
			Subscription: "onemap-jobs",
			ResultsTopic: "onemap-trip-summaries",
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			Timeout:     30 * time.Second,
		},
		Depots: dispatch.DefaultDepots(),
	}
}

// Load reads .env, then the YAML file named by ONEMAP_CONFIG, then the
// environment, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path, explicit := os.LookupEnv("ONEMAP_CONFIG")
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return c.Decode(f)
}

// Decode merges YAML from r over c.
func (c *Config) Decode(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.App.Port = getEnvOrDefault("APP_PORT", c.App.Port)
	c.App.Env = getEnvOrDefault("APP_ENV", c.App.Env)
	c.App.LogLevel = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.App.LogLevel))
	c.Telemetry.OTLPEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Dispatch.BaseURL = getEnvOrDefault("DISPATCH_BASE_URL", c.Dispatch.BaseURL)
	c.Dispatch.APIKey = getEnvOrDefault("DISPATCH_API_KEY", c.Dispatch.APIKey)
	c.Database.URL = getEnvOrDefault("DATABASE_URL", c.Database.URL)
	c.Display.Timezone = getEnvOrDefault("DISPLAY_TIMEZONE", c.Display.Timezone)
	c.PubSub.ProjectID = getEnvOrDefault("PUBSUB_PROJECT_ID", c.PubSub.ProjectID)
	c.PubSub.Subscription = getEnvOrDefault("PUBSUB_SUBSCRIPTION", c.PubSub.Subscription)
	c.PubSub.ResultsTopic = getEnvOrDefault("PUBSUB_RESULTS_TOPIC", c.PubSub.ResultsTopic)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(envBool("OTEL_ENABLED", &c.Telemetry.Enabled))
	collect(envBool("REQUIRE_TLS", &c.App.RequireTLS))
	collect(envDuration("DISPATCH_TIMEOUT", &c.Dispatch.Timeout))
	collect(envDuration("DISPATCH_CACHE_TTL", &c.Dispatch.CacheTTL))
	collect(envInt("WORKER_CONCURRENCY", &c.Worker.Concurrency))
	collect(envInt("DB_MAX_CONNS", &c.Database.MaxConns))
	return errors.Join(errs...)
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location loads the display time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger(w io.Writer, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("env", c.App.Env).
		Logger()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}
