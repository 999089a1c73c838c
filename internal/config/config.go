package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the scheduling engine.
// Environment variables are parsed from the SLOTBOT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Persistence
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/slotbot.db"`

	// Context store / embeddings
	WeaviateURL   string `envconfig:"WEAVIATE_URL" default:"localhost:8080"`
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"mxbai-embed-large"`
	ContextTopK   int     `envconfig:"CONTEXT_TOPK" default:"5"`
	SearchAlpha   float32 `envconfig:"SEARCH_ALPHA" default:"0.6"`

	// Understanding service
	OpenAIModel string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Calendar / task services
	CalendarBaseURL string `envconfig:"CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3"`
	CalendarID      string `envconfig:"CALENDAR_ID" default:"primary"`
	TaskBaseURL     string `envconfig:"TASK_BASE_URL" default:"https://api.todoist.com/rest/v2"`

	// Scheduling defaults
	DefaultTimezone        string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`
	DefaultDurationMinutes int    `envconfig:"DEFAULT_DURATION_MINUTES" default:"30"`
	DraftTTLHours          int    `envconfig:"DRAFT_TTL_HOURS" default:"24"`

	// Retry / latency budgets
	UnderstandMaxAttempts int `envconfig:"UNDERSTAND_MAX_ATTEMPTS" default:"3"`
	ContextMaxAttempts    int `envconfig:"CONTEXT_MAX_ATTEMPTS" default:"2"`
	DispatchMaxAttempts   int `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"4"`
	AdapterTimeoutSeconds int `envconfig:"ADAPTER_TIMEOUT_SECONDS" default:"10"`

	// Health checks
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates the driver selection and derived fields.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"postgres": true, "sqlite": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	if c.ContextTopK <= 0 {
		c.ContextTopK = 5
	}
	return nil
}

// New creates a Config by parsing SLOTBOT_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SLOTBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("weaviate_url", cfg.WeaviateURL).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Str("openai_model", cfg.OpenAIModel).
		Str("default_timezone", cfg.DefaultTimezone).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		DBDriver:                  "memory",
		WeaviateURL:               "localhost:8082",
		EmbedProvider:             "ollama",
		EmbedModel:                "mxbai-embed-large",
		ContextTopK:               5,
		SearchAlpha:               0.6,
		OpenAIModel:               "gpt-4o-mini",
		CalendarBaseURL:           "http://localhost:9201",
		CalendarID:                "primary",
		TaskBaseURL:               "http://localhost:9202",
		DefaultTimezone:           "UTC",
		DefaultDurationMinutes:    30,
		DraftTTLHours:             24,
		UnderstandMaxAttempts:     3,
		ContextMaxAttempts:        2,
		DispatchMaxAttempts:       4,
		AdapterTimeoutSeconds:     2,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// AdapterTimeout is the per-call latency budget for external adapters.
func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutSeconds) * time.Second
}

// DraftTTL is how long an awaiting-clarification draft stays continuable.
func (c *Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLHours) * time.Hour
}

// DefaultDuration is the meeting length applied when none is requested.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMinutes) * time.Minute
}
