// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
	_ "time/tzdata" // zone database for minimal images

	"github.com/okian/velopick/internal/domain/scoring"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Storage selects the backend: memory or postgres.
	Storage string `koanf:"storage"`

	// PostgresDSN is used when Storage is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RuleVariant is the deployment default: A (exact or top 3) or B (finish value).
	RuleVariant string `koanf:"rule_variant"`

	// CandidatePoolSize overrides M; 0 keeps the variant default (10 for A, 5 for B).
	CandidatePoolSize int `koanf:"candidate_pool_size"`

	// TopPicksSize is K.
	TopPicksSize int `koanf:"top_picks_size"`

	// ScoringWorkers bounds parallel prediction scoring inside one commit.
	ScoringWorkers int `koanf:"scoring_workers"`

	// RecomputeQueueSize bounds pending recompute jobs.
	RecomputeQueueSize int `koanf:"recompute_queue_size"`

	// RecomputeWorkers sets the recompute worker pool size.
	RecomputeWorkers int `koanf:"recompute_workers"`

	// IdempotencyCacheSize caps remembered Idempotency-Key values.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// RateLimitRPS and RateLimitBurst throttle mutating requests per client IP.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// Timezone interprets zone-less and natural-language deadlines.
	Timezone string `koanf:"timezone"`
}

// New returns a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Storage:              StorageMemory,
		RuleVariant:          "A",
		TopPicksSize:         3,
		ScoringWorkers:       runtime.NumCPU(),
		RecomputeQueueSize:   1_000,
		RecomputeWorkers:     2,
		IdempotencyCacheSize: 10_000,
		RateLimitRPS:         20,
		RateLimitBurst:       40,
		MaxStandingsLimit:    500,
		Timezone:             "Europe/Brussels",
	}
}

// Rules resolves the deployment scoring rules.
func (c *Config) Rules() (scoring.Rules, error) {
	v, err := scoring.ParseVariant(c.RuleVariant)
	if err != nil {
		return scoring.Rules{}, err
	}
	r := scoring.DefaultRules(v)
	if c.TopPicksSize > 0 {
		r.TopPicksSize = c.TopPicksSize
	}
	if c.CandidatePoolSize > 0 {
		r.CandidatePoolSize = c.CandidatePoolSize
	}
	return r, r.Validate()
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Storage != StorageMemory && c.Storage != StoragePostgres:
		return fmt.Errorf("%w: storage must be memory or postgres, got %q", ErrInvalidConfig, c.Storage)
	case c.Storage == StoragePostgres && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required for postgres storage", ErrInvalidConfig)
	case c.ScoringWorkers < 1 || c.RecomputeWorkers < 1:
		return fmt.Errorf("%w: worker counts must be positive", ErrInvalidConfig)
	case c.RecomputeQueueSize < 1:
		return fmt.Errorf("%w: recompute_queue_size must be positive", ErrInvalidConfig)
	case c.RateLimitRPS <= 0 || c.RateLimitBurst < 1:
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if _, err := c.Rules(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
