package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if PULSE_CONFIG is set
//  3. env (prefix PULSE_)
//
// Context is accepted first to satisfy the project-wide convention; it is
// reserved for future providers and currently unused.
func Load(_ context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PULSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PULSE_MAX_PRODUCTS, PULSE_SMTP_HOST, ...
	// Map env keys like PULSE_MAX_PRODUCTS -> max_products (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PULSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "pulse_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the scheduler cannot run with.
func (c *Config) validate() error {
	if c.CycleIntervalMinutes < 1 {
		return fmt.Errorf("%w: cycle_interval_minutes must be at least 1", ErrInvalidConfig)
	}
	if c.MaxProducts < 0 {
		return fmt.Errorf("%w: max_products must not be negative", ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.BaseDelayMS < 0 || c.RequestDelayMS < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	if c.MaxRetryJitter < 0 {
		return fmt.Errorf("%w: max_retry_jitter must not be negative", ErrInvalidConfig)
	}
	if c.BaselineRefreshMinutes < 1 {
		return fmt.Errorf("%w: baseline_refresh_minutes must be at least 1", ErrInvalidConfig)
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("%w: metrics_addr must not be empty", ErrInvalidConfig)
	}
	return nil
}
