// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer file/env.
// - All scoring weights and scheduling knobs live here; components never
//   hard-code them.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the metrics/health listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// PostgresDSN selects the Postgres store when non-empty; the in-memory
	// store is used otherwise.
	PostgresDSN string `koanf:"postgres_dsn"`

	// CycleIntervalMinutes is the cadence of full update cycles.
	CycleIntervalMinutes int `koanf:"cycle_interval_minutes"`

	// MaxProducts caps how many products one cycle refreshes. 0 = no cap.
	MaxProducts int `koanf:"max_products"`

	// PriorityOrdering processes products highest priority score first.
	PriorityOrdering bool `koanf:"priority_ordering"`

	// Priority scorer knobs.
	BaselineRefreshMinutes int     `koanf:"baseline_refresh_minutes"`
	TimeWeight             float64 `koanf:"time_weight"`
	VolatilityWindowDays   int     `koanf:"volatility_window_days"`
	VolatilityMinSamples   int     `koanf:"volatility_min_samples"`
	VolatilityScale        float64 `koanf:"volatility_scale"`
	VolatilityMax          float64 `koanf:"volatility_max"`
	AlertWeight            float64 `koanf:"alert_weight"`
	RecentChangeSamples    int     `koanf:"recent_change_samples"`
	RecentChangeWindowHrs  int     `koanf:"recent_change_window_hours"`
	RecentChangeThreshold  float64 `koanf:"recent_change_threshold"`
	RecentChangeWeight     float64 `koanf:"recent_change_weight"`

	// Retry controller knobs.
	MaxAttempts     int     `koanf:"max_attempts"`
	BaseDelayMS     int     `koanf:"base_delay_ms"`
	MaxRetryJitter  float64 `koanf:"max_retry_jitter"`
	RequestDelayMS  int     `koanf:"request_delay_ms"`
	FetchTimeoutSec int     `koanf:"fetch_timeout_sec"`

	// UserAgent is sent on every scrape request.
	UserAgent string `koanf:"user_agent"`

	// AllowMockData registers the synthetic fetcher for offline development.
	// Never enable in production; fabricated prices would pollute history.
	AllowMockData bool `koanf:"allow_mock_data"`

	// SMTP settings for alert emails. Notifications are disabled when Host
	// is empty.
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	SMTPUser string `koanf:"smtp_user"`
	SMTPPass string `koanf:"smtp_pass"`
	SMTPFrom string `koanf:"smtp_from"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		MetricsAddr:            ":9090",
		CycleIntervalMinutes:   30,
		MaxProducts:            0,
		PriorityOrdering:       true,
		BaselineRefreshMinutes: 60,
		TimeWeight:             2.5,
		VolatilityWindowDays:   7,
		VolatilityMinSamples:   5,
		VolatilityScale:        100,
		VolatilityMax:          10,
		AlertWeight:            5,
		RecentChangeSamples:    3,
		RecentChangeWindowHrs:  48,
		RecentChangeThreshold:  0.05,
		RecentChangeWeight:     3,
		MaxAttempts:            3,
		BaseDelayMS:            500,
		MaxRetryJitter:         0.5,
		RequestDelayMS:         1000,
		FetchTimeoutSec:        30,
		UserAgent:              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		SMTPPort:               587,
	}
}
