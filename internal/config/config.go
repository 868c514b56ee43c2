package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.designmynight.com/v4"
	DefaultSource  = "designmynight"
)

type Config struct {
	Provider ProviderConfig `yaml:"provider"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"cache"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	Warmup struct {
		VenuesPath           string `yaml:"venues_path"`
		IntervalSeconds      int    `yaml:"interval_seconds"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"warmup"`
}

// ProviderConfig controls how the DesignMyNight API is called.
type ProviderConfig struct {
	BaseURL               string  `yaml:"base_url"`
	Source                string  `yaml:"source"`
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`
	// MaxAttempts counts the first attempt, so 1 means no retry.
	MaxAttempts           int     `yaml:"max_attempts"`
	BackoffBaseSeconds    float64 `yaml:"backoff_base_seconds"`
	InsecureSkipVerify    bool    `yaml:"insecure_skip_verify"`
	RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst        int     `yaml:"rate_limit_burst"`
	MaxConcurrentRequests int     `yaml:"max_concurrent_requests"`
	FallbackBookingURL    string  `yaml:"fallback_booking_url"`
}

// Load reads the YAML config at path, expands ${ENV_VAR} placeholders and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes raw YAML into a Config with defaults applied.
func Parse(data []byte) (*Config, error) {
	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns a config with every default applied, for callers without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultBaseURL
	}
	if c.Provider.Source == "" {
		c.Provider.Source = DefaultSource
	}
	if c.Provider.RequestTimeoutSeconds <= 0 {
		c.Provider.RequestTimeoutSeconds = 10
	}
	if c.Provider.MaxAttempts <= 0 {
		c.Provider.MaxAttempts = 1
	}
	if c.Provider.BackoffBaseSeconds <= 0 {
		c.Provider.BackoffBaseSeconds = 2
	}
	if c.Provider.RateLimitBurst <= 0 {
		c.Provider.RateLimitBurst = 1
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 3600
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "tablebook:"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Warmup.IntervalSeconds <= 0 {
		c.Warmup.IntervalSeconds = 300
	}
	if c.Warmup.WatchIntervalSeconds <= 0 {
		c.Warmup.WatchIntervalSeconds = 30
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Provider.MaxConcurrentRequests < 0 {
		return errors.New("provider.max_concurrent_requests must not be negative")
	}
	if c.Provider.RateLimitPerSecond < 0 {
		return errors.New("provider.rate_limit_per_second must not be negative")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must not be negative")
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Provider.RequestTimeoutSeconds * float64(time.Second))
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) WarmupInterval() time.Duration {
	return time.Duration(c.Warmup.IntervalSeconds) * time.Second
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Warmup.WatchIntervalSeconds) * time.Second
}
