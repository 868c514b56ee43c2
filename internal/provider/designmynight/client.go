package designmynight

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablebook/internal/config"
	"tablebook/internal/models"
	"tablebook/internal/provider"
)

var _ provider.Provider = (*Client)(nil)

// Publisher receives booking lifecycle events.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	Source             string
	Timeout            time.Duration
	MaxAttempts        int
	BackoffBaseSeconds float64
	InsecureSkipVerify bool
	RateLimit          float64
	RateBurst          int
	// MaxConcurrent bounds in-flight sub-requests of one availability call; 0 means unbounded.
	MaxConcurrent   int
	CacheTTL        time.Duration
	CacheMaxEntries int
	// FallbackBookingURL is offered at pre-confirmation when a slot has no URL.
	FallbackBookingURL string
}

// OptionsFromConfig maps the provider and cache sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:            cfg.Provider.BaseURL,
		Source:             cfg.Provider.Source,
		Timeout:            cfg.RequestTimeout(),
		MaxAttempts:        cfg.Provider.MaxAttempts,
		BackoffBaseSeconds: cfg.Provider.BackoffBaseSeconds,
		InsecureSkipVerify: cfg.Provider.InsecureSkipVerify,
		RateLimit:          cfg.Provider.RateLimitPerSecond,
		RateBurst:          cfg.Provider.RateLimitBurst,
		MaxConcurrent:      cfg.Provider.MaxConcurrentRequests,
		CacheTTL:           cfg.CacheTTL(),
		CacheMaxEntries:    cfg.Cache.MaxEntries,
		FallbackBookingURL: cfg.Provider.FallbackBookingURL,
	}
}

// Client talks to the DesignMyNight v4 API.
type Client struct {
	exec          *Executor
	types         *BookingTypeCache
	source        string
	maxConcurrent int
	fallbackURL   string
	events        Publisher
	logger        zerolog.Logger
}

// NewClient constructs a client. Zero option values fall back to the provider defaults.
func NewClient(opts Options, logger *zerolog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.Source == "" {
		opts.Source = config.DefaultSource
	}
	if opts.FallbackBookingURL == "" {
		opts.FallbackBookingURL = DefaultFallbackBookingURL
	}
	policy := DefaultRetryPolicy()
	if opts.MaxAttempts > 0 {
		policy.MaxAttempts = opts.MaxAttempts
	}
	if opts.BackoffBaseSeconds > 0 {
		policy.Backoff = ExponentialBackoff(opts.BackoffBaseSeconds)
	}

	c := &Client{
		exec: NewExecutor(ExecutorConfig{
			BaseURL:            opts.BaseURL,
			Timeout:            opts.Timeout,
			Retry:              policy,
			InsecureSkipVerify: opts.InsecureSkipVerify,
			RateLimit:          opts.RateLimit,
			RateBurst:          opts.RateBurst,
		}, logger),
		source:        opts.Source,
		maxConcurrent: opts.MaxConcurrent,
		fallbackURL:   opts.FallbackBookingURL,
		logger:        logger.With().Str("component", "designmynight").Logger(),
	}
	c.types = NewBookingTypeCache(c.fetchBookingTypes, opts.CacheTTL, opts.CacheMaxEntries, logger)
	return c
}

// UseRedisCache shares the booking type cache through Redis.
func (c *Client) UseRedisCache(redisClient *redis.Client, keyPrefix string) {
	c.types.UseRedisCache(redisClient, keyPrefix)
}

// UseEvents publishes booking lifecycle events to p.
func (c *Client) UseEvents(p Publisher) {
	c.events = p
}

// BookingTypes exposes the booking type cache.
func (c *Client) BookingTypes() *BookingTypeCache {
	return c.types
}

func (c *Client) Name() models.Provider {
	return models.ProviderDesignMyNight
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.exec.Close()
}

func (c *Client) publish(ctx context.Context, eventType string, payload any) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, payload); err != nil {
		c.log(ctx).Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

func (c *Client) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.logger
}
