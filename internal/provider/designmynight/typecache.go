package designmynight

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"tablebook/internal/metrics"
	"tablebook/internal/models"
)

// TypeFetcher loads the booking type catalog of a venue from the provider.
type TypeFetcher func(ctx context.Context, venueID string) ([]models.BookingType, error)

type typeEntry struct {
	Types       []models.BookingType `json:"types"`
	RefreshedAt time.Time            `json:"refreshed_at"`
}

// BookingTypeCache keeps each venue's booking types for a fixed TTL.
// Entries are replaced wholesale on refresh and never written on a failed fetch.
type BookingTypeCache struct {
	fetch      TypeFetcher
	ttl        time.Duration
	maxEntries int

	mu      sync.RWMutex
	entries map[string]typeEntry
	group   singleflight.Group

	redis     *redis.Client
	keyPrefix string

	now    func() time.Time
	logger zerolog.Logger
}

// NewBookingTypeCache constructs a cache in front of fetch.
func NewBookingTypeCache(fetch TypeFetcher, ttl time.Duration, maxEntries int, logger *zerolog.Logger) *BookingTypeCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &BookingTypeCache{
		fetch:      fetch,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]typeEntry),
		now:        time.Now,
		logger:     logger.With().Str("component", "booking_type_cache").Logger(),
	}
}

// UseRedisCache adds a shared Redis tier consulted before the provider.
func (c *BookingTypeCache) UseRedisCache(redisClient *redis.Client, keyPrefix string) {
	c.redis = redisClient
	c.keyPrefix = keyPrefix
}

// Get returns the venue's booking types, fetching them when no fresh entry exists.
// Concurrent callers for one venue share a single refresh. The refresh ignores the
// cancellation of whichever caller started it; each caller stops waiting on its own ctx.
func (c *BookingTypeCache) Get(ctx context.Context, venueID string) ([]models.BookingType, error) {
	if types, ok := c.lookup(venueID); ok {
		metrics.IncBookingTypeCache("hit")
		return types, nil
	}

	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(venueID, func() (interface{}, error) {
		return c.refresh(refreshCtx, venueID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneTypes(res.Val.([]models.BookingType)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *BookingTypeCache) refresh(ctx context.Context, venueID string) ([]models.BookingType, error) {
	// A concurrent caller may have refreshed the entry while we queued.
	if types, ok := c.lookup(venueID); ok {
		metrics.IncBookingTypeCache("hit")
		return types, nil
	}

	if entry, ok := c.readShared(ctx, venueID); ok {
		metrics.IncBookingTypeCache("shared_hit")
		c.store(venueID, entry)
		return entry.Types, nil
	}

	metrics.IncBookingTypeCache("miss")
	types, err := c.fetch(ctx, venueID)
	if err != nil {
		return nil, err
	}

	entry := typeEntry{Types: types, RefreshedAt: c.now()}
	c.store(venueID, entry)
	c.writeShared(ctx, venueID, entry)

	c.logger.Debug().
		Str("venue_id", venueID).
		Int("types", len(types)).
		Msg("booking types refreshed")
	return types, nil
}

// Invalidate drops the in-process entry for a venue.
func (c *BookingTypeCache) Invalidate(venueID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, venueID)
}

// Len returns the number of in-process entries, fresh or not.
func (c *BookingTypeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *BookingTypeCache) lookup(venueID string) ([]models.BookingType, bool) {
	c.mu.RLock()
	entry, ok := c.entries[venueID]
	c.mu.RUnlock()
	if !ok || !c.fresh(entry) {
		return nil, false
	}
	return cloneTypes(entry.Types), true
}

func (c *BookingTypeCache) fresh(entry typeEntry) bool {
	return c.now().Sub(entry.RefreshedAt) < c.ttl
}

func (c *BookingTypeCache) store(venueID string, entry typeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[venueID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[venueID] = entry
}

// evictLocked purges expired entries, then the oldest one if still full.
func (c *BookingTypeCache) evictLocked() {
	for id, entry := range c.entries {
		if !c.fresh(entry) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.RefreshedAt.Before(oldest) {
			oldestID, oldest = id, entry.RefreshedAt
		}
	}
	delete(c.entries, oldestID)
}

func (c *BookingTypeCache) sharedKey(venueID string) string {
	return c.keyPrefix + "booking_types:" + venueID
}

func (c *BookingTypeCache) readShared(ctx context.Context, venueID string) (typeEntry, bool) {
	if c.redis == nil {
		return typeEntry{}, false
	}
	val, err := c.redis.Get(ctx, c.sharedKey(venueID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("venue_id", venueID).Msg("redis read failed")
		}
		return typeEntry{}, false
	}

	var entry typeEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		c.logger.Warn().Err(err).Str("venue_id", venueID).Msg("discarding unreadable shared entry")
		return typeEntry{}, false
	}
	if !c.fresh(entry) {
		return typeEntry{}, false
	}
	return entry, true
}

func (c *BookingTypeCache) writeShared(ctx context.Context, venueID string, entry typeEntry) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.sharedKey(venueID), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("venue_id", venueID).Msg("redis write failed")
	}
}

func cloneTypes(in []models.BookingType) []models.BookingType {
	if in == nil {
		return nil
	}
	return append([]models.BookingType(nil), in...)
}
