package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tablebook/internal/config"
	"tablebook/internal/models"
)

const maxParallelVenues = 4

// TypeSource resolves a venue's booking types, hitting the provider only when stale.
type TypeSource interface {
	Get(ctx context.Context, venueID string) ([]models.BookingType, error)
}

// Warmer periodically resolves booking types for the configured venues so
// availability calls find them cached.
type Warmer struct {
	source   TypeSource
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	venues  []string
	running bool
	stopCh  chan struct{}
}

func NewWarmer(source TypeSource, interval time.Duration, logger *zerolog.Logger) *Warmer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Warmer{
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "cache_warmer").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// SetVenues replaces the venue list with the active venues of cfg.
func (w *Warmer) SetVenues(cfg *config.VenuesConfig) {
	ids := cfg.ActiveIDs()
	w.mu.Lock()
	w.venues = ids
	w.mu.Unlock()
	w.logger.Info().Int("venues", len(ids)).Msg("warm-up venue list updated")
}

// Venues returns a copy of the current venue list.
func (w *Warmer) Venues() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.venues...)
}

// Start warms immediately and then on every tick until ctx is done or Stop is called.
func (w *Warmer) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("cache warmer started")
	w.WarmAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("cache warmer stopped by context")
			return
		case <-w.stopCh:
			w.logger.Info().Msg("cache warmer stopped")
			return
		case <-ticker.C:
			w.WarmAll(ctx)
		}
	}
}

func (w *Warmer) Stop() {
	w.mu.Lock()
	if w.running {
		w.running = false
		close(w.stopCh)
	}
	w.mu.Unlock()
}

// WarmAll resolves every venue once and returns how many failed.
func (w *Warmer) WarmAll(ctx context.Context) int {
	venues := w.Venues()

	var (
		mu     sync.Mutex
		failed int
	)
	var g errgroup.Group
	g.SetLimit(maxParallelVenues)
	for _, id := range venues {
		g.Go(func() error {
			types, err := w.source.Get(ctx, id)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				w.logger.Warn().Err(err).Str("venue_id", id).Msg("warm-up failed")
				return nil
			}
			w.logger.Debug().Str("venue_id", id).Int("types", len(types)).Msg("venue warm")
			return nil
		})
	}
	_ = g.Wait()
	return failed
}
