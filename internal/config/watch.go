package config

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// VenueWatcher polls venues.yaml and reports changes to the set of active venues.
// A missing or invalid file is logged and retried on the next tick; the last good
// venue list stays in effect meanwhile.
type VenueWatcher struct {
	path     string
	interval time.Duration
	logger   zerolog.Logger

	checked     bool
	lastMod     time.Time
	unavailable bool
	loaded      bool
	active      []string
}

// NewVenueWatcher creates a watcher for path, polling every interval.
func NewVenueWatcher(path string, interval time.Duration, logger *zerolog.Logger) *VenueWatcher {
	if path == "" {
		path = "configs/venues.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &VenueWatcher{
		path:     path,
		interval: interval,
		logger:   logger.With().Str("component", "venue_watcher").Str("path", path).Logger(),
	}
}

// Run checks the file immediately and then on every tick until ctx is done.
// onUpdate runs on the first successful load and whenever the active venue set changes.
func (w *VenueWatcher) Run(ctx context.Context, onUpdate func(*VenuesConfig)) {
	w.Check(onUpdate)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(onUpdate)
		}
	}
}

// Check loads the file if it changed since the last check and reports whether
// onUpdate was called.
func (w *VenueWatcher) Check(onUpdate func(*VenuesConfig)) bool {
	info, err := os.Stat(w.path)
	if err != nil {
		if !w.unavailable {
			w.logger.Warn().Err(err).Msg("venues file unavailable")
		}
		w.unavailable = true
		return false
	}
	w.unavailable = false

	if w.checked && !info.ModTime().After(w.lastMod) {
		return false
	}
	w.checked = true
	w.lastMod = info.ModTime()

	cfg, err := LoadVenuesConfig(w.path)
	if err != nil {
		w.logger.Error().Err(err).Bool("have_previous", w.loaded).Msg("venues file rejected")
		return false
	}

	ids := cfg.ActiveIDs()
	if w.loaded && sameVenueSet(w.active, ids) {
		w.logger.Debug().Int("venues", len(ids)).Msg("venues file changed, active set unchanged")
		return false
	}
	w.loaded = true
	w.active = ids

	w.logger.Info().Strs("venues", ids).Msg("active venues loaded")
	if onUpdate != nil {
		onUpdate(cfg)
	}
	return true
}

func sameVenueSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
