package cli

import (
	"encoding/json"
	"io"

	"github.com/redis/go-redis/v9"

	"tablebook/internal/events"
	"tablebook/internal/provider/designmynight"
)

// newClient wires the provider client with the optional Redis tier and event logging.
func (a *app) newClient() (*designmynight.Client, *redis.Client) {
	client := designmynight.NewClient(designmynight.OptionsFromConfig(a.cfg), &a.logger)

	var rdb *redis.Client
	if a.cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		client.UseRedisCache(rdb, a.cfg.Redis.KeyPrefix)
	}

	bus := events.NewEventBus()
	for _, eventType := range []string{events.BookingCreated, events.BookingRejected, events.BookingCancelled} {
		bus.Subscribe(eventType, func(e events.Event) error {
			a.logger.Info().
				Int64("event_id", e.ID).
				Str("event", e.Type).
				RawJSON("payload", e.Payload).
				Msg("booking event")
			return nil
		})
	}
	client.UseEvents(bus)

	return client, rdb
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
