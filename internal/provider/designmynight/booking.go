package designmynight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
)

var requiredBookingFields = []string{
	"venue_id",
	"source",
	"type",
	"first_name",
	"last_name",
	"email",
	"num_people",
	"date",
	"time",
}

// DefaultFallbackBookingURL is offered at pre-confirmation for slots without a booking page.
const DefaultFallbackBookingURL = "https://booking.com/my-booking-form"

const gracePeriodNotes = "We have a 5 minute grace period. Please call us if you are running later."

// Provider statuses that end a booking attempt.
var rejectedStatuses = map[string]bool{
	"rejected": true,
	"lost":     true,
	"declined": true,
}

// CreateBooking submits a booking for slot. The slot's DesignMyNight metadata is
// replayed as-is with the venue, date, time, party size and guest contact laid over it.
func (c *Client) CreateBooking(ctx context.Context, venueID string, user models.BookingUser, slot models.AvailabilitySlot, covers int) (*models.Booking, error) {
	l := c.log(ctx).With().
		Str("request_id", uuid.New().String()).
		Str("venue_id", venueID).
		Str("time_slot", slot.TimeSlot).
		Logger()
	ctx = l.WithContext(ctx)

	params := c.bookingParams(venueID, user, slot, covers)
	if missing := missingFields(params); len(missing) > 0 {
		metrics.IncBookingCreated("invalid")
		l.Warn().Strs("missing", missing).Msg("booking request incomplete")
		return nil, &BookingValidationError{Missing: missing}
	}

	var resp bookingResponse
	err := c.exec.doJSON(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/bookings",
		Endpoint: "create_booking",
		Body:     params,
	}, &resp)
	if err != nil {
		metrics.IncBookingCreated("failed")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	status := resp.Payload.BookingStatus
	if rejectedStatuses[strings.ToLower(status)] {
		metrics.IncBookingCreated("rejected")
		l.Warn().Str("status", status).Msg("booking rejected by provider")
		c.publish(ctx, events.BookingRejected, map[string]any{
			"venue_id":  venueID,
			"time_slot": slot.TimeSlot,
			"status":    status,
		})
		return nil, &BookingRejectedError{Status: status}
	}

	booking, err := mapBooking(resp, user)
	if err != nil {
		metrics.IncBookingCreated("failed")
		return nil, err
	}

	metrics.IncBookingCreated(string(booking.Status))
	l.Info().
		Str("booking_id", booking.ID).
		Str("status", string(booking.Status)).
		Bool("confirmed", booking.IsConfirmed()).
		Msg("booking created")
	c.publish(ctx, events.BookingCreated, booking)
	return booking, nil
}

// PreConfirm returns the notes and booking page shown before slot is booked.
// It makes no provider call.
func (c *Client) PreConfirm(slot models.AvailabilitySlot) models.PreConfirmation {
	link := slot.URL
	if strings.TrimSpace(link) == "" {
		link = c.fallbackURL
	}
	return models.PreConfirmation{Notes: gracePeriodNotes, BookingURL: link}
}

func (c *Client) bookingParams(venueID string, user models.BookingUser, slot models.AvailabilitySlot, covers int) map[string]any {
	params := copyBag(slot.MetaData.For(models.ProviderDesignMyNight))

	set := func(key string, v any) {
		if s, ok := v.(string); ok && s == "" {
			return
		}
		params[key] = v
	}
	set("venue_id", venueID)
	if !slot.Date.IsZero() {
		set("date", slot.Date.Format(dateLayout))
	}
	set("time", slot.TimeSlot)
	if covers > 0 {
		set("num_people", covers)
	}
	set("source", c.source)
	// Guest identity always comes from the caller, even when blank, so a
	// contact left in the slot metadata can never be submitted in its place.
	params["first_name"] = user.FirstName
	params["last_name"] = user.LastName
	params["email"] = user.Email
	set("phone", user.Phone)
	return params
}

// missingFields lists required keys that are absent, nil or an empty string.
func missingFields(params map[string]any) []string {
	var missing []string
	for _, field := range requiredBookingFields {
		v, ok := params[field]
		if !ok || v == nil {
			missing = append(missing, field)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func mapBooking(resp bookingResponse, user models.BookingUser) (*models.Booking, error) {
	b := resp.Payload.Booking

	dateTime, err := combineDateTime(b.Date, b.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: booking date/time: %v", ErrMalformedResponse, err)
	}

	status := models.StatusRequested
	switch strings.ToLower(resp.Payload.BookingStatus) {
	case "confirmed", "complete":
		status = models.StatusCompleted
	}

	booking := &models.Booking{
		ID:            b.ID,
		DateTime:      dateTime,
		Covers:        b.NumPeople,
		BookedAt:      parseTimestamp(b.CreatedDate),
		Status:        status,
		Tag:           b.Type.Name,
		OriginalEmail: b.Email,
		Venue: models.Venue{
			ID:   b.VenueID,
			Name: resp.Payload.Venue.Title,
		},
		Users: []models.BookingUser{user},
	}
	if b.CreatedBy != "" || b.Reference != "" {
		booking.Partner = &models.Partner{ID: b.CreatedBy, Name: b.Reference}
	}
	return booking, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	dateLayout,
}

// combineDateTime joins the calendar date of an ISO date or datetime with an HH:MM time.
func combineDateTime(date, clock string) (time.Time, error) {
	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		day, err = time.Parse(layout, date)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}

	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, day.Location()), nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CancelBooking asks the provider to cancel bookingID. Failures are returned unchanged.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	l := c.log(ctx).With().Str("booking_id", bookingID).Logger()

	if strings.TrimSpace(bookingID) == "" {
		return &BookingValidationError{Missing: []string{"booking_id"}}
	}

	_, err := c.exec.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/cancel-booking/" + url.PathEscape(bookingID),
		Endpoint: "cancel_booking",
	})
	if err != nil {
		var failed *RequestFailedError
		if errors.As(err, &failed) {
			l.Error().Err(err).Int("status", failed.StatusCode).Msg("booking cancellation failed")
		} else {
			l.Error().Err(err).Msg("booking cancellation failed")
		}
		return err
	}

	metrics.IncBookingCancelled()
	l.Info().Msg("booking cancelled")
	c.publish(ctx, events.BookingCancelled, map[string]string{"booking_id": bookingID})
	return nil
}
