package designmynight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tablebook/internal/metrics"
	"tablebook/internal/models"
)

const (
	slotMaxDuration = 90
	slotMinDuration = 45
	dateLayout      = "2006-01-02"
)

// typeResult is the joined outcome of both sub-requests for one booking type.
type typeResult struct {
	slots      []models.TimeSlot
	slotsErr   error
	details    models.BookingDetails
	detailsErr error
}

// GetAvailability returns every bookable slot of venueID on date for covers guests,
// sorted by time. A booking type whose lookups fail is left out of the result;
// only a failed type catalog lookup fails the call.
func (c *Client) GetAvailability(ctx context.Context, venueID string, date time.Time, covers int) ([]models.AvailabilitySlot, error) {
	l := c.log(ctx).With().
		Str("request_id", uuid.New().String()).
		Str("venue_id", venueID).
		Str("date", date.Format(dateLayout)).
		Int("covers", covers).
		Logger()
	ctx = l.WithContext(ctx)
	started := time.Now()

	types, err := c.types.Get(ctx, venueID)
	if err != nil {
		l.Error().Err(err).Msg("booking type lookup failed")
		return nil, fmt.Errorf("get booking types for venue %s: %w", venueID, err)
	}

	results := make([]typeResult, len(types))

	// Branch errors are kept per type; no branch returns an error so none cancels its siblings.
	var g errgroup.Group
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}
	for i, bt := range types {
		res := &results[i]
		g.Go(func() error {
			res.slots, res.slotsErr = c.fetchTimeSlots(ctx, venueID, bt.ID, covers, date)
			return nil
		})
		g.Go(func() error {
			res.details, res.detailsErr = c.fetchBookingDetails(ctx, venueID, bt.ID, covers, date)
			return nil
		})
	}
	_ = g.Wait()

	slots := make([]models.AvailabilitySlot, 0)
	for i, bt := range types {
		res := results[i]
		if reason, err := skipReason(res); err != nil {
			metrics.IncTypeSkipped(reason)
			l.Warn().
				Err(err).
				Str("booking_type", bt.ID).
				Str("reason", reason).
				Msg("skipping booking type")
			continue
		}
		for _, ts := range res.slots {
			slots = append(slots, buildSlot(bt, ts, res.details, date, covers))
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].TimeSlot < slots[j].TimeSlot
	})

	l.Info().
		Int("types", len(types)).
		Int("slots", len(slots)).
		Dur("elapsed", time.Since(started)).
		Msg("availability aggregated")
	return slots, nil
}

func skipReason(res typeResult) (string, error) {
	if res.slotsErr != nil {
		return "time_slots_failed", res.slotsErr
	}
	if res.detailsErr != nil {
		if errors.Is(res.detailsErr, ErrMalformedResponse) {
			return "details_malformed", res.detailsErr
		}
		return "details_failed", res.detailsErr
	}
	return "", nil
}

func buildSlot(bt models.BookingType, ts models.TimeSlot, details models.BookingDetails, date time.Time, covers int) models.AvailabilitySlot {
	tag := bt.Name
	if tag == "" {
		tag = bt.ID
	}
	return models.AvailabilitySlot{
		Provider:          models.ProviderDesignMyNight,
		TimeSlot:          ts.Time,
		Date:              date,
		Covers:            covers,
		URL:               details.Link,
		MaxDuration:       slotMaxDuration,
		MinDuration:       slotMinDuration,
		Tag:               tag,
		MetaData:          &models.SlotMetaData{DesignMyNight: copyBag(details.Details)},
		BookingFormAction: formActionFor(details.DepositRequired, ts.Action),
		RequiredDeposit:   details.DepositRequired,
		DOBRequired:       false,
	}
}

// formActionFor sends deposit and enquiry slots to the provider website.
func formActionFor(depositRequired bool, action string) models.BookingFormAction {
	if depositRequired || action == models.SlotActionEnquire || action == models.SlotActionMayEnquire {
		return models.FormActionWebsite
	}
	return models.FormActionBookingInjection
}

func availabilityPath(venueID string) string {
	return "/venues/" + url.PathEscape(venueID) + "/booking-availability"
}

func (c *Client) fetchBookingTypes(ctx context.Context, venueID string) ([]models.BookingType, error) {
	var resp typesResponse
	err := c.exec.doJSON(ctx, Request{
		Method:   http.MethodGet,
		Path:     availabilityPath(venueID),
		Endpoint: "booking_types",
		Query: url.Values{
			"fields":         {"type"},
			"source":         {c.source},
			"partner_source": {"undefined"},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	types := make([]models.BookingType, 0, len(resp.Payload.Validation.Type.SuggestedValues))
	for _, sv := range resp.Payload.Validation.Type.SuggestedValues {
		id := sv.Value.ID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		types = append(types, models.BookingType{ID: id, Name: sv.Value.Name})
	}
	return types, nil
}

func typeQuery(field, typeID string, covers int, date time.Time) url.Values {
	return url.Values{
		"fields":     {field},
		"type":       {typeID},
		"num_people": {strconv.Itoa(covers)},
		"date":       {date.Format(dateLayout)},
	}
}

func (c *Client) fetchTimeSlots(ctx context.Context, venueID, typeID string, covers int, date time.Time) ([]models.TimeSlot, error) {
	var resp timeSlotsResponse
	err := c.exec.doJSON(ctx, Request{
		Method:   http.MethodGet,
		Path:     availabilityPath(venueID),
		Endpoint: "time_slots",
		Query:    typeQuery("time", typeID, covers, date),
	}, &resp)
	if err != nil {
		return nil, err
	}

	var slots []models.TimeSlot
	for _, raw := range resp.Payload.Validation.Time.SuggestedValues {
		if ts, ok := parseTimeSlot(raw); ok {
			slots = append(slots, ts)
		}
	}
	return slots, nil
}

// parseTimeSlot keeps a suggestion only if it has a time, is flagged valid and is not a reject.
func parseTimeSlot(raw map[string]any) (models.TimeSlot, bool) {
	t, _ := raw["time"].(string)
	if t == "" {
		return models.TimeSlot{}, false
	}
	if valid, _ := raw["valid"].(bool); !valid {
		return models.TimeSlot{}, false
	}
	action, _ := raw["action"].(string)
	if action == models.SlotActionReject {
		return models.TimeSlot{}, false
	}
	return models.TimeSlot{Time: t, Action: action}, true
}

func (c *Client) fetchBookingDetails(ctx context.Context, venueID, typeID string, covers int, date time.Time) (models.BookingDetails, error) {
	var resp detailsResponse
	err := c.exec.doJSON(ctx, Request{
		Method:   http.MethodGet,
		Path:     availabilityPath(venueID),
		Endpoint: "booking_details",
		Query:    typeQuery("next", typeID, covers, date),
	}, &resp)
	if err != nil {
		return models.BookingDetails{}, err
	}
	if resp.Payload == nil {
		return models.BookingDetails{}, fmt.Errorf("%w: booking_details: missing payload", ErrMalformedResponse)
	}

	details := models.BookingDetails{Details: resp.Payload.BookingDetails}
	if details.Details == nil {
		details.Details = map[string]any{}
	}
	if resp.Payload.Next != nil && resp.Payload.Next.Web != nil {
		details.Link = *resp.Payload.Next.Web
	}
	if resp.Payload.DepositRequired != nil {
		details.DepositRequired = *resp.Payload.DepositRequired
	}
	return details, nil
}

func copyBag(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
