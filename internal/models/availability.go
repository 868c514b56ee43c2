package models

import "time"

// Provider identifies an upstream reservation provider.
type Provider string

const (
	ProviderDesignMyNight Provider = "designMyNight"
	ProviderOpenTable     Provider = "openTable"
	ProviderResy          Provider = "resy"
	ProviderSevenRooms    Provider = "sevenRooms"
	ProviderResDiary      Provider = "resDiary"
	ProviderTheFork       Provider = "theFork"
	ProviderQuandoo       Provider = "quandoo"
	ProviderTock          Provider = "tock"
	ProviderMock          Provider = "mock_booking_provider"
)

// BookingFormAction tells the caller how a slot has to be booked.
type BookingFormAction string

const (
	// FormActionWebsite sends the guest to the provider's own booking page.
	FormActionWebsite BookingFormAction = "website"
	// FormActionBookingInjection books directly through the provider API.
	FormActionBookingInjection BookingFormAction = "booking_injection"
	FormActionRequestBooking   BookingFormAction = "request_booking"
)

// Raw slot actions reported by the provider.
const (
	SlotActionBook       = "book"
	SlotActionRequest    = "request"
	SlotActionEnquire    = "enquire"
	SlotActionMayEnquire = "may_enquire"
	SlotActionReject     = "reject"
)

// BookingType is a bookable category at a venue (dinner, bar, ...).
type BookingType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeSlot is a single offered time within a booking type.
type TimeSlot struct {
	Time   string `json:"time"`   // "18:30"
	Action string `json:"action"` // book, request, enquire, may_enquire
}

// BookingDetails is per (venue, type, date, covers) data needed to complete a booking.
type BookingDetails struct {
	Link            string         `json:"link"`
	DepositRequired bool           `json:"depositRequired"`
	Details         map[string]any `json:"details"`
}

// SlotMetaData holds provider-specific fields keyed by provider. Only the
// variant of the provider that produced the slot is set.
type SlotMetaData struct {
	SevenRooms    map[string]any `json:"sevenRooms,omitempty"`
	OpenTable     map[string]any `json:"openTable,omitempty"`
	Resy          map[string]any `json:"resy,omitempty"`
	DesignMyNight map[string]any `json:"designMyNight,omitempty"`
	ResDiary      map[string]any `json:"resDiary,omitempty"`
	TheFork       map[string]any `json:"theFork,omitempty"`
	Quandoo       map[string]any `json:"quandoo,omitempty"`
	Tock          map[string]any `json:"tock,omitempty"`
}

// For returns the bag stored for p, or nil.
func (m *SlotMetaData) For(p Provider) map[string]any {
	if m == nil {
		return nil
	}
	switch p {
	case ProviderSevenRooms:
		return m.SevenRooms
	case ProviderOpenTable:
		return m.OpenTable
	case ProviderResy:
		return m.Resy
	case ProviderDesignMyNight:
		return m.DesignMyNight
	case ProviderResDiary:
		return m.ResDiary
	case ProviderTheFork:
		return m.TheFork
	case ProviderQuandoo:
		return m.Quandoo
	case ProviderTock:
		return m.Tock
	}
	return nil
}

// AvailabilitySlot is the provider-agnostic unit of availability.
type AvailabilitySlot struct {
	Provider          Provider          `json:"provider"`
	TimeSlot          string            `json:"timeSlot"` // HH:MM
	Date              time.Time         `json:"date"`
	Covers            int               `json:"covers"`
	URL               string            `json:"url"`
	MaxDuration       int               `json:"maxDuration,omitempty"`
	MinDuration       int               `json:"minDuration,omitempty"`
	Tag               string            `json:"tag,omitempty"`
	MetaData          *SlotMetaData     `json:"metaData,omitempty"`
	BookingFormAction BookingFormAction `json:"bookingFormAction"`
	RequiredDeposit   bool              `json:"requiredDeposit"`
	DOBRequired       bool              `json:"dobRequired"`
}
