package provider

import (
	"context"
	"time"

	"tablebook/internal/models"
)

// Provider is a reservation backend that can report availability and take bookings.
type Provider interface {
	Name() models.Provider
	GetAvailability(ctx context.Context, venueID string, date time.Time, covers int) ([]models.AvailabilitySlot, error)
	CreateBooking(ctx context.Context, venueID string, user models.BookingUser, slot models.AvailabilitySlot, covers int) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) error
}
