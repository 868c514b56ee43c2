package models

import "time"

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	StatusCompleted      BookingStatus = "completed"
	StatusNoShow         BookingStatus = "noShow"
	StatusCancelled      BookingStatus = "cancelled"
	StatusRequested      BookingStatus = "requested"
	StatusPendingPayment BookingStatus = "pendingPayment"
	StatusUpcoming       BookingStatus = "upcoming"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyEUR Currency = "EUR"
)

// Deposit describes money taken up front for a booking.
type Deposit struct {
	AmountUnits int      `json:"amountUnits"`
	AmountPer   string   `json:"amountPer"` // always "guest"
	Currency    Currency `json:"currency"`
	Terms       string   `json:"terms,omitempty"`
}

type Partner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type Venue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Town string `json:"town,omitempty"`
}

// BookingUser is a guest attached to a booking.
type BookingUser struct {
	ID        string `json:"id"`
	IsOwner   bool   `json:"isOwner"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// PreConfirmation is shown to the guest before a slot is booked.
type PreConfirmation struct {
	Notes      string `json:"notes"`
	BookingURL string `json:"bookingUrl"`
}

// Booking is a confirmed or requested reservation as reported by the provider.
type Booking struct {
	ID            string        `json:"id"`
	DateTime      time.Time     `json:"dateTime"`
	Covers        int           `json:"covers"`
	BookedAt      time.Time     `json:"bookedAt"`
	Status        BookingStatus `json:"status"`
	Tag           string        `json:"tag,omitempty"`
	OriginalEmail string        `json:"originalEmail"`
	Venue         Venue         `json:"venue"`
	Users         []BookingUser `json:"users"`
	Partner       *Partner      `json:"partner,omitempty"`
	Deposit       *Deposit      `json:"deposit,omitempty"`
}

// IsConfirmed reports whether the provider accepted the booking outright.
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusCompleted
}

// Owner returns the owning guest, falling back to the first user.
func (b *Booking) Owner() (BookingUser, bool) {
	for _, u := range b.Users {
		if u.IsOwner {
			return u, true
		}
	}
	if len(b.Users) > 0 {
		return b.Users[0], true
	}
	return BookingUser{}, false
}
