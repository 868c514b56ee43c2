package designmynight

// Wire shapes of the booking-availability and bookings endpoints. Only the
// fields the client reads are declared.

type typesResponse struct {
	Payload struct {
		Validation struct {
			Type struct {
				SuggestedValues []struct {
					Value struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"value"`
				} `json:"suggestedValues"`
			} `json:"type"`
		} `json:"validation"`
	} `json:"payload"`
}

// Slot suggestions are decoded loosely so one odd entry cannot fail the type.
type timeSlotsResponse struct {
	Payload struct {
		Validation struct {
			Time struct {
				SuggestedValues []map[string]any `json:"suggestedValues"`
			} `json:"time"`
		} `json:"validation"`
	} `json:"payload"`
}

type detailsResponse struct {
	Payload *struct {
		Next *struct {
			Web *string `json:"web"`
		} `json:"next"`
		DepositRequired *bool          `json:"depositRequired"`
		BookingDetails  map[string]any `json:"bookingDetails"`
	} `json:"payload"`
}

type bookingResponse struct {
	Payload struct {
		BookingStatus string `json:"bookingStatus"`
		Venue         struct {
			Title string `json:"title"`
		} `json:"venue"`
		Booking struct {
			ID          string `json:"id"`
			Date        string `json:"date"`
			Time        string `json:"time"`
			NumPeople   int    `json:"num_people"`
			CreatedDate string `json:"created_date"`
			Type        struct {
				Name string `json:"name"`
			} `json:"type"`
			Email     string `json:"email"`
			VenueID   string `json:"venue_id"`
			CreatedBy string `json:"created_by"`
			Reference string `json:"reference"`
		} `json:"booking"`
	} `json:"payload"`
}
