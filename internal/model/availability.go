package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot is one candidate start time in an availability report.
type Slot struct {
	Time            TimeOfDay `json:"time"`
	AvailableTables int       `json:"availableTables"`
	IsAvailable     bool      `json:"isAvailable"`
}

// DashboardStats summarises recent bookings for the operator dashboard.
type DashboardStats struct {
	Confirmed         int     `json:"confirmed"`
	Completed         int     `json:"completed"`
	Cancelled         int     `json:"cancelled"`
	NoShow            int     `json:"no_show"`
	TotalGuests       int     `json:"total_guests"` // seated guests of completed bookings
	AveragePartySize  float64 `json:"average_party_size"`
	TodayConfirmed    int     `json:"today_confirmed"`
	TomorrowConfirmed int     `json:"tomorrow_confirmed"`
	UpcomingConfirmed int     `json:"upcoming_confirmed"`
}

// BookingEvent is published when a booking is confirmed so that
// downstream workers can deliver the customer confirmation.
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     uuid.UUID `json:"booking_id"`
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	Date          string    `json:"booking_date"`
	Time          string    `json:"booking_time"`
	PartySize     int       `json:"party_size"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const BookingEventConfirmed = "booking.confirmed"

// NewBookingConfirmedEvent builds the event for a freshly confirmed booking.
func NewBookingConfirmedEvent(b *Booking, now time.Time) BookingEvent {
	return BookingEvent{
		Type:          BookingEventConfirmed,
		BookingID:     b.ID,
		RestaurantID:  b.RestaurantID,
		Date:          b.BookingDate(),
		Time:          b.StartTime.String(),
		PartySize:     b.PartySize,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		OccurredAt:    now,
	}
}
