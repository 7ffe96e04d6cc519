package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed" // Occupies its table
	BookingStatusCancelled BookingStatus = "cancelled" // Frees the table immediately
	BookingStatusCompleted BookingStatus = "completed" // Guests have been served
	BookingStatusNoShow    BookingStatus = "no_show"   // Guests never arrived
)

// bookingTransitions lists the statuses reachable from each status.
// Only confirmed bookings can move; every other status is terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow},
	BookingStatusCancelled: nil,
	BookingStatusCompleted: nil,
	BookingStatusNoShow:    nil,
}

// ParseBookingStatus converts a wire value into a known status.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if _, ok := bookingTransitions[status]; !ok {
		return "", NewValidationError("status", fmt.Sprintf("unknown booking status %q", s))
	}
	return status, nil
}

// Occupies reports whether a booking in this status blocks its table.
func (s BookingStatus) Occupies() bool {
	return s == BookingStatusConfirmed
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type CreatedVia string

const (
	CreatedViaWebsite CreatedVia = "website"
	CreatedViaAdmin   CreatedVia = "admin"
)

type Booking struct {
	ID               uuid.UUID     `json:"id"`
	RestaurantID     uuid.UUID     `json:"restaurant_id"`
	TableID          *uuid.UUID    `json:"table_id"` // nil until allocated
	Date             time.Time     `json:"-"`
	StartTime        TimeOfDay     `json:"time"`
	Duration         int           `json:"duration"` // minutes
	PartySize        int           `json:"party_size"`
	CustomerName     string        `json:"customer_name"`
	CustomerEmail    string        `json:"customer_email"`
	CustomerPhone    string        `json:"customer_phone"`
	Notes            *string       `json:"notes"`
	Status           BookingStatus `json:"status"`
	CreatedVia       CreatedVia    `json:"created_via"`
	ConfirmationSent bool          `json:"confirmation_sent"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	// Filled by joins, not stored on the booking row
	TableNumber string `json:"table_number,omitempty"`
}

// EndTime returns the minute at which the booking releases its table.
func (b *Booking) EndTime() TimeOfDay {
	return b.StartTime + TimeOfDay(b.Duration)
}

// BookingDate is the calendar date rendered the way the API exposes it.
func (b *Booking) BookingDate() string {
	return FormatDate(b.Date)
}

// MarshalJSON adds the calendar date and the HH:MM start time.
func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		alias
		BookingDate string `json:"booking_date"`
		BookingTime string `json:"booking_time"`
	}{
		alias:       alias(b),
		BookingDate: b.BookingDate(),
		BookingTime: b.StartTime.String(),
	})
}

// BookingFilter narrows admin booking listings.
type BookingFilter struct {
	Date   *time.Time
	Status *BookingStatus
	Limit  int
}
