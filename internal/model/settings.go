package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSlotDuration    = 30
	DefaultBookingDuration = 120
)

type BookingSettings struct {
	RestaurantID           uuid.UUID `json:"restaurant_id"`
	SlotDuration           int       `json:"slot_duration"`            // minutes between candidate starts
	DefaultBookingDuration int       `json:"default_booking_duration"` // minutes a table is held
	MinAdvanceHours        int       `json:"min_advance_hours"`
	BookingWindowDays      int       `json:"booking_window_days"`
	MaxPartySize           int       `json:"max_party_size"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// WithDefaults fills unset durations the way the booking flow has always assumed.
func (s BookingSettings) WithDefaults() BookingSettings {
	if s.SlotDuration <= 0 {
		s.SlotDuration = DefaultSlotDuration
	}
	if s.DefaultBookingDuration <= 0 {
		s.DefaultBookingDuration = DefaultBookingDuration
	}
	return s
}

// Validate checks the settings an admin is about to save.
func (s *BookingSettings) Validate() error {
	switch {
	case s.SlotDuration <= 0:
		return NewValidationError("slot_duration", "slot duration must be positive")
	case s.DefaultBookingDuration <= 0:
		return NewValidationError("default_booking_duration", "booking duration must be positive")
	case s.MinAdvanceHours < 0:
		return NewValidationError("min_advance_hours", "min advance hours cannot be negative")
	case s.BookingWindowDays < 0:
		return NewValidationError("booking_window_days", "booking window cannot be negative")
	case s.MaxPartySize < 1:
		return NewValidationError("max_party_size", "max party size must be at least 1")
	}
	return nil
}

// MinAdvance returns the minimum lead time as a duration.
func (s *BookingSettings) MinAdvance() time.Duration {
	return time.Duration(s.MinAdvanceHours) * time.Hour
}
