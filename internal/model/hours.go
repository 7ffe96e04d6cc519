package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ServicePeriod is one contiguous interval during which parties may be seated.
type ServicePeriod struct {
	Start       TimeOfDay  `json:"start"`
	End         TimeOfDay  `json:"end"`
	LastSeating *TimeOfDay `json:"last_seating,omitempty"`
}

// SeatingCutoff is min(last seating, end). Bookings must finish by it.
func (p ServicePeriod) SeatingCutoff() TimeOfDay {
	if p.LastSeating != nil && *p.LastSeating < p.End {
		return *p.LastSeating
	}
	return p.End
}

// Validate checks the period bounds.
func (p ServicePeriod) Validate() error {
	if p.Start < 0 || p.End > MinutesPerDay || p.Start >= p.End {
		return NewValidationError("period", fmt.Sprintf("period %s-%s is not a valid interval", p.Start, p.End))
	}
	if p.LastSeating != nil && (*p.LastSeating < p.Start || *p.LastSeating > p.End) {
		return NewValidationError("last_seating", fmt.Sprintf("last seating %s must be within %s-%s", *p.LastSeating, p.Start, p.End))
	}
	return nil
}

// ValidatePeriods checks each period and rejects overlaps between them.
func ValidatePeriods(periods []ServicePeriod) error {
	sorted := make([]ServicePeriod, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, p := range sorted {
		if err := p.Validate(); err != nil {
			return err
		}
		if i > 0 && p.Start < sorted[i-1].End {
			return NewValidationError("periods", fmt.Sprintf("period starting %s overlaps period ending %s", p.Start, sorted[i-1].End))
		}
	}
	return nil
}

// OpeningHours is the weekly pattern for one day of the week.
type OpeningHours struct {
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	DayOfWeek    int             `json:"day_of_week"` // 0 = Monday, 6 = Sunday
	IsClosed     bool            `json:"is_closed"`
	Periods      []ServicePeriod `json:"periods"`
}

// Validate checks the weekday and the periods of the day.
func (h *OpeningHours) Validate() error {
	if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
		return NewValidationError("day_of_week", fmt.Sprintf("day of week %d out of range 0-6", h.DayOfWeek))
	}
	if h.IsClosed {
		return nil
	}
	return ValidatePeriods(h.Periods)
}

// SpecialHours overrides the weekly pattern on a single calendar date.
type SpecialHours struct {
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Date         time.Time      `json:"-"`
	IsClosed     bool           `json:"is_closed"`
	Period       *ServicePeriod `json:"period,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Validate requires either a closure or a replacement period.
func (s *SpecialHours) Validate() error {
	if s.IsClosed {
		return nil
	}
	if s.Period == nil {
		return NewValidationError("period", "special hours need a period unless closed")
	}
	return s.Period.Validate()
}

func (s SpecialHours) MarshalJSON() ([]byte, error) {
	type alias SpecialHours
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias(s), FormatDate(s.Date)})
}

// DaySchedule is the resolved service for one date.
type DaySchedule struct {
	Date    time.Time
	Closed  bool
	Special bool // true when special hours decided the result
	Periods []ServicePeriod
}
