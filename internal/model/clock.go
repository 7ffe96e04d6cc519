package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay bounds every TimeOfDay value.
const MinutesPerDay = 24 * 60

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (seconds are ignored, as Postgres TIME renders them).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time out of range: %s", s)
	}

	return TimeOfDay(hour*60 + minute), nil
}

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// UnmarshalJSON accepts minutes since midnight or an "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var minutes int
	if err := json.Unmarshal(data, &minutes); err == nil {
		*t = TimeOfDay(minutes)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return NewValidationError("time", "expected minutes since midnight or HH:MM")
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return NewValidationError("time", err.Error())
	}
	*t = parsed
	return nil
}

// Valid reports whether t is a start time inside one calendar day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return d, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// DateOf returns the calendar date of instant t as observed in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// At returns the instant at which time of day t occurs on date in loc.
func At(date time.Time, t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, int(t), 0, 0, loc)
}

// Weekday maps a date to the stored day_of_week, where Monday is 0 and Sunday is 6.
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}
