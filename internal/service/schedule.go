package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
)

// ScheduleResolver decides which service periods are in effect on a date.
type ScheduleResolver struct {
	settings SettingsStore
	hours    HoursStore
}

func NewScheduleResolver(settings SettingsStore, hours HoursStore) *ScheduleResolver {
	return &ScheduleResolver{settings: settings, hours: hours}
}

// Resolve returns the schedule for date. Special hours replace the weekly
// pattern entirely. A restaurant without settings is NotFound, which is not
// the same as being closed.
func (r *ScheduleResolver) Resolve(ctx context.Context, restaurantID uuid.UUID, date time.Time) (model.DaySchedule, error) {
	day := model.DaySchedule{Date: date}

	settings, err := r.settings.GetSettings(ctx, restaurantID)
	if err != nil {
		return day, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return day, fmt.Errorf("restaurant %s: %w", restaurantID, model.ErrNotFound)
	}

	return r.resolveConfigured(ctx, restaurantID, date)
}

// resolveConfigured skips the settings lookup for callers that already hold them.
func (r *ScheduleResolver) resolveConfigured(ctx context.Context, restaurantID uuid.UUID, date time.Time) (model.DaySchedule, error) {
	day := model.DaySchedule{Date: date}

	special, err := r.hours.GetSpecialHours(ctx, restaurantID, date)
	if err != nil {
		return day, fmt.Errorf("get special hours: %w", err)
	}
	if special != nil {
		day.Special = true
		if special.IsClosed || special.Period == nil {
			day.Closed = true
			return day, nil
		}
		day.Periods = []model.ServicePeriod{*special.Period}
		return day, nil
	}

	weekly, err := r.hours.GetOpeningHours(ctx, restaurantID, model.Weekday(date))
	if err != nil {
		return day, fmt.Errorf("get opening hours: %w", err)
	}
	if weekly == nil || weekly.IsClosed || len(weekly.Periods) == 0 {
		day.Closed = true
		return day, nil
	}

	day.Periods = weekly.Periods
	return day, nil
}
