package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
)

// RestaurantSettings is the admin view of everything that shapes availability.
type RestaurantSettings struct {
	Booking      model.BookingSettings `json:"booking"`
	OpeningHours []model.OpeningHours  `json:"opening_hours"`
	SpecialHours []model.SpecialHours  `json:"special_hours"`
}

type SettingsService struct {
	settings SettingsStore
	hours    HoursStore
	clock    Clock
	logger   *zap.Logger
}

func NewSettingsService(settings SettingsStore, hours HoursStore, clock Clock, logger *zap.Logger) *SettingsService {
	return &SettingsService{settings: settings, hours: hours, clock: clock, logger: logger}
}

// Get returns the settings, the weekly pattern and upcoming overrides.
func (s *SettingsService) Get(ctx context.Context, restaurantID uuid.UUID) (*RestaurantSettings, error) {
	booking, err := s.settings.GetSettings(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("restaurant %s: %w", restaurantID, model.ErrNotFound)
	}

	week, err := s.hours.ListOpeningHours(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list opening hours: %w", err)
	}

	today := model.DateOf(s.clock.Now(), s.clock.Location())
	special, err := s.hours.ListSpecialHours(ctx, restaurantID, today)
	if err != nil {
		return nil, fmt.Errorf("list special hours: %w", err)
	}
	if special == nil {
		special = []model.SpecialHours{}
	}

	return &RestaurantSettings{Booking: *booking, OpeningHours: week, SpecialHours: special}, nil
}

// Save validates and stores booking settings and, when given, the weekly pattern.
func (s *SettingsService) Save(ctx context.Context, restaurantID uuid.UUID, booking model.BookingSettings, week []model.OpeningHours) error {
	booking.RestaurantID = restaurantID
	if err := booking.Validate(); err != nil {
		return err
	}

	seen := make(map[int]bool, len(week))
	for i := range week {
		week[i].RestaurantID = restaurantID
		if err := week[i].Validate(); err != nil {
			return err
		}
		if seen[week[i].DayOfWeek] {
			return model.NewValidationError("day_of_week", fmt.Sprintf("day %d given twice", week[i].DayOfWeek))
		}
		seen[week[i].DayOfWeek] = true
	}

	if err := s.settings.UpsertSettings(ctx, &booking); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if len(week) > 0 {
		if err := s.hours.ReplaceOpeningHours(ctx, restaurantID, week); err != nil {
			return fmt.Errorf("save opening hours: %w", err)
		}
	}

	s.logger.Info("Settings saved",
		zap.String("restaurant_id", restaurantID.String()),
		zap.Int("slot_duration", booking.SlotDuration),
		zap.Int("booking_duration", booking.DefaultBookingDuration),
		zap.Int("days", len(week)))
	return nil
}

// SetSpecialHours overrides the weekly pattern for one date.
func (s *SettingsService) SetSpecialHours(ctx context.Context, special *model.SpecialHours) error {
	if err := special.Validate(); err != nil {
		return err
	}
	if err := s.hours.UpsertSpecialHours(ctx, special); err != nil {
		return fmt.Errorf("save special hours: %w", err)
	}
	s.logger.Info("Special hours set",
		zap.String("restaurant_id", special.RestaurantID.String()),
		zap.String("date", model.FormatDate(special.Date)),
		zap.Bool("closed", special.IsClosed))
	return nil
}

func (s *SettingsService) ClearSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) error {
	if err := s.hours.DeleteSpecialHours(ctx, restaurantID, date); err != nil {
		return err
	}
	s.logger.Info("Special hours cleared",
		zap.String("restaurant_id", restaurantID.String()),
		zap.String("date", model.FormatDate(date)))
	return nil
}
