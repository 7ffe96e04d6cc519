package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/metrics"
	"github.com/oliver453/lochlann-se/internal/model"
)

// AvailabilityService reports which slots of a date can still take a party.
// It only reads and is safe to call concurrently with allocation.
type AvailabilityService struct {
	settings  SettingsStore
	resolver  *ScheduleResolver
	allocator *TableAllocator
	clock     Clock
	logger    *zap.Logger
}

func NewAvailabilityService(
	settings SettingsStore,
	resolver *ScheduleResolver,
	allocator *TableAllocator,
	clock Clock,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		settings:  settings,
		resolver:  resolver,
		allocator: allocator,
		clock:     clock,
		logger:    logger,
	}
}

// Query returns every candidate slot of date with its free table count.
func (s *AvailabilityService) Query(ctx context.Context, restaurantID uuid.UUID, date time.Time, partySize int) ([]model.Slot, error) {
	slots, err := s.query(ctx, restaurantID, date, partySize)
	switch {
	case err == nil:
		metrics.IncAvailabilityQuery("ok")
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrOutOfWindow), errors.Is(err, model.ErrNotFound):
		metrics.IncAvailabilityQuery("rejected")
	default:
		metrics.IncAvailabilityQuery("error")
		s.logger.Error("Availability query failed",
			zap.String("restaurant_id", restaurantID.String()),
			zap.String("date", model.FormatDate(date)),
			zap.Error(err))
	}
	return slots, err
}

func (s *AvailabilityService) query(ctx context.Context, restaurantID uuid.UUID, date time.Time, partySize int) ([]model.Slot, error) {
	settings, err := s.loadSettings(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := checkPartySize(settings, partySize); err != nil {
		return nil, err
	}

	earliest, err := s.checkWindow(settings, date, model.CreatedViaWebsite)
	if err != nil {
		return nil, err
	}

	day, err := s.resolver.resolveConfigured(ctx, restaurantID, date)
	if err != nil {
		return nil, err
	}

	starts := GenerateSlots(day.Periods, settings.SlotDuration, settings.DefaultBookingDuration)
	result := make([]model.Slot, 0, len(starts))
	if len(starts) == 0 {
		return result, nil
	}

	snap, err := s.allocator.Snapshot(ctx, restaurantID, date, partySize)
	if err != nil {
		return nil, err
	}

	loc := s.clock.Location()
	for _, start := range starts {
		slot := model.Slot{Time: start}
		if earliest.IsZero() || !model.At(date, start, loc).Before(earliest) {
			slot.AvailableTables = len(snap.Eligible(start, settings.DefaultBookingDuration))
		}
		slot.IsAvailable = slot.AvailableTables > 0
		result = append(result, slot)
	}

	s.logger.Debug("Availability computed",
		zap.String("restaurant_id", restaurantID.String()),
		zap.String("date", model.FormatDate(date)),
		zap.Int("party_size", partySize),
		zap.Int("slots", len(result)))

	return result, nil
}

// loadSettings returns the settings with defaults applied, or NotFound.
func (s *AvailabilityService) loadSettings(ctx context.Context, restaurantID uuid.UUID) (model.BookingSettings, error) {
	settings, err := s.settings.GetSettings(ctx, restaurantID)
	if err != nil {
		return model.BookingSettings{}, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		return model.BookingSettings{}, fmt.Errorf("restaurant %s: %w", restaurantID, model.ErrNotFound)
	}
	return settings.WithDefaults(), nil
}

// checkWindow rejects dates outside the bookable range. For website requests
// it returns the earliest bookable instant; admin requests get the zero time
// because the minimum lead time does not apply to staff.
func (s *AvailabilityService) checkWindow(settings model.BookingSettings, date time.Time, via model.CreatedVia) (time.Time, error) {
	now := s.clock.Now()
	loc := s.clock.Location()
	today := model.DateOf(now, loc)

	if date.Before(today) {
		return time.Time{}, fmt.Errorf("%s is in the past: %w", model.FormatDate(date), model.ErrOutOfWindow)
	}

	last := today.AddDate(0, 0, settings.BookingWindowDays)
	if date.After(last) {
		return time.Time{}, fmt.Errorf("%s is after %s: %w", model.FormatDate(date), model.FormatDate(last), model.ErrOutOfWindow)
	}

	if via == model.CreatedViaAdmin {
		return time.Time{}, nil
	}

	earliest := now.Add(settings.MinAdvance())
	if date.Before(model.DateOf(earliest, loc)) {
		return time.Time{}, fmt.Errorf("%s is within %d hours: %w", model.FormatDate(date), settings.MinAdvanceHours, model.ErrOutOfWindow)
	}
	return earliest, nil
}

func checkPartySize(settings model.BookingSettings, partySize int) error {
	if partySize < 1 {
		return model.NewValidationError("partySize", "party size must be at least 1")
	}
	if settings.MaxPartySize > 0 && partySize > settings.MaxPartySize {
		return model.NewValidationError("partySize", fmt.Sprintf("party size %d exceeds maximum %d", partySize, settings.MaxPartySize))
	}
	return nil
}
