package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/metrics"
	"github.com/oliver453/lochlann-se/internal/model"
)

const notifyTimeout = 10 * time.Second

type CreateBookingRequest struct {
	RestaurantID   uuid.UUID
	Date           time.Time
	Time           model.TimeOfDay
	PartySize      int
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Notes          *string
	CreatedVia     model.CreatedVia
	IdempotencyKey string
}

// Validate checks the fields that do not depend on restaurant configuration.
func (r *CreateBookingRequest) Validate() error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)

	switch {
	case r.RestaurantID == uuid.Nil:
		return model.NewValidationError("restaurantId", "restaurant is required")
	case r.Date.IsZero():
		return model.NewValidationError("date", "date is required")
	case !r.Time.Valid():
		return model.NewValidationError("time", fmt.Sprintf("time %d is outside the day", r.Time))
	case r.PartySize < 1:
		return model.NewValidationError("partySize", "party size must be at least 1")
	case r.CustomerName == "":
		return model.NewValidationError("customerName", "name is required")
	case r.CustomerPhone == "":
		return model.NewValidationError("customerPhone", "phone is required")
	}

	addr, err := mail.ParseAddress(r.CustomerEmail)
	if err != nil || addr.Address != r.CustomerEmail {
		return model.NewValidationError("customerEmail", "email is not a valid address")
	}

	switch r.CreatedVia {
	case "":
		r.CreatedVia = model.CreatedViaWebsite
	case model.CreatedViaWebsite, model.CreatedViaAdmin:
	default:
		return model.NewValidationError("createdVia", fmt.Sprintf("unknown channel %q", r.CreatedVia))
	}
	return nil
}

type BookingService struct {
	bookings     BookingStore
	availability *AvailabilityService
	allocator    *TableAllocator
	idempotency  IdempotencyStore // optional
	notifier     Notifier         // customer confirmation, outcome recorded
	staff        Notifier         // optional, best effort
	clock        Clock
	logger       *zap.Logger
}

func NewBookingService(
	bookings BookingStore,
	availability *AvailabilityService,
	allocator *TableAllocator,
	idempotency IdempotencyStore,
	notifier Notifier,
	staff Notifier,
	clock Clock,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		availability: availability,
		allocator:    allocator,
		idempotency:  idempotency,
		notifier:     notifier,
		staff:        staff,
		clock:        clock,
		logger:       logger,
	}
}

// Create validates the request against the restaurant's configuration,
// allocates a table and sends the confirmation. A failed notification does
// not undo the booking; it stays unsent for the retry job.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.idempotency != nil && req.IdempotencyKey != "" {
		existing, err := s.reserveKey(ctx, req.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	booking, err := s.create(ctx, req)
	if s.idempotency != nil && req.IdempotencyKey != "" {
		s.finishKey(ctx, req.IdempotencyKey, booking)
	}
	if err != nil {
		return nil, err
	}

	s.confirm(ctx, booking)
	return booking, nil
}

func (s *BookingService) create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	settings, err := s.availability.loadSettings(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := checkPartySize(settings, req.PartySize); err != nil {
		return nil, err
	}

	earliest, err := s.availability.checkWindow(settings, req.Date, req.CreatedVia)
	if err != nil {
		return nil, err
	}
	if !earliest.IsZero() && model.At(req.Date, req.Time, s.clock.Location()).Before(earliest) {
		return nil, fmt.Errorf("%s %s is within %d hours: %w", model.FormatDate(req.Date), req.Time, settings.MinAdvanceHours, model.ErrOutOfWindow)
	}

	day, err := s.availability.resolver.resolveConfigured(ctx, req.RestaurantID, req.Date)
	if err != nil {
		return nil, err
	}
	if day.Closed {
		return nil, model.NewValidationError("date", fmt.Sprintf("restaurant is closed on %s", model.FormatDate(req.Date)))
	}
	slots := GenerateSlots(day.Periods, settings.SlotDuration, settings.DefaultBookingDuration)
	if !containsSlot(slots, req.Time) {
		return nil, model.NewValidationError("time", fmt.Sprintf("%s is not a bookable time", req.Time))
	}

	draft := model.Booking{
		RestaurantID:  req.RestaurantID,
		Date:          req.Date,
		StartTime:     req.Time,
		Duration:      settings.DefaultBookingDuration,
		PartySize:     req.PartySize,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		CreatedVia:    req.CreatedVia,
	}

	booking, err := s.allocator.Allocate(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("restaurant_id", booking.RestaurantID.String()),
		zap.String("date", booking.BookingDate()),
		zap.String("time", booking.StartTime.String()),
		zap.Int("party_size", booking.PartySize),
		zap.String("created_via", string(booking.CreatedVia)))

	return booking, nil
}

// reserveKey returns the booking an earlier request with the same key made,
// or nil when this request now owns the key.
func (s *BookingService) reserveKey(ctx context.Context, key string) (*model.Booking, error) {
	id, err := s.idempotency.Reserve(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve idempotency key: %w: %v", model.ErrStorage, err)
	}
	if id == uuid.Nil {
		return nil, nil
	}

	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		// the earlier booking is gone, claim the key afresh
		s.logger.Warn("Idempotency key points to missing booking", zap.String("booking_id", id.String()))
		if err := s.idempotency.Release(ctx, key); err != nil {
			return nil, fmt.Errorf("release idempotency key: %w: %v", model.ErrStorage, err)
		}
		return s.reserveKey(ctx, key)
	}

	s.logger.Info("Replayed booking for idempotency key", zap.String("booking_id", id.String()))
	return booking, nil
}

func (s *BookingService) finishKey(ctx context.Context, key string, booking *model.Booking) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if booking != nil {
		err = s.idempotency.Complete(ctx, key, booking.ID)
	} else {
		err = s.idempotency.Release(ctx, key)
	}
	if err != nil {
		s.logger.Warn("Failed to update idempotency key", zap.Error(err))
	}
}

// confirm delivers the customer confirmation and records the outcome.
func (s *BookingService) confirm(ctx context.Context, booking *model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.sendConfirmation(ctx, booking); err != nil {
		s.logger.Warn("Confirmation not sent, will retry",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err))
	}

	if s.staff != nil {
		if err := s.staff.NotifyBookingConfirmed(ctx, booking); err != nil {
			s.logger.Warn("Staff alert failed", zap.String("booking_id", booking.ID.String()), zap.Error(err))
		}
	}
}

func (s *BookingService) sendConfirmation(ctx context.Context, booking *model.Booking) error {
	if err := s.notifier.NotifyBookingConfirmed(ctx, booking); err != nil {
		metrics.IncConfirmation("failed")
		return fmt.Errorf("notify: %w", err)
	}
	metrics.IncConfirmation("sent")

	if err := s.bookings.MarkConfirmationSent(ctx, booking.ID); err != nil {
		return fmt.Errorf("mark confirmation sent: %w", err)
	}
	booking.ConfirmationSent = true
	return nil
}

// RetryPendingConfirmations resends confirmations of upcoming bookings that
// were never delivered. It returns the number delivered.
func (s *BookingService) RetryPendingConfirmations(ctx context.Context, limit int) (int, error) {
	today := model.DateOf(s.clock.Now(), s.clock.Location())

	pending, err := s.bookings.ListUnsentConfirmations(ctx, today, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsent confirmations: %w", err)
	}

	sent := 0
	for i := range pending {
		if err := s.sendConfirmation(ctx, &pending[i]); err != nil {
			s.logger.Warn("Confirmation retry failed",
				zap.String("booking_id", pending[i].ID.String()),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// UpdateStatus applies an administrative lifecycle transition.
func (s *BookingService) UpdateStatus(ctx context.Context, id uuid.UUID, next model.BookingStatus) (*model.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}

	if !booking.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s to %s: %w", booking.Status, next, model.ErrInvalidTransition)
	}

	if err := s.bookings.UpdateStatus(ctx, id, booking.Status, next); err != nil {
		return nil, err
	}

	metrics.IncStatusChange(string(next))
	s.logger.Info("Booking status changed",
		zap.String("booking_id", id.String()),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(next)))

	booking.Status = next
	booking.UpdatedAt = s.clock.Now()
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	return booking, nil
}

func (s *BookingService) List(ctx context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error) {
	bookings, err := s.bookings.ListBookings(ctx, restaurantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return bookings, nil
}

// Stats returns dashboard counters relative to the restaurant's today.
func (s *BookingService) Stats(ctx context.Context, restaurantID uuid.UUID) (*model.DashboardStats, error) {
	today := model.DateOf(s.clock.Now(), s.clock.Location())
	stats, err := s.bookings.Stats(ctx, restaurantID, today)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}
