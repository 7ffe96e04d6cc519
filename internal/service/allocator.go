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
	"github.com/oliver453/lochlann-se/internal/repository"
)

const (
	DefaultAllocationTimeout     = 5 * time.Second
	DefaultAllocationMaxAttempts = 3
	defaultAllocationBackoff     = 25 * time.Millisecond
)

type AllocatorOptions struct {
	Timeout     time.Duration // whole allocation, retries included
	MaxAttempts int
	Backoff     time.Duration // grows linearly per attempt
}

func (o AllocatorOptions) withDefaults() AllocatorOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultAllocationTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultAllocationMaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultAllocationBackoff
	}
	return o
}

// TableAllocator finds tables that can take a party and binds one of them
// to a new confirmed booking.
type TableAllocator struct {
	store  AllocationStore
	opts   AllocatorOptions
	logger *zap.Logger
}

func NewTableAllocator(store AllocationStore, opts AllocatorOptions, logger *zap.Logger) *TableAllocator {
	return &TableAllocator{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Snapshot is the inventory and the confirmed bookings of one date. Eligibility
// for any window on that date can be computed from it without further reads.
type Snapshot struct {
	Tables   []model.Table   // fitting tables, tightest first
	Bookings []model.Booking // confirmed bookings of the date
}

// Eligible returns the snapshot's tables that are free for the window.
func (s Snapshot) Eligible(start model.TimeOfDay, duration int) []model.Table {
	return FreeTables(s.Tables, s.Bookings, start, duration)
}

// Snapshot reads the state eligibility is computed from. It takes no locks.
func (a *TableAllocator) Snapshot(ctx context.Context, restaurantID uuid.UUID, date time.Time, partySize int) (Snapshot, error) {
	return readSnapshot(ctx, a.store, restaurantID, date, partySize)
}

func readSnapshot(ctx context.Context, r repository.AllocationReader, restaurantID uuid.UUID, date time.Time, partySize int) (Snapshot, error) {
	tables, err := r.FittingTables(ctx, restaurantID, partySize)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get fitting tables: %w", err)
	}
	if len(tables) == 0 {
		return Snapshot{}, nil
	}

	bookings, err := r.ConfirmedBookingsOn(ctx, restaurantID, date)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get confirmed bookings: %w", err)
	}

	return Snapshot{Tables: tables, Bookings: bookings}, nil
}

// EligibleTables returns the active tables fitting partySize with no confirmed
// booking overlapping [start, start+duration) on date, tightest fit first.
func (a *TableAllocator) EligibleTables(ctx context.Context, restaurantID uuid.UUID, date time.Time, start model.TimeOfDay, duration, partySize int) ([]model.Table, error) {
	snap, err := a.Snapshot(ctx, restaurantID, date, partySize)
	if err != nil {
		return nil, err
	}
	return snap.Eligible(start, duration), nil
}

// Allocate binds the tightest free table to a new confirmed booking built
// from draft. The work is detached from the caller's cancellation and bounded
// by the allocator timeout, so it always ends fully committed or fully rolled
// back. Transaction conflicts are retried; once attempts run out the result
// is ErrNoAvailability.
func (a *TableAllocator) Allocate(ctx context.Context, draft model.Booking) (*model.Booking, error) {
	started := time.Now()
	defer metrics.ObserveAllocation(started)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.Timeout)
	defer cancel()

	logger := a.logger.With(
		zap.String("restaurant_id", draft.RestaurantID.String()),
		zap.String("date", model.FormatDate(draft.Date)),
		zap.String("time", draft.StartTime.String()),
		zap.Int("party_size", draft.PartySize),
	)

	var lastErr error
	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		booking, err := a.allocateOnce(ctx, draft, logger)
		switch {
		case err == nil:
			metrics.IncAllocation("confirmed")
			logger.Info("Table allocated",
				zap.String("booking_id", booking.ID.String()),
				zap.String("table", booking.TableNumber),
				zap.Int("attempt", attempt))
			return booking, nil

		case errors.Is(err, model.ErrNoAvailability):
			metrics.IncAllocation("no_availability")
			logger.Info("No table available")
			return nil, err

		case errors.Is(err, model.ErrTransactionConflict):
			lastErr = err
			metrics.IncAllocationRetry()
			logger.Warn("Allocation conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if attempt == a.opts.MaxAttempts {
				break
			}
			if err := sleepCtx(ctx, a.opts.Backoff*time.Duration(attempt)); err != nil {
				metrics.IncAllocation("timeout")
				return nil, fmt.Errorf("allocation backoff: %w", model.ErrAllocationTimeout)
			}

		case errors.Is(err, model.ErrAllocationTimeout):
			metrics.IncAllocation("timeout")
			logger.Warn("Allocation timed out", zap.Int("attempt", attempt))
			return nil, err

		default:
			metrics.IncAllocation("error")
			logger.Error("Allocation failed", zap.Error(err))
			return nil, err
		}
	}

	metrics.IncAllocation("conflict_exhausted")
	return nil, fmt.Errorf("allocate after %d attempts (%v): %w", a.opts.MaxAttempts, lastErr, model.ErrNoAvailability)
}

// allocateOnce runs one allocation transaction. Candidates rejected by the
// storage overlap check were taken by a concurrent commit; the next-fittest
// candidate is tried instead of failing.
func (a *TableAllocator) allocateOnce(ctx context.Context, draft model.Booking, logger *zap.Logger) (*model.Booking, error) {
	var allocated *model.Booking

	err := a.store.WithAllocationTx(ctx, func(ctx context.Context, tx repository.AllocationTx) error {
		snap, err := readSnapshot(ctx, tx, draft.RestaurantID, draft.Date, draft.PartySize)
		if err != nil {
			return err
		}

		candidates := snap.Eligible(draft.StartTime, draft.Duration)
		for _, table := range candidates {
			booking := draft
			booking.ID = uuid.New()
			tableID := table.ID
			booking.TableID = &tableID
			booking.TableNumber = table.Number
			booking.Status = model.BookingStatusConfirmed
			booking.ConfirmationSent = false

			err := tx.InsertBooking(ctx, &booking)
			if errors.Is(err, model.ErrTableTaken) {
				logger.Debug("Table taken concurrently, trying next", zap.String("table", table.Number))
				continue
			}
			if err != nil {
				return err
			}

			allocated = &booking
			return nil
		}

		return fmt.Errorf("%d fitting tables, %d free: %w", len(snap.Tables), len(candidates), model.ErrNoAvailability)
	})
	if err != nil {
		return nil, err
	}
	return allocated, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
