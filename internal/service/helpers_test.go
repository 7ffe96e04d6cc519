package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository"
)

var (
	testRestaurant = uuid.MustParse("6f1c2a7e-3b52-4d0e-9a65-0c3f51d2b8a1")
	testLoc        = time.FixedZone("CET", 3600)
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time           { return c.now }
func (c *fixedClock) Location() *time.Location { return c.now.Location() }

// monday morning, a few days before the usual test date
func newTestClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, testLoc)}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTable(number string, minCapacity, capacity int) model.Table {
	return model.Table{
		ID:           uuid.New(),
		RestaurantID: testRestaurant,
		Number:       number,
		Capacity:     capacity,
		MinCapacity:  minCapacity,
		Shape:        model.TableShapeRectangle,
		IsActive:     true,
	}
}

// newTestStore configures a restaurant open 17:00-23:00 every day with
// 30 minute slots and 2 hour bookings.
func newTestStore(t *testing.T, tables ...model.Table) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, store.UpsertSettings(ctx, &model.BookingSettings{
		RestaurantID:           testRestaurant,
		SlotDuration:           30,
		DefaultBookingDuration: 120,
		MinAdvanceHours:        2,
		BookingWindowDays:      60,
		MaxPartySize:           8,
	}))

	week := make([]model.OpeningHours, 0, 7)
	for day := 0; day < 7; day++ {
		week = append(week, model.OpeningHours{
			DayOfWeek: day,
			Periods:   []model.ServicePeriod{{Start: 17 * 60, End: 23 * 60}},
		})
	}
	require.NoError(t, store.ReplaceOpeningHours(ctx, testRestaurant, week))

	for i := range tables {
		require.NoError(t, store.CreateTable(ctx, &tables[i]))
	}
	return store
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (n *recordingNotifier) NotifyBookingConfirmed(_ context.Context, booking *model.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, booking.ID)
	return nil
}

func (n *recordingNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type testEnv struct {
	store        *repository.MemoryStore
	clock        *fixedClock
	allocator    *TableAllocator
	availability *AvailabilityService
	bookings     *BookingService
	notifier     *recordingNotifier
	staff        *recordingNotifier
}

func newTestEnv(t *testing.T, idempotency IdempotencyStore, tables ...model.Table) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &testEnv{
		store:    newTestStore(t, tables...),
		clock:    newTestClock(),
		notifier: &recordingNotifier{},
		staff:    &recordingNotifier{},
	}
	env.allocator = NewTableAllocator(env.store, AllocatorOptions{Timeout: 2 * time.Second}, logger)
	env.availability = NewAvailabilityService(env.store, NewScheduleResolver(env.store, env.store), env.allocator, env.clock, logger)
	env.bookings = NewBookingService(env.store, env.availability, env.allocator, idempotency, env.notifier, env.staff, env.clock, logger)
	return env
}

func draftBooking(date time.Time, start model.TimeOfDay, partySize int) model.Booking {
	return model.Booking{
		RestaurantID:  testRestaurant,
		Date:          date,
		StartTime:     start,
		Duration:      120,
		PartySize:     partySize,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "+46701234567",
		CreatedVia:    model.CreatedViaWebsite,
	}
}

var errNotifyDown = errors.New("smtp relay unavailable")
