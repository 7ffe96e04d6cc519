package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository"
)

func tableNumbers(tables []model.Table) []string {
	numbers := make([]string, 0, len(tables))
	for _, t := range tables {
		numbers = append(numbers, t.Number)
	}
	return numbers
}

func TestTableAllocator_EligibleTables(t *testing.T) {
	ctx := context.Background()
	date := mustDate(t, "2026-03-05")

	inactive := newTable("9", 1, 2)
	inactive.IsActive = false
	store := newTestStore(t,
		newTable("6", 1, 6),
		newTable("2", 1, 2),
		newTable("4", 1, 4),
		newTable("8", 5, 8),
		inactive,
	)
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	tests := []struct {
		name      string
		partySize int
		want      []string
	}{
		{name: "couple gets tightest first", partySize: 2, want: []string{"2", "4", "6"}},
		{name: "five skips small tables", partySize: 5, want: []string{"6", "8"}},
		{name: "min capacity excludes large table for small party", partySize: 4, want: []string{"4", "6"}},
		{name: "nothing fits", partySize: 9, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, err := allocator.EligibleTables(ctx, testRestaurant, date, 1140, 120, tt.partySize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tableNumbers(tables))
		})
	}
}

func TestTableAllocator_EligibleTablesIsReadOnly(t *testing.T) {
	ctx := context.Background()
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("1", 1, 4))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	first, err := allocator.EligibleTables(ctx, testRestaurant, date, 1140, 120, 2)
	require.NoError(t, err)
	second, err := allocator.EligibleTables(ctx, testRestaurant, date, 1140, 120, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	bookings, err := store.ListBookings(ctx, testRestaurant, model.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestTableAllocator_Allocate(t *testing.T) {
	ctx := context.Background()
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("4", 1, 4), newTable("2", 1, 2))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	first, err := allocator.Allocate(ctx, draftBooking(date, 1140, 2))
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, first.Status)
	assert.Equal(t, "2", first.TableNumber)
	require.NotNil(t, first.TableID)
	assert.False(t, first.ConfirmationSent)

	second, err := allocator.Allocate(ctx, draftBooking(date, 1170, 2))
	require.NoError(t, err)
	assert.Equal(t, "4", second.TableNumber)

	_, err = allocator.Allocate(ctx, draftBooking(date, 1200, 2))
	assert.ErrorIs(t, err, model.ErrNoAvailability)

	// touching the end of both bookings is fine
	third, err := allocator.Allocate(ctx, draftBooking(date, 1260, 2))
	require.NoError(t, err)
	assert.Equal(t, "2", third.TableNumber)
}

func TestTableAllocator_AllocateIgnoresCallerCancellation(t *testing.T) {
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("1", 1, 4))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	booking, err := allocator.Allocate(ctx, draftBooking(date, 1140, 2))
	require.NoError(t, err)

	stored, err := store.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
}

func TestTableAllocator_ConcurrentRaceForLastTable(t *testing.T) {
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("1", 1, 4))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, full int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrNoAvailability):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)

	confirmed, err := store.ConfirmedBookingsOn(context.Background(), testRestaurant, date)
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestTableAllocator_ConcurrentAllocationsNeverOverlap(t *testing.T) {
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("1", 1, 4), newTable("2", 1, 4), newTable("3", 1, 6))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	const requests = 12
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		success atomic.Int32
		full    atomic.Int32
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			// alternate between two overlapping windows
			slot := model.TimeOfDay(1140)
			if i%2 == 1 {
				slot = 1170
			}
			_, err := allocator.Allocate(context.Background(), draftBooking(date, slot, 2))
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, model.ErrNoAvailability):
				full.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(3), success.Load())
	assert.Equal(t, int32(requests-3), full.Load())

	confirmed, err := store.ConfirmedBookingsOn(context.Background(), testRestaurant, date)
	require.NoError(t, err)
	require.Len(t, confirmed, 3)
	for i := range confirmed {
		for j := i + 1; j < len(confirmed); j++ {
			a, b := confirmed[i], confirmed[j]
			if *a.TableID == *b.TableID {
				assert.False(t, Overlaps(int(a.StartTime), a.Duration, int(b.StartTime), b.Duration),
					"table %s double booked", a.TableNumber)
			}
		}
	}
}

func TestTableAllocator_CancellationFreesCapacity(t *testing.T) {
	ctx := context.Background()
	date := mustDate(t, "2026-03-05")
	store := newTestStore(t, newTable("1", 1, 4))
	allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

	booking, err := allocator.Allocate(ctx, draftBooking(date, 1140, 2))
	require.NoError(t, err)

	_, err = allocator.Allocate(ctx, draftBooking(date, 1140, 2))
	require.ErrorIs(t, err, model.ErrNoAvailability)

	require.NoError(t, store.UpdateStatus(ctx, booking.ID, model.BookingStatusConfirmed, model.BookingStatusCancelled))

	again, err := allocator.Allocate(ctx, draftBooking(date, 1140, 2))
	require.NoError(t, err)
	assert.Equal(t, booking.TableID, again.TableID)
}

// flakyStore fails the first allocation transactions with the given error
// before handing over to the wrapped store.
type flakyStore struct {
	*repository.MemoryStore
	failures int32
	err      error
	calls    atomic.Int32
}

func (s *flakyStore) WithAllocationTx(ctx context.Context, fn repository.AllocationFunc) error {
	if s.calls.Add(1) <= s.failures {
		return fmt.Errorf("commit: %w", s.err)
	}
	return s.MemoryStore.WithAllocationTx(ctx, fn)
}

func TestTableAllocator_RetriesTransactionConflicts(t *testing.T) {
	date := mustDate(t, "2026-03-05")

	t.Run("succeeds within attempts", func(t *testing.T) {
		store := &flakyStore{MemoryStore: newTestStore(t, newTable("1", 1, 4)), failures: 2, err: model.ErrTransactionConflict}
		allocator := NewTableAllocator(store, AllocatorOptions{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())

		booking, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		require.NoError(t, err)
		assert.Equal(t, "1", booking.TableNumber)
		assert.Equal(t, int32(3), store.calls.Load())
	})

	t.Run("exhausted attempts report no availability", func(t *testing.T) {
		store := &flakyStore{MemoryStore: newTestStore(t, newTable("1", 1, 4)), failures: 10, err: model.ErrTransactionConflict}
		allocator := NewTableAllocator(store, AllocatorOptions{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())

		_, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		assert.ErrorIs(t, err, model.ErrNoAvailability)
		assert.Equal(t, int32(3), store.calls.Load())
	})

	t.Run("storage errors are not retried", func(t *testing.T) {
		store := &flakyStore{MemoryStore: newTestStore(t, newTable("1", 1, 4)), failures: 10, err: model.ErrStorage}
		allocator := NewTableAllocator(store, AllocatorOptions{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())

		_, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		assert.ErrorIs(t, err, model.ErrStorage)
		assert.Equal(t, int32(1), store.calls.Load())
	})
}

// takenTx rejects inserts on one table as if a concurrent commit won it.
type takenTx struct {
	repository.AllocationTx
	taken string
}

func (tx takenTx) InsertBooking(ctx context.Context, booking *model.Booking) error {
	if booking.TableNumber == tx.taken {
		return fmt.Errorf("insert booking: %w", model.ErrTableTaken)
	}
	return tx.AllocationTx.InsertBooking(ctx, booking)
}

type takenStore struct {
	*repository.MemoryStore
	taken string
}

func (s *takenStore) WithAllocationTx(ctx context.Context, fn repository.AllocationFunc) error {
	return s.MemoryStore.WithAllocationTx(ctx, func(ctx context.Context, tx repository.AllocationTx) error {
		return fn(ctx, takenTx{AllocationTx: tx, taken: s.taken})
	})
}

func TestTableAllocator_FallsBackWhenTableTaken(t *testing.T) {
	date := mustDate(t, "2026-03-05")

	t.Run("next fitting table", func(t *testing.T) {
		store := &takenStore{MemoryStore: newTestStore(t, newTable("2", 1, 2), newTable("4", 1, 4)), taken: "2"}
		allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

		booking, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		require.NoError(t, err)
		assert.Equal(t, "4", booking.TableNumber)
	})

	t.Run("no candidates left", func(t *testing.T) {
		store := &takenStore{MemoryStore: newTestStore(t, newTable("2", 1, 2)), taken: "2"}
		allocator := NewTableAllocator(store, AllocatorOptions{}, zap.NewNop())

		_, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))
		assert.ErrorIs(t, err, model.ErrNoAvailability)
	})
}

type stalledStore struct {
	*repository.MemoryStore
}

func (s stalledStore) WithAllocationTx(ctx context.Context, _ repository.AllocationFunc) error {
	<-ctx.Done()
	return fmt.Errorf("begin allocation: %w", model.ErrAllocationTimeout)
}

func TestTableAllocator_Timeout(t *testing.T) {
	date := mustDate(t, "2026-03-05")
	store := stalledStore{MemoryStore: newTestStore(t, newTable("1", 1, 4))}
	allocator := NewTableAllocator(store, AllocatorOptions{Timeout: 20 * time.Millisecond}, zap.NewNop())

	started := time.Now()
	_, err := allocator.Allocate(context.Background(), draftBooking(date, 1140, 2))

	assert.ErrorIs(t, err, model.ErrAllocationTimeout)
	assert.Less(t, time.Since(started), time.Second)
}
