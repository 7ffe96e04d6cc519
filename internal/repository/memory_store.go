package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
)

// MemoryStore keeps every booking aggregate in process memory. It backs
// STORAGE_DRIVER=memory and the service tests. Allocation transactions hold a
// lock per restaurant and date from their first booking read or insert until
// they end, so allocations for other dates run in parallel. InsertBooking
// rejects overlaps the way the Postgres exclusion constraint does.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[uuid.UUID]model.BookingSettings
	weekly   map[uuid.UUID]map[int]model.OpeningHours
	special  map[uuid.UUID]map[string]model.SpecialHours
	tables   map[uuid.UUID]model.Table
	bookings map[uuid.UUID]model.Booking
	now      func() time.Time

	lockMu     sync.Mutex
	allocLocks map[allocKey]chan struct{}
}

type allocKey struct {
	restaurantID uuid.UUID
	date         string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[uuid.UUID]model.BookingSettings),
		weekly:   make(map[uuid.UUID]map[int]model.OpeningHours),
		special:  make(map[uuid.UUID]map[string]model.SpecialHours),
		tables:   make(map[uuid.UUID]model.Table),
		bookings: make(map[uuid.UUID]model.Booking),
		now:      time.Now,

		allocLocks: make(map[allocKey]chan struct{}),
	}
}

// Settings

func (s *MemoryStore) GetSettings(_ context.Context, restaurantID uuid.UUID) (*model.BookingSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[restaurantID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

func (s *MemoryStore) UpsertSettings(_ context.Context, settings *model.BookingSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = s.now()
	s.settings[settings.RestaurantID] = *settings
	return nil
}

// Hours

func (s *MemoryStore) GetOpeningHours(_ context.Context, restaurantID uuid.UUID, dayOfWeek int) (*model.OpeningHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hours, ok := s.weekly[restaurantID][dayOfWeek]
	if !ok {
		return nil, nil
	}
	hours.Periods = append([]model.ServicePeriod(nil), hours.Periods...)
	return &hours, nil
}

func (s *MemoryStore) ListOpeningHours(ctx context.Context, restaurantID uuid.UUID) ([]model.OpeningHours, error) {
	week := make([]model.OpeningHours, 0, 7)
	for day := 0; day < 7; day++ {
		hours, _ := s.GetOpeningHours(ctx, restaurantID, day)
		if hours != nil {
			week = append(week, *hours)
		}
	}
	return week, nil
}

func (s *MemoryStore) ReplaceOpeningHours(_ context.Context, restaurantID uuid.UUID, week []model.OpeningHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	days, ok := s.weekly[restaurantID]
	if !ok {
		days = make(map[int]model.OpeningHours)
		s.weekly[restaurantID] = days
	}
	for _, day := range week {
		day.RestaurantID = restaurantID
		day.Periods = append([]model.ServicePeriod(nil), day.Periods...)
		sort.Slice(day.Periods, func(i, j int) bool { return day.Periods[i].Start < day.Periods[j].Start })
		days[day.DayOfWeek] = day
	}
	return nil
}

func (s *MemoryStore) GetSpecialHours(_ context.Context, restaurantID uuid.UUID, date time.Time) (*model.SpecialHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	special, ok := s.special[restaurantID][model.FormatDate(date)]
	if !ok {
		return nil, nil
	}
	return &special, nil
}

func (s *MemoryStore) ListSpecialHours(_ context.Context, restaurantID uuid.UUID, from time.Time) ([]model.SpecialHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []model.SpecialHours
	for _, special := range s.special[restaurantID] {
		if !special.Date.Before(from) {
			list = append(list, special)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	return list, nil
}

func (s *MemoryStore) UpsertSpecialHours(_ context.Context, special *model.SpecialHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates, ok := s.special[special.RestaurantID]
	if !ok {
		dates = make(map[string]model.SpecialHours)
		s.special[special.RestaurantID] = dates
	}
	stored := *special
	if stored.IsClosed {
		stored.Period = nil
	}
	dates[model.FormatDate(special.Date)] = stored
	return nil
}

func (s *MemoryStore) DeleteSpecialHours(_ context.Context, restaurantID uuid.UUID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.FormatDate(date)
	if _, ok := s.special[restaurantID][key]; !ok {
		return fmt.Errorf("delete special hours: %w", model.ErrNotFound)
	}
	delete(s.special[restaurantID], key)
	return nil
}

// Tables

func (s *MemoryStore) CreateTable(_ context.Context, table *model.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tables {
		if existing.RestaurantID == table.RestaurantID && existing.Number == table.Number {
			return fmt.Errorf("create table: %w", model.NewValidationError("table_number", "table number already exists"))
		}
	}
	now := s.now()
	table.CreatedAt, table.UpdatedAt = now, now
	s.tables[table.ID] = *table
	return nil
}

func (s *MemoryStore) GetTable(_ context.Context, id uuid.UUID) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[id]
	if !ok {
		return nil, nil
	}
	return &table, nil
}

func (s *MemoryStore) ListTables(_ context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tables []model.Table
	for _, t := range s.tables {
		if t.RestaurantID == restaurantID {
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Number < tables[j].Number })
	return tables, nil
}

func (s *MemoryStore) UpdateTable(_ context.Context, table *model.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table.ID]; !ok {
		return fmt.Errorf("update table: %w", model.ErrNotFound)
	}
	table.UpdatedAt = s.now()
	s.tables[table.ID] = *table
	return nil
}

// Bookings

func (s *MemoryStore) FittingTables(_ context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fittingTablesLocked(restaurantID, partySize), nil
}

func (s *MemoryStore) fittingTablesLocked(restaurantID uuid.UUID, partySize int) []model.Table {
	var tables []model.Table
	for _, t := range s.tables {
		if t.RestaurantID == restaurantID && t.Fits(partySize) {
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Capacity != tables[j].Capacity {
			return tables[i].Capacity < tables[j].Capacity
		}
		return tables[i].Number < tables[j].Number
	})
	return tables
}

func (s *MemoryStore) ConfirmedBookingsOn(_ context.Context, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.confirmedBookingsOnLocked(restaurantID, date), nil
}

func (s *MemoryStore) confirmedBookingsOnLocked(restaurantID uuid.UUID, date time.Time) []model.Booking {
	var bookings []model.Booking
	for _, b := range s.bookings {
		if b.RestaurantID == restaurantID && b.Date.Equal(date) && b.Status.Occupies() && b.TableID != nil {
			bookings = append(bookings, s.withTableNumber(b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].StartTime < bookings[j].StartTime })
	return bookings
}

func (s *MemoryStore) withTableNumber(b model.Booking) model.Booking {
	if b.TableID != nil {
		if t, ok := s.tables[*b.TableID]; ok {
			b.TableNumber = t.Number
		}
	}
	return b
}

// WithAllocationTx runs fn as one allocation transaction. Inserts made by fn
// are discarded when it returns an error. Waiting for another transaction on
// the same restaurant and date ends with ErrAllocationTimeout once ctx is done.
func (s *MemoryStore) WithAllocationTx(ctx context.Context, fn AllocationFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin allocation: %w", model.ErrAllocationTimeout)
	}

	tx := &memoryAllocationTx{store: s, held: make(map[allocKey]chan struct{})}
	defer tx.unlock()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return fmt.Errorf("commit allocation: %w", model.ErrAllocationTimeout)
	}
	return nil
}

func (s *MemoryStore) allocLock(key allocKey) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	ch, ok := s.allocLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.allocLocks[key] = ch
	}
	return ch
}

type memoryAllocationTx struct {
	store    *MemoryStore
	inserted []uuid.UUID
	held     map[allocKey]chan struct{}
}

// lock takes the restaurant and date lock unless this transaction holds it.
func (t *memoryAllocationTx) lock(ctx context.Context, restaurantID uuid.UUID, date time.Time) error {
	key := allocKey{restaurantID: restaurantID, date: model.FormatDate(date)}
	if _, ok := t.held[key]; ok {
		return nil
	}

	ch := t.store.allocLock(key)
	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for allocation lock: %w", model.ErrAllocationTimeout)
	}
}

func (t *memoryAllocationTx) unlock() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

func (t *memoryAllocationTx) FittingTables(ctx context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	return t.store.FittingTables(ctx, restaurantID, partySize)
}

func (t *memoryAllocationTx) ConfirmedBookingsOn(ctx context.Context, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error) {
	if err := t.lock(ctx, restaurantID, date); err != nil {
		return nil, err
	}
	return t.store.ConfirmedBookingsOn(ctx, restaurantID, date)
}

func (t *memoryAllocationTx) InsertBooking(ctx context.Context, booking *model.Booking) error {
	if err := t.lock(ctx, booking.RestaurantID, booking.Date); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.TableID != nil && booking.Status.Occupies() {
		for _, existing := range s.bookings {
			if existing.TableID == nil || *existing.TableID != *booking.TableID || !existing.Status.Occupies() {
				continue
			}
			if !existing.Date.Equal(booking.Date) {
				continue
			}
			if existing.StartTime < booking.EndTime() && booking.StartTime < existing.EndTime() {
				return fmt.Errorf("insert booking: %w", model.ErrTableTaken)
			}
		}
	}

	now := s.now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	s.bookings[booking.ID] = *booking
	t.inserted = append(t.inserted, booking.ID)
	return nil
}

func (t *memoryAllocationTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, id := range t.inserted {
		delete(t.store.bookings, id)
	}
}

func (s *MemoryStore) GetBooking(_ context.Context, id uuid.UUID) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	b = s.withTableNumber(b)
	return &b, nil
}

func (s *MemoryStore) ListBookings(_ context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []model.Booking
	for _, b := range s.bookings {
		if b.RestaurantID != restaurantID {
			continue
		}
		if filter.Date != nil && !b.Date.Equal(*filter.Date) {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		list = append(list, s.withTableNumber(b))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.After(list[j].Date)
		}
		return list[i].StartTime > list[j].StartTime
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return fmt.Errorf("update booking status from %s: %w", from, model.ErrInvalidTransition)
	}
	b.Status = to
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return nil
}

func (s *MemoryStore) MarkConfirmationSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return fmt.Errorf("mark confirmation sent: %w", model.ErrNotFound)
	}
	b.ConfirmationSent = true
	b.UpdatedAt = s.now()
	s.bookings[id] = b
	return nil
}

func (s *MemoryStore) ListUnsentConfirmations(_ context.Context, from time.Time, limit int) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []model.Booking
	for _, b := range s.bookings {
		if b.Status == model.BookingStatusConfirmed && !b.ConfirmationSent && !b.Date.Before(from) {
			list = append(list, s.withTableNumber(b))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *MemoryStore) Stats(_ context.Context, restaurantID uuid.UUID, today time.Time) (*model.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.DashboardStats
	since := today.AddDate(0, 0, -30)
	tomorrow := today.AddDate(0, 0, 1)

	for _, b := range s.bookings {
		if b.RestaurantID != restaurantID {
			continue
		}
		recent := !b.Date.Before(since)
		switch b.Status {
		case model.BookingStatusConfirmed:
			if recent {
				stats.Confirmed++
			}
			if b.Date.Equal(today) {
				stats.TodayConfirmed++
			}
			if b.Date.Equal(tomorrow) {
				stats.TomorrowConfirmed++
			}
			if b.Date.After(today) {
				stats.UpcomingConfirmed++
			}
		case model.BookingStatusCompleted:
			if recent {
				stats.Completed++
				stats.TotalGuests += b.PartySize
			}
		case model.BookingStatusCancelled:
			if recent {
				stats.Cancelled++
			}
		case model.BookingStatusNoShow:
			if recent {
				stats.NoShow++
			}
		}
	}

	if stats.Completed > 0 {
		stats.AveragePartySize = float64(stats.TotalGuests) / float64(stats.Completed)
	}
	return &stats, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
