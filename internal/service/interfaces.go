package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository"
)

type SettingsStore interface {
	GetSettings(ctx context.Context, restaurantID uuid.UUID) (*model.BookingSettings, error)
	UpsertSettings(ctx context.Context, settings *model.BookingSettings) error
}

type HoursStore interface {
	GetOpeningHours(ctx context.Context, restaurantID uuid.UUID, dayOfWeek int) (*model.OpeningHours, error)
	ListOpeningHours(ctx context.Context, restaurantID uuid.UUID) ([]model.OpeningHours, error)
	ReplaceOpeningHours(ctx context.Context, restaurantID uuid.UUID, week []model.OpeningHours) error
	GetSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) (*model.SpecialHours, error)
	ListSpecialHours(ctx context.Context, restaurantID uuid.UUID, from time.Time) ([]model.SpecialHours, error)
	UpsertSpecialHours(ctx context.Context, special *model.SpecialHours) error
	DeleteSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) error
}

type TableStore interface {
	CreateTable(ctx context.Context, table *model.Table) error
	GetTable(ctx context.Context, id uuid.UUID) (*model.Table, error)
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error)
	UpdateTable(ctx context.Context, table *model.Table) error
}

// AllocationStore is what the allocator needs: the read path outside any
// transaction and the transactional write path.
type AllocationStore interface {
	repository.AllocationReader
	WithAllocationTx(ctx context.Context, fn repository.AllocationFunc) error
}

type BookingStore interface {
	AllocationStore
	GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListBookings(ctx context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) error
	MarkConfirmationSent(ctx context.Context, id uuid.UUID) error
	ListUnsentConfirmations(ctx context.Context, from time.Time, limit int) ([]model.Booking, error)
	Stats(ctx context.Context, restaurantID uuid.UUID, today time.Time) (*model.DashboardStats, error)
}

// IdempotencyStore deduplicates retried create requests.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (uuid.UUID, error)
	Complete(ctx context.Context, key string, bookingID uuid.UUID) error
	Release(ctx context.Context, key string) error
}

// Clock supplies the current instant and the restaurant's local zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// NewSystemClock returns a Clock backed by time.Now in loc.
func NewSystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c systemClock) Location() *time.Location { return c.loc }
