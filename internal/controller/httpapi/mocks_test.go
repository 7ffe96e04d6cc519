package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/service"
)

type mockAvailability struct {
	mock.Mock
}

func (m *mockAvailability) Query(ctx context.Context, restaurantID uuid.UUID, date time.Time, partySize int) ([]model.Slot, error) {
	args := m.Called(ctx, restaurantID, date, partySize)
	slots, _ := args.Get(0).([]model.Slot)
	return slots, args.Error(1)
}

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Create(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error) {
	args := m.Called(ctx, req)
	booking, _ := args.Get(0).(*model.Booking)
	return booking, args.Error(1)
}

func (m *mockBookings) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	args := m.Called(ctx, id)
	booking, _ := args.Get(0).(*model.Booking)
	return booking, args.Error(1)
}

func (m *mockBookings) UpdateStatus(ctx context.Context, id uuid.UUID, next model.BookingStatus) (*model.Booking, error) {
	args := m.Called(ctx, id, next)
	booking, _ := args.Get(0).(*model.Booking)
	return booking, args.Error(1)
}

func (m *mockBookings) List(ctx context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error) {
	args := m.Called(ctx, restaurantID, filter)
	bookings, _ := args.Get(0).([]model.Booking)
	return bookings, args.Error(1)
}

func (m *mockBookings) Stats(ctx context.Context, restaurantID uuid.UUID) (*model.DashboardStats, error) {
	args := m.Called(ctx, restaurantID)
	stats, _ := args.Get(0).(*model.DashboardStats)
	return stats, args.Error(1)
}

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
