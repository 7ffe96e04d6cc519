package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository"
	"github.com/oliver453/lochlann-se/internal/service"
)

type stoppedClock struct {
	now time.Time
}

func (c stoppedClock) Now() time.Time           { return c.now }
func (c stoppedClock) Location() *time.Location { return c.now.Location() }

// newLiveRouter serves the real services over an in-memory store.
func newLiveRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	clock := stoppedClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))}

	resolver := service.NewScheduleResolver(store, store)
	allocator := service.NewTableAllocator(store, service.AllocatorOptions{}, logger)
	availability := service.NewAvailabilityService(store, resolver, allocator, clock, logger)

	return NewRouter(&Handler{
		Availability:        availability,
		Bookings:            service.NewBookingService(store, availability, allocator, nil, service.NewLogNotifier(logger), nil, clock, logger),
		Tables:              service.NewTableService(store, logger),
		Settings:            service.NewSettingsService(store, store, clock, logger),
		Health:              store,
		DefaultRestaurantID: restaurant,
		Logger:              logger,
	})
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req = req.WithContext(context.Background())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func availableAt(t *testing.T, h http.Handler) map[string]bool {
	t.Helper()
	rec := serve(t, h, http.MethodGet, "/api/booking/availability?date=2026-03-05&partySize=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Slots []model.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	out := make(map[string]bool, len(body.Slots))
	for _, s := range body.Slots {
		out[s.Time.String()] = s.IsAvailable
	}
	return out
}

func TestBookingFlowOverHTTP(t *testing.T) {
	h := newLiveRouter(t)

	rec := serve(t, h, http.MethodPut, "/api/admin/settings", `{
		"booking": {"slot_duration": 30, "default_booking_duration": 120, "min_advance_hours": 2, "booking_window_days": 60, "max_party_size": 8},
		"opening_hours": [{"day_of_week": 3, "periods": [{"start": 1020, "end": 1380}]}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, h, http.MethodPost, "/api/admin/tables", `{"table_number": "1", "capacity": 4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var table model.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.True(t, table.IsActive)

	before := availableAt(t, h)
	assert.Len(t, before, 9)
	for slot, ok := range before {
		assert.True(t, ok, slot)
	}

	rec = serve(t, h, http.MethodPost, "/api/booking/create", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created bookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.Booking)
	assert.Equal(t, table.ID, *created.Booking.TableID)

	after := availableAt(t, h)
	assert.True(t, after["17:00"])
	assert.False(t, after["18:30"])
	assert.False(t, after["19:00"])
	assert.False(t, after["20:30"])
	assert.True(t, after["21:00"])

	rec = serve(t, h, http.MethodPost, "/api/booking/create", createBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, h, http.MethodPatch, "/api/admin/bookings/"+created.Booking.ID.String(), `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, availableAt(t, h)["19:00"])

	rec = serve(t, h, http.MethodPut, "/api/admin/special-hours/2026-03-05", `{"is_closed": true, "reason": "Private event"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, availableAt(t, h))

	rec = serve(t, h, http.MethodDelete, "/api/admin/special-hours/2026-03-05", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, availableAt(t, h), 9)
}
