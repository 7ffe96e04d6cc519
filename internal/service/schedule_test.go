package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver453/lochlann-se/internal/model"
)

func TestScheduleResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("weekly pattern", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)

		day, err := resolver.Resolve(ctx, testRestaurant, mustDate(t, "2026-03-05"))
		require.NoError(t, err)
		assert.False(t, day.Closed)
		assert.False(t, day.Special)
		assert.Equal(t, []model.ServicePeriod{{Start: 1020, End: 1380}}, day.Periods)
	})

	t.Run("special closure overrides the weekly pattern", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)
		date := mustDate(t, "2026-03-05")
		require.NoError(t, store.UpsertSpecialHours(ctx, &model.SpecialHours{
			RestaurantID: testRestaurant,
			Date:         date,
			IsClosed:     true,
			Reason:       "Private event",
		}))

		day, err := resolver.Resolve(ctx, testRestaurant, date)
		require.NoError(t, err)
		assert.True(t, day.Closed)
		assert.True(t, day.Special)
		assert.Empty(t, GenerateSlots(day.Periods, 30, 120))
	})

	t.Run("special period replaces the weekly periods", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)
		date := mustDate(t, "2026-03-05")
		require.NoError(t, store.UpsertSpecialHours(ctx, &model.SpecialHours{
			RestaurantID: testRestaurant,
			Date:         date,
			Period:       &model.ServicePeriod{Start: 720, End: 900},
		}))

		day, err := resolver.Resolve(ctx, testRestaurant, date)
		require.NoError(t, err)
		assert.True(t, day.Special)
		assert.Equal(t, []model.ServicePeriod{{Start: 720, End: 900}}, day.Periods)

		other, err := resolver.Resolve(ctx, testRestaurant, mustDate(t, "2026-03-06"))
		require.NoError(t, err)
		assert.Equal(t, []model.ServicePeriod{{Start: 1020, End: 1380}}, other.Periods)
	})

	t.Run("weekday marked closed", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)
		require.NoError(t, store.ReplaceOpeningHours(ctx, testRestaurant, []model.OpeningHours{
			{DayOfWeek: 0, IsClosed: true},
		}))

		monday, err := resolver.Resolve(ctx, testRestaurant, mustDate(t, "2026-03-09"))
		require.NoError(t, err)
		assert.True(t, monday.Closed)
		assert.False(t, monday.Special)

		tuesday, err := resolver.Resolve(ctx, testRestaurant, mustDate(t, "2026-03-10"))
		require.NoError(t, err)
		assert.False(t, tuesday.Closed)
	})

	t.Run("sunday maps to day six", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)
		require.NoError(t, store.ReplaceOpeningHours(ctx, testRestaurant, []model.OpeningHours{
			{DayOfWeek: 6, Periods: []model.ServicePeriod{{Start: 720, End: 960}}},
		}))

		sunday, err := resolver.Resolve(ctx, testRestaurant, mustDate(t, "2026-03-08"))
		require.NoError(t, err)
		assert.Equal(t, []model.ServicePeriod{{Start: 720, End: 960}}, sunday.Periods)
	})

	t.Run("missing weekly row means closed", func(t *testing.T) {
		store := newTestStore(t)
		other := uuid.New()
		require.NoError(t, store.UpsertSettings(ctx, &model.BookingSettings{RestaurantID: other, MaxPartySize: 4}))
		resolver := NewScheduleResolver(store, store)

		day, err := resolver.Resolve(ctx, other, mustDate(t, "2026-03-05"))
		require.NoError(t, err)
		assert.True(t, day.Closed)
	})

	t.Run("unconfigured restaurant", func(t *testing.T) {
		store := newTestStore(t)
		resolver := NewScheduleResolver(store, store)

		_, err := resolver.Resolve(ctx, uuid.New(), mustDate(t, "2026-03-05"))
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
