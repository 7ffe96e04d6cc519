package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository/base"
)

type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetSettings returns the booking settings, or nil for an unconfigured restaurant.
func (r *SettingsRepository) GetSettings(ctx context.Context, restaurantID uuid.UUID) (*model.BookingSettings, error) {
	query := `
		SELECT restaurant_id, slot_duration, default_booking_duration, min_advance_hours,
		       booking_window_days, max_party_size, updated_at
		FROM booking_settings
		WHERE restaurant_id = $1
	`

	var s model.BookingSettings
	err := r.pool.QueryRow(ctx, query, restaurantID).Scan(
		&s.RestaurantID,
		&s.SlotDuration,
		&s.DefaultBookingDuration,
		&s.MinAdvanceHours,
		&s.BookingWindowDays,
		&s.MaxPartySize,
		&s.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking settings: %w", err)
	}

	return &s, nil
}

// UpsertSettings creates the restaurant row if needed and saves its settings.
func (r *SettingsRepository) UpsertSettings(ctx context.Context, s *model.BookingSettings) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureRestaurant(ctx, tx, s.RestaurantID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO booking_settings (
			restaurant_id, slot_duration, default_booking_duration,
			min_advance_hours, max_party_size, booking_window_days
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (restaurant_id) DO UPDATE SET
			slot_duration = EXCLUDED.slot_duration,
			default_booking_duration = EXCLUDED.default_booking_duration,
			min_advance_hours = EXCLUDED.min_advance_hours,
			max_party_size = EXCLUDED.max_party_size,
			booking_window_days = EXCLUDED.booking_window_days,
			updated_at = now()
		RETURNING updated_at
	`,
		s.RestaurantID,
		s.SlotDuration,
		s.DefaultBookingDuration,
		s.MinAdvanceHours,
		s.MaxPartySize,
		s.BookingWindowDays,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert booking settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ensureRestaurant creates the parent row the other aggregates reference.
func ensureRestaurant(ctx context.Context, q base.DBTX, restaurantID uuid.UUID) error {
	if _, err := q.Exec(ctx, `INSERT INTO restaurants (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, restaurantID); err != nil {
		return fmt.Errorf("ensure restaurant: %w", err)
	}
	return nil
}
