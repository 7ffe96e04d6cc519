package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository/base"
)

// HoursRepository stores the weekly opening pattern and date-specific overrides.
type HoursRepository struct {
	pool *pgxpool.Pool
}

func NewHoursRepository(pool *pgxpool.Pool) *HoursRepository {
	return &HoursRepository{pool: pool}
}

// GetOpeningHours returns the weekly pattern for one weekday, or nil when none is stored.
func (r *HoursRepository) GetOpeningHours(ctx context.Context, restaurantID uuid.UUID, dayOfWeek int) (*model.OpeningHours, error) {
	query := `
		SELECT oh.is_closed, sp.start_minute, sp.end_minute, sp.last_seating_minute
		FROM opening_hours oh
		LEFT JOIN service_periods sp ON sp.opening_hours_id = oh.id
		WHERE oh.restaurant_id = $1 AND oh.day_of_week = $2
		ORDER BY sp.start_minute
	`

	rows, err := r.pool.Query(ctx, query, restaurantID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("get opening hours: %w", err)
	}
	defer rows.Close()

	var hours *model.OpeningHours
	for rows.Next() {
		var (
			isClosed    bool
			start, end  *int
			lastSeating *int
		)
		if err := rows.Scan(&isClosed, &start, &end, &lastSeating); err != nil {
			return nil, fmt.Errorf("scan opening hours: %w", err)
		}
		if hours == nil {
			hours = &model.OpeningHours{RestaurantID: restaurantID, DayOfWeek: dayOfWeek, IsClosed: isClosed}
		}
		if start != nil && end != nil {
			hours.Periods = append(hours.Periods, newPeriod(*start, *end, lastSeating))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opening hours: %w", err)
	}

	return hours, nil
}

// ListOpeningHours returns the full weekly pattern ordered by weekday.
func (r *HoursRepository) ListOpeningHours(ctx context.Context, restaurantID uuid.UUID) ([]model.OpeningHours, error) {
	week := make([]model.OpeningHours, 0, 7)
	for day := 0; day < 7; day++ {
		hours, err := r.GetOpeningHours(ctx, restaurantID, day)
		if err != nil {
			return nil, err
		}
		if hours != nil {
			week = append(week, *hours)
		}
	}
	return week, nil
}

// ReplaceOpeningHours rewrites the weekly pattern for the given days in one transaction.
func (r *HoursRepository) ReplaceOpeningHours(ctx context.Context, restaurantID uuid.UUID, week []model.OpeningHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureRestaurant(ctx, tx, restaurantID); err != nil {
		return err
	}

	for _, day := range week {
		var hoursID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO opening_hours (restaurant_id, day_of_week, is_closed)
			VALUES ($1, $2, $3)
			ON CONFLICT (restaurant_id, day_of_week) DO UPDATE SET is_closed = EXCLUDED.is_closed
			RETURNING id
		`, restaurantID, day.DayOfWeek, day.IsClosed).Scan(&hoursID)
		if err != nil {
			return fmt.Errorf("upsert opening hours day %d: %w", day.DayOfWeek, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM service_periods WHERE opening_hours_id = $1`, hoursID); err != nil {
			return fmt.Errorf("clear service periods day %d: %w", day.DayOfWeek, err)
		}

		for _, p := range day.Periods {
			_, err := tx.Exec(ctx, `
				INSERT INTO service_periods (opening_hours_id, start_minute, end_minute, last_seating_minute)
				VALUES ($1, $2, $3, $4)
			`, hoursID, p.Start, p.End, p.LastSeating)
			if err != nil {
				return fmt.Errorf("insert service period day %d: %w", day.DayOfWeek, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const specialHoursColumns = `date, is_closed, start_minute, end_minute, last_seating_minute, reason`

// GetSpecialHours returns the override for a date, or nil when the weekly pattern applies.
func (r *HoursRepository) GetSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) (*model.SpecialHours, error) {
	query := `SELECT ` + specialHoursColumns + ` FROM special_hours WHERE restaurant_id = $1 AND date = $2`

	special, err := scanSpecialHours(r.pool.QueryRow(ctx, query, restaurantID, date), restaurantID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get special hours: %w", err)
	}
	return special, nil
}

// ListSpecialHours returns overrides from the given date onwards.
func (r *HoursRepository) ListSpecialHours(ctx context.Context, restaurantID uuid.UUID, from time.Time) ([]model.SpecialHours, error) {
	query := `
		SELECT ` + specialHoursColumns + `
		FROM special_hours
		WHERE restaurant_id = $1 AND date >= $2
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query, restaurantID, from)
	if err != nil {
		return nil, fmt.Errorf("list special hours: %w", err)
	}
	defer rows.Close()

	var list []model.SpecialHours
	for rows.Next() {
		special, err := scanSpecialHours(rows, restaurantID)
		if err != nil {
			return nil, fmt.Errorf("scan special hours: %w", err)
		}
		list = append(list, *special)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate special hours: %w", err)
	}
	return list, nil
}

// UpsertSpecialHours sets the override for one date.
func (r *HoursRepository) UpsertSpecialHours(ctx context.Context, special *model.SpecialHours) error {
	var start, end *int
	var lastSeating *model.TimeOfDay
	if special.Period != nil && !special.IsClosed {
		s, e := int(special.Period.Start), int(special.Period.End)
		start, end = &s, &e
		lastSeating = special.Period.LastSeating
	}

	if err := ensureRestaurant(ctx, r.pool, special.RestaurantID); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO special_hours (restaurant_id, date, is_closed, start_minute, end_minute, last_seating_minute, reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (restaurant_id, date) DO UPDATE SET
			is_closed = EXCLUDED.is_closed,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			last_seating_minute = EXCLUDED.last_seating_minute,
			reason = EXCLUDED.reason,
			updated_at = now()
	`, special.RestaurantID, special.Date, special.IsClosed, start, end, lastSeating, special.Reason)
	if err != nil {
		return fmt.Errorf("upsert special hours: %w", err)
	}
	return nil
}

// DeleteSpecialHours removes the override so the weekly pattern applies again.
func (r *HoursRepository) DeleteSpecialHours(ctx context.Context, restaurantID uuid.UUID, date time.Time) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM special_hours WHERE restaurant_id = $1 AND date = $2`, restaurantID, date)
	if err != nil {
		return fmt.Errorf("delete special hours: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete special hours: %w", model.ErrNotFound)
	}
	return nil
}

func scanSpecialHours(row pgx.Row, restaurantID uuid.UUID) (*model.SpecialHours, error) {
	var (
		s           = model.SpecialHours{RestaurantID: restaurantID}
		start, end  *int
		lastSeating *int
		reason      *string
	)
	if err := row.Scan(&s.Date, &s.IsClosed, &start, &end, &lastSeating, &reason); err != nil {
		return nil, err
	}
	if !s.IsClosed && start != nil && end != nil {
		p := newPeriod(*start, *end, lastSeating)
		s.Period = &p
	}
	if reason != nil {
		s.Reason = *reason
	}
	return &s, nil
}

func newPeriod(start, end int, lastSeating *int) model.ServicePeriod {
	p := model.ServicePeriod{Start: model.TimeOfDay(start), End: model.TimeOfDay(end)}
	if lastSeating != nil {
		ls := model.TimeOfDay(*lastSeating)
		p.LastSeating = &ls
	}
	return p
}
