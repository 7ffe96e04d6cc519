package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository/base"
)

const bookingColumns = `
	b.id, b.restaurant_id, b.table_id, b.booking_date, b.start_minute, b.duration, b.party_size,
	b.customer_name, b.customer_email, b.customer_phone, b.notes, b.status, b.created_via,
	b.confirmation_sent, b.created_at, b.updated_at, COALESCE(t.table_number, '')`

const bookingFrom = `FROM bookings b LEFT JOIN tables t ON t.id = b.table_id`

type BookingRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewBookingRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *BookingRepository {
	return &BookingRepository{pool: pool, lockTimeout: lockTimeout}
}

// FittingTables is the read-path variant of the allocation query.
func (r *BookingRepository) FittingTables(ctx context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	return fittingTables(ctx, r.pool, restaurantID, partySize)
}

// ConfirmedBookingsOn is the read-path variant of the allocation query.
func (r *BookingRepository) ConfirmedBookingsOn(ctx context.Context, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error) {
	return confirmedBookingsOn(ctx, r.pool, restaurantID, date)
}

// WithAllocationTx runs fn in a transaction bounded by lock and statement timeouts.
// Overlap protection comes from the bookings_no_overlap exclusion constraint: a
// concurrent insert on the same table and window waits for the first one and
// fails once it commits.
func (r *BookingRepository) WithAllocationTx(ctx context.Context, fn AllocationFunc) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return base.Classify(ctx, "begin allocation", err)
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		ms := r.lockTimeout.Milliseconds()
		// SET LOCAL does not take bind parameters
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
			return base.Classify(ctx, "set lock timeout", err)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return base.Classify(ctx, "set statement timeout", err)
		}
	}

	if err := fn(ctx, &pgAllocationTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return base.Classify(ctx, "commit allocation", err)
	}
	return nil
}

type pgAllocationTx struct {
	tx pgx.Tx
}

func (t *pgAllocationTx) FittingTables(ctx context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	tables, err := fittingTables(ctx, t.tx, restaurantID, partySize)
	return tables, base.Classify(ctx, "allocation read tables", err)
}

func (t *pgAllocationTx) ConfirmedBookingsOn(ctx context.Context, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error) {
	bookings, err := confirmedBookingsOn(ctx, t.tx, restaurantID, date)
	return bookings, base.Classify(ctx, "allocation read bookings", err)
}

// InsertBooking inserts under a savepoint so an exclusion violation only
// discards this candidate, not the whole transaction.
func (t *pgAllocationTx) InsertBooking(ctx context.Context, booking *model.Booking) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return base.Classify(ctx, "savepoint", err)
	}
	defer sp.Rollback(ctx)

	query := `
		INSERT INTO bookings (
			id, restaurant_id, table_id, booking_date, start_minute, duration, party_size,
			customer_name, customer_email, customer_phone, notes, status, created_via
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err = sp.QueryRow(
		ctx, query,
		booking.ID,
		booking.RestaurantID,
		booking.TableID,
		booking.Date,
		booking.StartTime,
		booking.Duration,
		booking.PartySize,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.Notes,
		booking.Status,
		booking.CreatedVia,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return base.Classify(ctx, "insert booking", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return base.Classify(ctx, "release savepoint", err)
	}
	return nil
}

func confirmedBookingsOn(ctx context.Context, q base.DBTX, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		` + bookingFrom + `
		WHERE b.restaurant_id = $1
		  AND b.booking_date = $2
		  AND b.status = 'confirmed'
		  AND b.table_id IS NOT NULL
		ORDER BY b.start_minute
	`

	rows, err := q.Query(ctx, query, restaurantID, date)
	if err != nil {
		return nil, fmt.Errorf("get confirmed bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// GetBooking returns a booking, or nil when it does not exist.
func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` ` + bookingFrom + ` WHERE b.id = $1`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ListBookings returns bookings of a restaurant, newest date first.
func (r *BookingRepository) ListBookings(ctx context.Context, restaurantID uuid.UUID, filter model.BookingFilter) ([]model.Booking, error) {
	conditions := []string{"b.restaurant_id = $1"}
	args := []any{restaurantID}

	if filter.Date != nil {
		args = append(args, *filter.Date)
		conditions = append(conditions, fmt.Sprintf("b.booking_date = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` ` + bookingFrom + `
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY b.booking_date DESC, b.start_minute DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// UpdateStatus moves a booking from one status to another. It matches on the
// current status so that two concurrent admin actions cannot both apply.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`

	result, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update booking status from %s: %w", from, model.ErrInvalidTransition)
	}

	return nil
}

// MarkConfirmationSent records a delivered customer confirmation.
func (r *BookingRepository) MarkConfirmationSent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE bookings SET confirmation_sent = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark confirmation sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("mark confirmation sent: %w", model.ErrNotFound)
	}
	return nil
}

// ListUnsentConfirmations returns confirmed bookings from date onwards whose
// confirmation has not been delivered yet, oldest first.
func (r *BookingRepository) ListUnsentConfirmations(ctx context.Context, from time.Time, limit int) ([]model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		` + bookingFrom + `
		WHERE b.status = 'confirmed'
		  AND NOT b.confirmation_sent
		  AND b.booking_date >= $1
		ORDER BY b.created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsent confirmations: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// Stats aggregates the dashboard counters relative to today.
func (r *BookingRepository) Stats(ctx context.Context, restaurantID uuid.UUID, today time.Time) (*model.DashboardStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed' AND booking_date >= $2::date - 30),
			COUNT(*) FILTER (WHERE status = 'completed' AND booking_date >= $2::date - 30),
			COUNT(*) FILTER (WHERE status = 'cancelled' AND booking_date >= $2::date - 30),
			COUNT(*) FILTER (WHERE status = 'no_show' AND booking_date >= $2::date - 30),
			COALESCE(SUM(party_size) FILTER (WHERE status = 'completed' AND booking_date >= $2::date - 30), 0),
			COUNT(*) FILTER (WHERE status = 'confirmed' AND booking_date = $2::date),
			COUNT(*) FILTER (WHERE status = 'confirmed' AND booking_date = $2::date + 1),
			COUNT(*) FILTER (WHERE status = 'confirmed' AND booking_date > $2::date)
		FROM bookings
		WHERE restaurant_id = $1
	`

	var s model.DashboardStats
	err := r.pool.QueryRow(ctx, query, restaurantID, today).Scan(
		&s.Confirmed,
		&s.Completed,
		&s.Cancelled,
		&s.NoShow,
		&s.TotalGuests,
		&s.TodayConfirmed,
		&s.TomorrowConfirmed,
		&s.UpcomingConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("get booking stats: %w", err)
	}

	if s.Completed > 0 {
		s.AveragePartySize = float64(s.TotalGuests) / float64(s.Completed)
	}
	return &s, nil
}

// Ping checks the pool can reach the database.
func (r *BookingRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.RestaurantID,
		&b.TableID,
		&b.Date,
		&b.StartTime,
		&b.Duration,
		&b.PartySize,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Notes,
		&b.Status,
		&b.CreatedVia,
		&b.ConfirmationSent,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.TableNumber,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
