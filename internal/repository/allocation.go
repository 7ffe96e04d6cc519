package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
)

// AllocationReader exposes the two set-based reads eligibility is computed from.
type AllocationReader interface {
	// FittingTables returns active tables admitting the party size, tightest fit first.
	FittingTables(ctx context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error)
	// ConfirmedBookingsOn returns every confirmed booking of the restaurant on date.
	ConfirmedBookingsOn(ctx context.Context, restaurantID uuid.UUID, date time.Time) ([]model.Booking, error)
}

// AllocationTx is the view of storage inside one allocation transaction.
type AllocationTx interface {
	AllocationReader
	// InsertBooking stores a confirmed booking bound to its table. It returns
	// model.ErrTableTaken when a committed confirmed booking already holds an
	// overlapping window on that table; the transaction stays usable.
	InsertBooking(ctx context.Context, booking *model.Booking) error
}

// AllocationFunc runs inside an allocation transaction. Returning an error rolls back.
type AllocationFunc func(ctx context.Context, tx AllocationTx) error
