package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oliver453/lochlann-se/internal/model"
)

// Postgres error codes the booking flow reacts to.
const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same query
// helpers run inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsNotFound reports a query that matched no rows.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key, such as a reused table number.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsExclusionViolation reports an overlapping confirmed booking rejected by the table constraint.
func IsExclusionViolation(err error) bool {
	return pgCode(err) == codeExclusionViolation
}

// IsContention reports errors caused by concurrent transactions that are safe to retry.
func IsContention(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// Classify maps driver errors onto the domain taxonomy.
func Classify(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded), pgCode(err) == codeQueryCanceled:
		return fmt.Errorf("%s: %w", op, model.ErrAllocationTimeout)
	case IsContention(err):
		return fmt.Errorf("%s: %w: %v", op, model.ErrTransactionConflict, err)
	case IsExclusionViolation(err):
		return fmt.Errorf("%s: %w", op, model.ErrTableTaken)
	default:
		return fmt.Errorf("%s: %w: %v", op, model.ErrStorage, err)
	}
}
