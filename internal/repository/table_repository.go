package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oliver453/lochlann-se/internal/model"
	"github.com/oliver453/lochlann-se/internal/repository/base"
)

const tableColumns = `id, restaurant_id, table_number, capacity, min_capacity, shape, x_position, y_position, is_active, created_at, updated_at`

type TableRepository struct {
	pool *pgxpool.Pool
}

func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// CreateTable inserts a new table.
func (r *TableRepository) CreateTable(ctx context.Context, table *model.Table) error {
	if err := ensureRestaurant(ctx, r.pool, table.RestaurantID); err != nil {
		return err
	}

	query := `
		INSERT INTO tables (id, restaurant_id, table_number, capacity, min_capacity, shape, x_position, y_position, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		table.ID,
		table.RestaurantID,
		table.Number,
		table.Capacity,
		table.MinCapacity,
		table.Shape,
		table.X,
		table.Y,
		table.IsActive,
	).Scan(&table.CreatedAt, &table.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create table: %w", model.NewValidationError("table_number", "table number already exists"))
		}
		return fmt.Errorf("create table: %w", err)
	}

	return nil
}

// GetTable returns a table, or nil when it does not exist.
func (r *TableRepository) GetTable(ctx context.Context, id uuid.UUID) (*model.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

	table, err := scanTable(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get table by id: %w", err)
	}

	return table, nil
}

// ListTables returns every table of a restaurant, active or not.
func (r *TableRepository) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE restaurant_id = $1
		ORDER BY table_number
	`

	rows, err := r.pool.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	return collectTables(rows)
}

// UpdateTable writes all mutable columns of a table.
func (r *TableRepository) UpdateTable(ctx context.Context, table *model.Table) error {
	query := `
		UPDATE tables
		SET table_number = $2, capacity = $3, min_capacity = $4, shape = $5,
		    x_position = $6, y_position = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		table.ID,
		table.Number,
		table.Capacity,
		table.MinCapacity,
		table.Shape,
		table.X,
		table.Y,
		table.IsActive,
	).Scan(&table.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("update table: %w", model.ErrNotFound)
		}
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("update table: %w", model.NewValidationError("table_number", "table number already exists"))
		}
		return fmt.Errorf("update table: %w", err)
	}

	return nil
}

// fittingTables returns active tables whose capacity range admits the party,
// tightest fit first.
func fittingTables(ctx context.Context, q base.DBTX, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE restaurant_id = $1
		  AND is_active
		  AND capacity >= $2
		  AND min_capacity <= $2
		ORDER BY capacity ASC, table_number ASC
	`

	rows, err := q.Query(ctx, query, restaurantID, partySize)
	if err != nil {
		return nil, fmt.Errorf("get fitting tables: %w", err)
	}
	defer rows.Close()

	return collectTables(rows)
}

func scanTable(row pgx.Row) (*model.Table, error) {
	var t model.Table
	err := row.Scan(
		&t.ID,
		&t.RestaurantID,
		&t.Number,
		&t.Capacity,
		&t.MinCapacity,
		&t.Shape,
		&t.X,
		&t.Y,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTables(rows pgx.Rows) ([]model.Table, error) {
	var tables []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}
