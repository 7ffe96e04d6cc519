package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
)

// TableService manages the table inventory. Changes are written straight to
// the store, so the next allocation read sees them.
type TableService struct {
	tables TableStore
	logger *zap.Logger
}

func NewTableService(tables TableStore, logger *zap.Logger) *TableService {
	return &TableService{tables: tables, logger: logger}
}

func (s *TableService) Create(ctx context.Context, table *model.Table) error {
	if table.ID == uuid.Nil {
		table.ID = uuid.New()
	}
	if table.Shape == "" {
		table.Shape = model.TableShapeRectangle
	}
	if table.MinCapacity == 0 {
		table.MinCapacity = 1
	}
	if err := table.Validate(); err != nil {
		return err
	}

	if err := s.tables.CreateTable(ctx, table); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	s.logger.Info("Table created",
		zap.String("table_id", table.ID.String()),
		zap.String("table_number", table.Number),
		zap.Int("capacity", table.Capacity))
	return nil
}

func (s *TableService) List(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	tables, err := s.tables.ListTables(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if tables == nil {
		tables = []model.Table{}
	}
	return tables, nil
}

// Update applies patch to a table. Deactivation goes through here too.
func (s *TableService) Update(ctx context.Context, id uuid.UUID, patch model.TablePatch) (*model.Table, error) {
	table, err := s.tables.GetTable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	if table == nil {
		return nil, fmt.Errorf("table %s: %w", id, model.ErrNotFound)
	}

	patch.Apply(table)
	if err := table.Validate(); err != nil {
		return nil, err
	}

	if err := s.tables.UpdateTable(ctx, table); err != nil {
		return nil, fmt.Errorf("update table: %w", err)
	}

	s.logger.Info("Table updated",
		zap.String("table_id", table.ID.String()),
		zap.Bool("is_active", table.IsActive))
	return table, nil
}
