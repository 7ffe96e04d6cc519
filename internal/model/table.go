package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TableShape string

const (
	TableShapeRectangle TableShape = "rectangle"
	TableShapeCircle    TableShape = "circle"
	TableShapeSquare    TableShape = "square"
)

type Table struct {
	ID           uuid.UUID  `json:"id"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	Number       string     `json:"table_number"`
	Capacity     int        `json:"capacity"`     // max party size
	MinCapacity  int        `json:"min_capacity"` // min party size
	Shape        TableShape `json:"shape"`
	X            *float64   `json:"x_position"` // floor plan only
	Y            *float64   `json:"y_position"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Fits reports whether the table can seat a party of the given size.
func (t *Table) Fits(partySize int) bool {
	return t.IsActive && t.MinCapacity <= partySize && partySize <= t.Capacity
}

// Validate checks the capacity range and shape.
func (t *Table) Validate() error {
	if t.Number == "" {
		return NewValidationError("table_number", "table number is required")
	}
	if t.MinCapacity < 1 {
		return NewValidationError("min_capacity", "min capacity must be at least 1")
	}
	if t.Capacity < t.MinCapacity {
		return NewValidationError("capacity", fmt.Sprintf("capacity %d is below min capacity %d", t.Capacity, t.MinCapacity))
	}
	switch t.Shape {
	case TableShapeRectangle, TableShapeCircle, TableShapeSquare:
	default:
		return NewValidationError("shape", fmt.Sprintf("unknown shape %q", t.Shape))
	}
	return nil
}

// TablePatch carries the fields an admin update may change.
type TablePatch struct {
	Number      *string     `json:"table_number"`
	Capacity    *int        `json:"capacity"`
	MinCapacity *int        `json:"min_capacity"`
	Shape       *TableShape `json:"shape"`
	X           *float64    `json:"x_position"`
	Y           *float64    `json:"y_position"`
	IsActive    *bool       `json:"is_active"`
}

// Apply copies the set fields onto t.
func (p *TablePatch) Apply(t *Table) {
	if p.Number != nil {
		t.Number = *p.Number
	}
	if p.Capacity != nil {
		t.Capacity = *p.Capacity
	}
	if p.MinCapacity != nil {
		t.MinCapacity = *p.MinCapacity
	}
	if p.Shape != nil {
		t.Shape = *p.Shape
	}
	if p.X != nil {
		t.X = p.X
	}
	if p.Y != nil {
		t.Y = p.Y
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}
