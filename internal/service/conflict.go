package service

import (
	"github.com/google/uuid"

	"github.com/oliver453/lochlann-se/internal/model"
)

// Overlaps reports whether [a, a+da) and [b, b+db) intersect. Touching
// intervals do not overlap.
func Overlaps(a, da, b, db int) bool {
	return a < b+db && b < a+da
}

// FreeTables filters tables, keeping order, to those without a confirmed
// booking overlapping [start, start+duration).
func FreeTables(tables []model.Table, bookings []model.Booking, start model.TimeOfDay, duration int) []model.Table {
	busy := make(map[uuid.UUID]struct{})
	for _, b := range bookings {
		if b.TableID == nil || !b.Status.Occupies() {
			continue
		}
		if Overlaps(int(b.StartTime), b.Duration, int(start), duration) {
			busy[*b.TableID] = struct{}{}
		}
	}

	free := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if _, taken := busy[t.ID]; !taken {
			free = append(free, t)
		}
	}
	return free
}
