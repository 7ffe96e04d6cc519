package service

import (
	"sort"

	"github.com/oliver453/lochlann-se/internal/model"
)

// GenerateSlots enumerates candidate start times across periods in ascending
// order. The last start of a period is its seating cutoff minus the booking
// duration, so every offered booking ends by last seating and closing.
func GenerateSlots(periods []model.ServicePeriod, slotDuration, bookingDuration int) []model.TimeOfDay {
	if slotDuration <= 0 || bookingDuration <= 0 {
		return nil
	}

	ordered := make([]model.ServicePeriod, len(periods))
	copy(ordered, periods)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var slots []model.TimeOfDay
	for _, p := range ordered {
		last := p.SeatingCutoff() - model.TimeOfDay(bookingDuration)

		for t := p.Start; t <= last; t += model.TimeOfDay(slotDuration) {
			slots = append(slots, t)
		}
	}
	return slots
}

// containsSlot reports whether t is one of the generated starts.
func containsSlot(slots []model.TimeOfDay, t model.TimeOfDay) bool {
	i := sort.Search(len(slots), func(i int) bool { return slots[i] >= t })
	return i < len(slots) && slots[i] == t
}
