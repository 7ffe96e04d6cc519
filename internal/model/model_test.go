package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "17:00", want: 1020},
		{in: "09:05", want: 545},
		{in: "19:30:00", want: 1170},
		{in: "00:00", want: 0},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:30", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "17:00", TimeOfDay(1020).String())
	assert.Equal(t, "09:05", TimeOfDay(545).String())
	assert.Equal(t, "00:00", TimeOfDay(0).String())
}

func TestTimeOfDay_UnmarshalJSON(t *testing.T) {
	var v struct {
		Time TimeOfDay `json:"time"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"time":1140}`), &v))
	assert.Equal(t, TimeOfDay(1140), v.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"time":"19:30"}`), &v))
	assert.Equal(t, TimeOfDay(1170), v.Time)

	err := json.Unmarshal([]byte(`{"time":"late"}`), &v)
	assert.ErrorIs(t, err, ErrValidation)

	err = json.Unmarshal([]byte(`{"time":true}`), &v)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{date: "2026-03-02", want: 0}, // Monday
		{date: "2026-03-05", want: 3},
		{date: "2026-03-07", want: 5},
		{date: "2026-03-08", want: 6}, // Sunday
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := ParseDate(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Weekday(d))
		})
	}
}

func TestDateOfAndAt(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	// 23:30 UTC is already the next day in CET
	instant := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-05", FormatDate(DateOf(instant, loc)))

	date, err := ParseDate("2026-03-05")
	require.NoError(t, err)
	at := At(date, 1140, loc)
	assert.Equal(t, time.Date(2026, 3, 5, 19, 0, 0, 0, loc), at)
	assert.True(t, at.Equal(time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)))

	_, err = ParseDate("2026-02-30")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookingStatus_Transitions(t *testing.T) {
	statuses := []BookingStatus{BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted, BookingStatusNoShow}
	allowed := map[BookingStatus]map[BookingStatus]bool{
		BookingStatusConfirmed: {BookingStatusCancelled: true, BookingStatusCompleted: true, BookingStatusNoShow: true},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, BookingStatusConfirmed.Occupies())
	assert.False(t, BookingStatusCancelled.Occupies())
	assert.False(t, BookingStatusNoShow.Occupies())
}

func TestParseBookingStatus(t *testing.T) {
	status, err := ParseBookingStatus("no_show")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusNoShow, status)

	_, err = ParseBookingStatus("seated")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBooking_MarshalJSON(t *testing.T) {
	date, _ := ParseDate("2026-03-05")
	b := Booking{Date: date, StartTime: 1140, Duration: 120, Status: BookingStatusConfirmed}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "2026-03-05", out["booking_date"])
	assert.Equal(t, "19:00", out["booking_time"])
	assert.Equal(t, float64(1140), out["time"])
	assert.Equal(t, TimeOfDay(1260), b.EndTime())
}

func TestTable_Fits(t *testing.T) {
	table := Table{MinCapacity: 2, Capacity: 4, IsActive: true}

	assert.False(t, table.Fits(1))
	assert.True(t, table.Fits(2))
	assert.True(t, table.Fits(4))
	assert.False(t, table.Fits(5))

	table.IsActive = false
	assert.False(t, table.Fits(3))
}

func TestTablePatch_Apply(t *testing.T) {
	table := Table{Number: "1", Capacity: 4, MinCapacity: 1, Shape: TableShapeSquare, IsActive: true}
	number, inactive := "1A", false

	patch := TablePatch{Number: &number, IsActive: &inactive}
	patch.Apply(&table)

	assert.Equal(t, "1A", table.Number)
	assert.False(t, table.IsActive)
	assert.Equal(t, 4, table.Capacity)
	assert.Equal(t, TableShapeSquare, table.Shape)
}

func TestValidatePeriods(t *testing.T) {
	last := func(v TimeOfDay) *TimeOfDay { return &v }

	tests := []struct {
		name    string
		periods []ServicePeriod
		wantErr bool
	}{
		{name: "lunch and dinner", periods: []ServicePeriod{{Start: 1020, End: 1380}, {Start: 690, End: 870}}},
		{name: "touching periods", periods: []ServicePeriod{{Start: 690, End: 900}, {Start: 900, End: 1380}}},
		{name: "overlap", periods: []ServicePeriod{{Start: 690, End: 900}, {Start: 870, End: 1380}}, wantErr: true},
		{name: "empty interval", periods: []ServicePeriod{{Start: 900, End: 900}}, wantErr: true},
		{name: "past midnight", periods: []ServicePeriod{{Start: 1200, End: 1500}}, wantErr: true},
		{name: "last seating inside", periods: []ServicePeriod{{Start: 1020, End: 1380, LastSeating: last(1260)}}},
		{name: "last seating outside", periods: []ServicePeriod{{Start: 1020, End: 1380, LastSeating: last(1000)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePeriods(tt.periods)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSpecialHours_Validate(t *testing.T) {
	closed := SpecialHours{IsClosed: true}
	assert.NoError(t, closed.Validate())

	missing := SpecialHours{}
	assert.ErrorIs(t, missing.Validate(), ErrValidation)

	short := SpecialHours{Period: &ServicePeriod{Start: 720, End: 900}}
	assert.NoError(t, short.Validate())
}

func TestBookingSettings(t *testing.T) {
	s := BookingSettings{MinAdvanceHours: 2}.WithDefaults()
	assert.Equal(t, DefaultSlotDuration, s.SlotDuration)
	assert.Equal(t, DefaultBookingDuration, s.DefaultBookingDuration)
	assert.Equal(t, 2*time.Hour, s.MinAdvance())

	s.MaxPartySize = 0
	assert.ErrorIs(t, s.Validate(), ErrValidation)
	s.MaxPartySize = 8
	assert.NoError(t, s.Validate())
}
