package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenstay/service-stay/internal/platform/domain"
)

func mustDay(t *testing.T, s string) Day {
	t.Helper()
	d, err := ParseDay(s)
	require.NoError(t, err)
	return d
}

func newTestCalendar(t *testing.T, start Day, horizon int) *Calendar {
	t.Helper()
	cal, err := New(7, start, horizon, StatusAvailable)
	require.NoError(t, err)
	return cal
}

func TestDayOf(t *testing.T) {
	d := DayOf(time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-14", d.String())

	before := DayOf(time.Date(1969, 12, 31, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, Day(-1), before)
	assert.Equal(t, "1969-12-31", before.String())
}

func TestNew_RejectsEmptyHorizon(t *testing.T) {
	_, err := New(1, 0, 0, StatusAvailable)
	assert.Error(t, err)
}

func TestCheckRange(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 10)
	require.NoError(t, cal.SetAvailability(start.AddDays(4), start.AddDays(4), false))
	require.NoError(t, cal.CommitBooked(start.AddDays(6), start.AddDays(7)))

	tests := []struct {
		name    string
		from    Day
		to      Day
		wantErr *domain.Error
		wantDay string
	}{
		{name: "single day", from: start, to: start},
		{name: "clear range", from: start, to: start.AddDays(3)},
		{name: "reversed", from: start.AddDays(2), to: start, wantErr: domain.ErrInvalidDateRange},
		{name: "before window", from: start.AddDays(-1), to: start, wantErr: domain.ErrInvalidDateRange},
		{name: "after window", from: start.AddDays(8), to: start.AddDays(10), wantErr: domain.ErrInvalidDateRange},
		{name: "closed day", from: start.AddDays(2), to: start.AddDays(8), wantErr: domain.ErrDatesNotAvailable, wantDay: "2026-05-05"},
		{name: "booked day", from: start.AddDays(5), to: start.AddDays(9), wantErr: domain.ErrDatesNotAvailable, wantDay: "2026-05-07"},
		{name: "last slot", from: start.AddDays(8), to: start.AddDays(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cal.CheckRange(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			if tt.wantDay != "" {
				var de *domain.Error
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.wantDay, de.Details["day"])
			}
		})
	}
}

func TestCommitBooked_OnlyTouchesRange(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 10)

	require.NoError(t, cal.CommitBooked(start.AddDays(2), start.AddDays(4)))

	for i, s := range cal.Slots() {
		if i >= 2 && i <= 4 {
			assert.Equal(t, StatusBooked, s, "slot %d", i)
		} else {
			assert.Equal(t, StatusAvailable, s, "slot %d", i)
		}
	}
}

func TestCommitBooked_OutsideWindowDoesNotWrap(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 10)

	err := cal.CommitBooked(start.AddDays(9), start.AddDays(11))
	assert.True(t, errors.Is(err, domain.ErrInvalidDateRange))
	for _, s := range cal.Slots() {
		assert.Equal(t, StatusAvailable, s)
	}
}

func TestAdvance_RollsWindowForward(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 5)
	require.NoError(t, cal.CommitBooked(start.AddDays(3), start.AddDays(3)))
	require.NoError(t, cal.SetAvailability(start, start, false))

	moved := cal.Advance(start.AddDays(2))
	require.True(t, moved)

	assert.Equal(t, start.AddDays(2), cal.WindowStart())
	assert.Equal(t, []Status{StatusAvailable, StatusBooked, StatusAvailable, StatusAvailable, StatusAvailable}, cal.Slots())

	status, ok := cal.StatusOn(start.AddDays(3))
	require.True(t, ok)
	assert.Equal(t, StatusBooked, status)

	_, ok = cal.StatusOn(start)
	assert.False(t, ok)
}

func TestAdvance_PastHorizonResets(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 3)
	require.NoError(t, cal.CommitBooked(start, start.AddDays(2)))

	cal.Advance(start.AddDays(30))

	assert.Equal(t, start.AddDays(30), cal.WindowStart())
	for _, s := range cal.Slots() {
		assert.Equal(t, StatusAvailable, s)
	}
}

func TestAdvance_IgnoresEarlierDay(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 3)

	assert.False(t, cal.Advance(start.AddDays(-3)))
	assert.False(t, cal.Advance(start))
	assert.Equal(t, start, cal.WindowStart())
}

func TestSetAvailability_BookedIsImmutable(t *testing.T) {
	start := mustDay(t, "2026-05-01")
	cal := newTestCalendar(t, start, 10)
	require.NoError(t, cal.CommitBooked(start.AddDays(5), start.AddDays(5)))

	err := cal.SetAvailability(start, start.AddDays(6), false)
	require.True(t, errors.Is(err, domain.ErrDatesNotAvailable))

	// Rejected request leaves every slot as it was.
	for i, s := range cal.Slots() {
		if i == 5 {
			assert.Equal(t, StatusBooked, s)
		} else {
			assert.Equal(t, StatusAvailable, s)
		}
	}

	require.NoError(t, cal.SetAvailability(start, start.AddDays(4), false))
	require.NoError(t, cal.SetAvailability(start.AddDays(1), start.AddDays(1), true))
	assert.Equal(t, StatusUnavailable, cal.Slots()[0])
	assert.Equal(t, StatusAvailable, cal.Slots()[1])
}

func TestSlots_ReturnsCopy(t *testing.T) {
	cal := newTestCalendar(t, 100, 3)
	slots := cal.Slots()
	slots[0] = StatusBooked

	status, _ := cal.StatusOn(100)
	assert.Equal(t, StatusAvailable, status)
}

func TestDayJSON(t *testing.T) {
	var d Day
	require.NoError(t, d.UnmarshalJSON([]byte(`"2026-05-03"`)))
	assert.Equal(t, "2026-05-03", d.String())

	require.NoError(t, d.UnmarshalJSON([]byte(`20000`)))
	assert.Equal(t, Day(20000), d)

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"`+Day(20000).String()+`"`, string(raw))

	assert.Error(t, d.UnmarshalJSON([]byte(`"05/03/2026"`)))
}
