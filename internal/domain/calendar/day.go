package calendar

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60

	// DateLayout is the wire format for days.
	DateLayout = "2006-01-02"
)

// Day is an absolute day number: whole UTC days since 1970-01-01.
type Day int64

// DayOf returns the UTC day containing t.
func DayOf(t time.Time) Day {
	sec := t.UTC().Unix()
	d := sec / secondsPerDay
	if sec < 0 && sec%secondsPerDay != 0 {
		d--
	}
	return Day(d)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Time returns midnight UTC at the start of the day.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.Time().Format(DateLayout)
}

// AddDays returns d shifted by n days.
func (d Day) AddDays(n int) Day { return d + Day(n) }

// MarshalJSON encodes the day as a date string.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a date string or an absolute day number.
func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseDay(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("day must be a date string or a day number: %s", data)
	}
	*d = Day(n)
	return nil
}

// DaysInclusive returns the number of days in [start, end].
func DaysInclusive(start, end Day) int64 {
	return int64(end-start) + 1
}
