package calendar

import (
	"fmt"

	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// DefaultHorizon is the number of days a calendar covers when not configured.
const DefaultHorizon = 100

// Status is the state of a single day.
type Status uint8

const (
	StatusUnavailable Status = iota
	StatusAvailable
	StatusBooked
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusBooked:
		return "booked"
	default:
		return "unavailable"
	}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool { return s <= StatusBooked }

// Calendar is the rolling availability window of one home.
//
// Slot i describes day windowStart+i. Advance rolls the window forward so
// that windowStart is always today: slots for past days are dropped and new
// days entering at the far end start Available. A slot is therefore never
// reused for a different day.
type Calendar struct {
	homeID      int64
	windowStart Day
	slots       []Status
	version     int64
}

// New creates a calendar whose every slot holds initial.
func New(homeID int64, windowStart Day, horizon int, initial Status) (*Calendar, error) {
	if horizon < 1 {
		return nil, domain.NewValidationError("calendar horizon must be positive")
	}
	if !initial.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid initial status %d", initial))
	}
	slots := make([]Status, horizon)
	for i := range slots {
		slots[i] = initial
	}
	return &Calendar{homeID: homeID, windowStart: windowStart, slots: slots, version: 1}, nil
}

// Reconstruct rebuilds a calendar from persistence data (no validation).
func Reconstruct(homeID int64, windowStart Day, slots []Status, version int64) *Calendar {
	cp := make([]Status, len(slots))
	copy(cp, slots)
	return &Calendar{homeID: homeID, windowStart: windowStart, slots: cp, version: version}
}

// HomeID returns the owning home's handle.
func (c *Calendar) HomeID() int64 { return c.homeID }

// WindowStart returns the day that slot 0 represents.
func (c *Calendar) WindowStart() Day { return c.windowStart }

// WindowEnd returns the last day inside the window.
func (c *Calendar) WindowEnd() Day { return c.windowStart.AddDays(len(c.slots) - 1) }

// Horizon returns the number of slots.
func (c *Calendar) Horizon() int { return len(c.slots) }

// Version returns the entity version for optimistic locking.
func (c *Calendar) Version() int64 { return c.version }

// IncrementVersion bumps the version after a mutation.
func (c *Calendar) IncrementVersion() { c.version++ }

// Slots returns a copy of the day statuses.
func (c *Calendar) Slots() []Status {
	cp := make([]Status, len(c.slots))
	copy(cp, c.slots)
	return cp
}

// Clone returns an independent copy.
func (c *Calendar) Clone() *Calendar {
	return Reconstruct(c.homeID, c.windowStart, c.slots, c.version)
}

// StatusOn returns the status of day and whether it lies inside the window.
func (c *Calendar) StatusOn(day Day) (Status, bool) {
	idx, ok := c.index(day)
	if !ok {
		return StatusUnavailable, false
	}
	return c.slots[idx], true
}

// Advance rolls the window forward to today. It reports whether anything moved.
// A today earlier than the current window start is ignored.
func (c *Calendar) Advance(today Day) bool {
	if today <= c.windowStart {
		return false
	}
	shift := int64(today - c.windowStart)
	if shift >= int64(len(c.slots)) {
		for i := range c.slots {
			c.slots[i] = StatusAvailable
		}
	} else {
		n := copy(c.slots, c.slots[shift:])
		for i := n; i < len(c.slots); i++ {
			c.slots[i] = StatusAvailable
		}
	}
	c.windowStart = today
	return true
}

// CheckRange verifies that every day in [start, end] is inside the window and Available.
// The earliest non-available day is reported in the error details under "day".
func (c *Calendar) CheckRange(start, end Day) error {
	first, last, err := c.bounds(start, end)
	if err != nil {
		return err
	}
	for i := first; i <= last; i++ {
		if c.slots[i] != StatusAvailable {
			day := c.windowStart.AddDays(i)
			return domain.New(domain.KindConflict, domain.CodeDatesNotAvailable,
				fmt.Sprintf("%s is %s", day, c.slots[i])).
				WithDetail("day", day.String()).
				WithDetail("status", c.slots[i].String())
		}
	}
	return nil
}

// CommitBooked marks every day in [start, end] as Booked without checking current status.
// Callers must have run CheckRange inside the same critical section.
func (c *Calendar) CommitBooked(start, end Day) error {
	first, last, err := c.bounds(start, end)
	if err != nil {
		return err
	}
	for i := first; i <= last; i++ {
		c.slots[i] = StatusBooked
	}
	return nil
}

// SetAvailability opens or closes every day in [start, end]. Booked days cannot be changed.
func (c *Calendar) SetAvailability(start, end Day, available bool) error {
	first, last, err := c.bounds(start, end)
	if err != nil {
		return err
	}
	for i := first; i <= last; i++ {
		if c.slots[i] == StatusBooked {
			day := c.windowStart.AddDays(i)
			return domain.New(domain.KindConflict, domain.CodeDatesNotAvailable,
				fmt.Sprintf("%s is already booked", day)).
				WithDetail("day", day.String()).
				WithDetail("status", StatusBooked.String())
		}
	}
	target := StatusUnavailable
	if available {
		target = StatusAvailable
	}
	for i := first; i <= last; i++ {
		c.slots[i] = target
	}
	return nil
}

func (c *Calendar) index(day Day) (int, bool) {
	off := int64(day - c.windowStart)
	if off < 0 || off >= int64(len(c.slots)) {
		return 0, false
	}
	return int(off), true
}

func (c *Calendar) bounds(start, end Day) (int, int, error) {
	if start > end {
		return 0, 0, domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
			fmt.Sprintf("start %s is after end %s", start, end))
	}
	first, ok := c.index(start)
	if !ok {
		return 0, 0, c.outOfWindow(start)
	}
	last, ok := c.index(end)
	if !ok {
		return 0, 0, c.outOfWindow(end)
	}
	return first, last, nil
}

func (c *Calendar) outOfWindow(day Day) error {
	return domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
		fmt.Sprintf("%s is outside the bookable window %s..%s", day, c.windowStart, c.WindowEnd())).
		WithDetail("window_start", c.windowStart.String()).
		WithDetail("window_end", c.WindowEnd().String())
}
