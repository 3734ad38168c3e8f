package calendar

import "context"

// Repository defines the persistence contract for calendars.
type Repository interface {
	// FindByHome loads a home's calendar. Inside a transaction the row is locked for update.
	FindByHome(ctx context.Context, homeID int64) (*Calendar, error)

	// Save persists a new calendar.
	Save(ctx context.Context, cal *Calendar) error

	// Update persists changes with optimistic locking on the version.
	Update(ctx context.Context, cal *Calendar) error
}
