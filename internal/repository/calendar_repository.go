package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// CalendarModel is the GORM model for the calendars table.
// Statuses holds one byte per day starting at WindowStartDay.
type CalendarModel struct {
	HomeHandle     int64     `gorm:"primaryKey;autoIncrement:false"`
	WindowStartDay int64     `gorm:"not null"`
	Statuses       []byte    `gorm:"type:bytea;not null"`
	Version        int64     `gorm:"not null;default:1"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (CalendarModel) TableName() string {
	return "calendars"
}

// GormCalendarRepository is the GORM-based implementation of calendar.Repository.
type GormCalendarRepository struct {
	db        *gorm.DB
	forUpdate bool
}

// NewGormCalendarRepository creates a repository for reads outside a transaction.
func NewGormCalendarRepository(db *gorm.DB) *GormCalendarRepository {
	return &GormCalendarRepository{db: db}
}

// newLockingCalendarRepository creates a repository whose reads take a row lock.
func newLockingCalendarRepository(tx *gorm.DB) *GormCalendarRepository {
	return &GormCalendarRepository{db: tx, forUpdate: true}
}

// FindByHome loads a home's calendar.
func (r *GormCalendarRepository) FindByHome(ctx context.Context, homeID int64) (*calendar.Calendar, error) {
	q := r.db.WithContext(ctx)
	if r.forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model CalendarModel
	if err := q.Where("home_handle = ?", homeID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, homeNotFound(homeID)
		}
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}
	return toDomainCalendar(&model)
}

// Save persists a new calendar.
func (r *GormCalendarRepository) Save(ctx context.Context, cal *calendar.Calendar) error {
	if err := r.db.WithContext(ctx).Create(toCalendarModel(cal)).Error; err != nil {
		return fmt.Errorf("failed to save calendar: %w", err)
	}
	return nil
}

// Update persists changes with optimistic locking on the version.
func (r *GormCalendarRepository) Update(ctx context.Context, cal *calendar.Calendar) error {
	model := toCalendarModel(cal)

	expectedVersion := cal.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&CalendarModel{}).
		Where("home_handle = ? AND version = ?", model.HomeHandle, expectedVersion).
		Updates(map[string]interface{}{
			"window_start_day": model.WindowStartDay,
			"statuses":         model.Statuses,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update calendar: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("calendar was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toCalendarModel(cal *calendar.Calendar) *CalendarModel {
	slots := cal.Slots()
	statuses := make([]byte, len(slots))
	for i, s := range slots {
		statuses[i] = byte(s)
	}
	return &CalendarModel{
		HomeHandle:     cal.HomeID(),
		WindowStartDay: int64(cal.WindowStart()),
		Statuses:       statuses,
		Version:        cal.Version(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func toDomainCalendar(m *CalendarModel) (*calendar.Calendar, error) {
	slots := make([]calendar.Status, len(m.Statuses))
	for i, b := range m.Statuses {
		s := calendar.Status(b)
		if !s.IsValid() {
			return nil, fmt.Errorf("calendar %d has invalid status %d at slot %d", m.HomeHandle, b, i)
		}
		slots[i] = s
	}
	return calendar.Reconstruct(m.HomeHandle, calendar.Day(m.WindowStartDay), slots, m.Version), nil
}
