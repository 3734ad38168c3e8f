package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/uow"
)

type gormStore struct {
	listings  *GormListingRepository
	calendars *GormCalendarRepository
	receipts  *GormReceiptRepository
	pools     *GormPoolRepository
}

func (s *gormStore) Listings() listing.Repository              { return s.listings }
func (s *gormStore) Calendars() calendar.Repository            { return s.calendars }
func (s *gormStore) Receipts() bookingDomain.ReceiptRepository { return s.receipts }
func (s *gormStore) Pools() bookingDomain.PoolRepository       { return s.pools }

// GormUnitOfWork runs each unit inside a database transaction. Calendar and
// pool reads inside the transaction lock their rows until commit.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// WithinTx runs fn in a transaction that commits only if fn returns nil.
func (u *GormUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, s uow.Store) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := &gormStore{
			listings:  NewGormListingRepository(tx),
			calendars: newLockingCalendarRepository(tx),
			receipts:  NewGormReceiptRepository(tx),
			pools:     newLockingPoolRepository(tx),
		}
		return fn(ctx, store)
	})
}

// Reader returns repositories bound to the pool without row locks.
func (u *GormUnitOfWork) Reader() uow.Store {
	return &gormStore{
		listings:  NewGormListingRepository(u.db),
		calendars: NewGormCalendarRepository(u.db),
		receipts:  NewGormReceiptRepository(u.db),
		pools:     NewGormPoolRepository(u.db),
	}
}

// Ping checks the database connection.
func (u *GormUnitOfWork) Ping(ctx context.Context) error {
	sqlDB, err := u.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates every table this package persists to.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&HomeModel{},
		&CalendarModel{},
		&ReceiptModel{},
		&SharedPoolModel{},
		&SharedParticipantModel{},
	)
}
