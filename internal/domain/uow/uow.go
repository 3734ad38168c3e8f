// Package uow scopes the repositories of one booking transaction.
package uow

import (
	"context"

	"github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/listing"
)

// Store exposes repositories bound to a single transaction.
type Store interface {
	Listings() listing.Repository
	Calendars() calendar.Repository
	Receipts() booking.ReceiptRepository
	Pools() booking.PoolRepository
}

// Transactor runs fn inside a transaction. Changes made through the Store are
// committed when fn returns nil and discarded otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	// Reader returns repositories for reads outside any transaction.
	Reader() Store

	Ping(ctx context.Context) error
}
