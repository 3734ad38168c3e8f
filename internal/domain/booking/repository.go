package booking

import (
	"context"

	"github.com/google/uuid"
)

// ReceiptRepository defines the persistence contract for single-booking receipts.
type ReceiptRepository interface {
	// Append stores a new receipt. Receipts are never updated or removed.
	Append(ctx context.Context, r *Receipt) error

	// FindByPayer retrieves the bookings a guest paid for with pagination.
	FindByPayer(ctx context.Context, payerID uuid.UUID, page, limit int) ([]*Receipt, int64, error)

	// FindByPayee retrieves the bookings an owner was paid for with pagination.
	FindByPayee(ctx context.Context, payeeID uuid.UUID, page, limit int) ([]*Receipt, int64, error)
}

// PoolRepository defines the persistence contract for shared booking pools.
type PoolRepository interface {
	// FindByID retrieves a pool by its request identifier.
	FindByID(ctx context.Context, id string) (*Pool, error)

	// Save persists a new pool.
	Save(ctx context.Context, p *Pool) error

	// Update persists changes to an existing pool with optimistic locking.
	Update(ctx context.Context, p *Pool) error
}
