package listing

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for listings.
type Repository interface {
	// NextHandle allocates the next monotonically increasing home handle.
	NextHandle(ctx context.Context) (int64, error)

	// FindByHandle retrieves a listing by its home handle.
	FindByHandle(ctx context.Context, handle int64) (*Listing, error)

	// FindByOwner retrieves the homes registered by an owner with pagination.
	FindByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]*Listing, int64, error)

	// Save persists a new listing.
	Save(ctx context.Context, l *Listing) error

	// Update persists changes to an existing listing with optimistic locking.
	Update(ctx context.Context, l *Listing) error
}
