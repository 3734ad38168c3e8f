package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// HomeModel is the GORM model for the homes table.
type HomeModel struct {
	Handle     int64        `gorm:"primaryKey;autoIncrement:false"`
	OwnerID    uuid.UUID    `gorm:"type:uuid;index;not null"`
	ContentRef []byte       `gorm:"type:bytea;not null"`
	PriceA     money.Amount `gorm:"type:numeric(78,0);not null"`
	PriceB     money.Amount `gorm:"type:numeric(78,0);not null"`
	AcceptsA   bool         `gorm:"not null"`
	AcceptsB   bool         `gorm:"not null"`
	Free       bool         `gorm:"not null"`
	Active     bool         `gorm:"not null;index"`
	Version    int64        `gorm:"not null;default:1"`
	CreatedAt  time.Time    `gorm:"not null"`
	UpdatedAt  time.Time    `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (HomeModel) TableName() string {
	return "homes"
}

// GormListingRepository is the GORM-based implementation of listing.Repository.
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository.
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// NextHandle returns one past the highest handle in use. Callers serialize
// registration, and the primary key rejects a duplicate that slips through.
func (r *GormListingRepository) NextHandle(ctx context.Context) (int64, error) {
	var next int64
	if err := r.db.WithContext(ctx).Model(&HomeModel{}).
		Select("COALESCE(MAX(handle), 0) + 1").
		Scan(&next).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate home handle: %w", err)
	}
	return next, nil
}

// FindByHandle retrieves a listing by its home handle.
func (r *GormListingRepository) FindByHandle(ctx context.Context, handle int64) (*listing.Listing, error) {
	var model HomeModel
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, homeNotFound(handle)
		}
		return nil, fmt.Errorf("failed to find home by handle: %w", err)
	}
	return toDomainListing(&model)
}

// FindByOwner retrieves the homes registered by an owner with pagination.
func (r *GormListingRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]*listing.Listing, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&HomeModel{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count owner homes: %w", err)
	}

	var models []HomeModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("handle ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find owner homes: %w", err)
	}

	listings := make([]*listing.Listing, len(models))
	for i := range models {
		l, err := toDomainListing(&models[i])
		if err != nil {
			return nil, 0, err
		}
		listings[i] = l
	}
	return listings, total, nil
}

// Save persists a new listing.
func (r *GormListingRepository) Save(ctx context.Context, l *listing.Listing) error {
	model := toHomeModel(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrHomeAlreadyRegistered
		}
		return fmt.Errorf("failed to save home: %w", err)
	}
	return nil
}

// Update persists changes to an existing listing with optimistic locking.
func (r *GormListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	model := toHomeModel(l)

	// The aggregate's version was incremented before Update.
	expectedVersion := l.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&HomeModel{}).
		Where("handle = ? AND version = ?", model.Handle, expectedVersion).
		Updates(map[string]interface{}{
			"content_ref": model.ContentRef,
			"price_a":     model.PriceA,
			"price_b":     model.PriceB,
			"accepts_a":   model.AcceptsA,
			"accepts_b":   model.AcceptsB,
			"free":        model.Free,
			"active":      model.Active,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update home: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("home was modified by another transaction")
	}
	return nil
}

func homeNotFound(handle int64) error {
	return domain.New(domain.KindNotFound, domain.CodeHomeNotFound,
		"home not found: "+strconv.FormatInt(handle, 10))
}

// --- Conversion Helpers ---

func toHomeModel(l *listing.Listing) *HomeModel {
	t := l.Terms()
	ref := t.ContentRef
	return &HomeModel{
		Handle:     l.Handle(),
		OwnerID:    l.OwnerID(),
		ContentRef: ref[:],
		PriceA:     t.PriceA,
		PriceB:     t.PriceB,
		AcceptsA:   t.AcceptsA,
		AcceptsB:   t.AcceptsB,
		Free:       t.Free,
		Active:     l.IsActive(),
		Version:    l.Version(),
		CreatedAt:  l.CreatedAt(),
		UpdatedAt:  l.UpdatedAt(),
	}
}

func toDomainListing(m *HomeModel) (*listing.Listing, error) {
	var ref listing.ContentRef
	if len(m.ContentRef) != len(ref) {
		return nil, fmt.Errorf("home %d has a %d-byte content reference", m.Handle, len(m.ContentRef))
	}
	copy(ref[:], m.ContentRef)

	return listing.Reconstruct(
		m.Handle,
		m.OwnerID,
		listing.Terms{
			ContentRef: ref,
			PriceA:     m.PriceA,
			PriceB:     m.PriceB,
			AcceptsA:   m.AcceptsA,
			AcceptsB:   m.AcceptsB,
			Free:       m.Free,
		},
		m.Active,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
