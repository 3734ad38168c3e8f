package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
)

// ReceiptModel is the GORM model for the receipts table.
type ReceiptModel struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey"`
	HomeHandle int64        `gorm:"index;not null"`
	PayerID    uuid.UUID    `gorm:"type:uuid;index;not null"`
	PayeeID    uuid.UUID    `gorm:"type:uuid;index;not null"`
	StartDay   int64        `gorm:"not null"`
	EndDay     int64        `gorm:"not null"`
	Total      money.Amount `gorm:"type:numeric(78,0);not null"`
	Instrument string       `gorm:"size:16"`
	Free       bool         `gorm:"not null"`
	Active     bool         `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ReceiptModel) TableName() string {
	return "receipts"
}

// GormReceiptRepository is the GORM-based implementation of ReceiptRepository.
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository.
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// Append stores a new receipt.
func (r *GormReceiptRepository) Append(ctx context.Context, rc *bookingDomain.Receipt) error {
	if err := r.db.WithContext(ctx).Create(toReceiptModel(rc)).Error; err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// FindByPayer retrieves the bookings a guest paid for with pagination.
func (r *GormReceiptRepository) FindByPayer(ctx context.Context, payerID uuid.UUID, page, limit int) ([]*bookingDomain.Receipt, int64, error) {
	return r.findBy(ctx, "payer_id = ?", payerID, page, limit)
}

// FindByPayee retrieves the bookings an owner was paid for with pagination.
func (r *GormReceiptRepository) FindByPayee(ctx context.Context, payeeID uuid.UUID, page, limit int) ([]*bookingDomain.Receipt, int64, error) {
	return r.findBy(ctx, "payee_id = ?", payeeID, page, limit)
}

func (r *GormReceiptRepository) findBy(ctx context.Context, cond string, party uuid.UUID, page, limit int) ([]*bookingDomain.Receipt, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&ReceiptModel{}).Where(cond, party).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count receipts: %w", err)
	}

	var models []ReceiptModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where(cond, party).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find receipts: %w", err)
	}

	receipts := make([]*bookingDomain.Receipt, len(models))
	for i := range models {
		receipts[i] = toDomainReceipt(&models[i])
	}
	return receipts, total, nil
}

// --- Conversion Helpers ---

func toReceiptModel(rc *bookingDomain.Receipt) *ReceiptModel {
	return &ReceiptModel{
		ID:         rc.ID(),
		HomeHandle: rc.HomeID(),
		PayerID:    rc.PayerID(),
		PayeeID:    rc.PayeeID(),
		StartDay:   int64(rc.Start()),
		EndDay:     int64(rc.End()),
		Total:      rc.Total(),
		Instrument: rc.Instrument().String(),
		Free:       rc.IsFree(),
		Active:     rc.IsActive(),
		CreatedAt:  rc.CreatedAt(),
	}
}

func toDomainReceipt(m *ReceiptModel) *bookingDomain.Receipt {
	return bookingDomain.ReconstructReceipt(
		m.ID,
		m.HomeHandle,
		m.PayerID,
		m.PayeeID,
		calendar.Day(m.StartDay),
		calendar.Day(m.EndDay),
		m.Total,
		money.Instrument(m.Instrument),
		m.Free,
		m.Active,
		m.CreatedAt,
	)
}
