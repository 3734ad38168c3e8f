package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// SharedPoolModel is the GORM model for the shared_pools table.
type SharedPoolModel struct {
	ID              string       `gorm:"primaryKey;size:64"`
	HomeHandle      int64        `gorm:"index;not null"`
	OwnerID         uuid.UUID    `gorm:"type:uuid;not null"`
	InitiatorID     uuid.UUID    `gorm:"type:uuid;index;not null"`
	Instrument      string       `gorm:"size:16;not null"`
	StartDay        int64        `gorm:"not null"`
	EndDay          int64        `gorm:"not null"`
	TotalShares     int          `gorm:"not null"`
	SharesRemaining int          `gorm:"not null"`
	TotalAmount     money.Amount `gorm:"type:numeric(78,0);not null"`
	RemainingAmount money.Amount `gorm:"type:numeric(78,0);not null"`
	PricePerShare   money.Amount `gorm:"type:numeric(78,0);not null"`
	Status          string       `gorm:"size:20;not null;index"`
	FinalizedAt     *time.Time   `gorm:""`
	Version         int64        `gorm:"not null;default:1"`
	CreatedAt       time.Time    `gorm:"not null"`
	UpdatedAt       time.Time    `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (SharedPoolModel) TableName() string {
	return "shared_pools"
}

// SharedParticipantModel is one share holder of a pool. Seq keeps purchase order.
type SharedParticipantModel struct {
	PoolID        string    `gorm:"primaryKey;size:64"`
	ParticipantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq           int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (SharedParticipantModel) TableName() string {
	return "shared_participants"
}

// GormPoolRepository is the GORM-based implementation of PoolRepository.
type GormPoolRepository struct {
	db        *gorm.DB
	forUpdate bool
}

// NewGormPoolRepository creates a repository for reads outside a transaction.
func NewGormPoolRepository(db *gorm.DB) *GormPoolRepository {
	return &GormPoolRepository{db: db}
}

func newLockingPoolRepository(tx *gorm.DB) *GormPoolRepository {
	return &GormPoolRepository{db: tx, forUpdate: true}
}

// FindByID retrieves a pool and its participants.
func (r *GormPoolRepository) FindByID(ctx context.Context, id string) (*bookingDomain.Pool, error) {
	q := r.db.WithContext(ctx)
	if r.forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model SharedPoolModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.New(domain.KindNotFound, domain.CodePoolNotFound, "shared booking not found: "+id)
		}
		return nil, fmt.Errorf("failed to find shared pool: %w", err)
	}

	var participants []SharedParticipantModel
	if err := r.db.WithContext(ctx).
		Where("pool_id = ?", id).
		Order("seq ASC").
		Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to load pool participants: %w", err)
	}

	return toDomainPool(&model, participants)
}

// Save persists a new pool with any participants it already has.
func (r *GormPoolRepository) Save(ctx context.Context, p *bookingDomain.Pool) error {
	if err := r.db.WithContext(ctx).Create(toPoolModel(p)).Error; err != nil {
		return fmt.Errorf("failed to save shared pool: %w", err)
	}
	return r.insertParticipants(ctx, p, 0)
}

// Update persists counters and status with optimistic locking and appends new participants.
func (r *GormPoolRepository) Update(ctx context.Context, p *bookingDomain.Pool) error {
	model := toPoolModel(p)

	expectedVersion := p.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&SharedPoolModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"shares_remaining": model.SharesRemaining,
			"remaining_amount": model.RemainingAmount,
			"status":           model.Status,
			"finalized_at":     model.FinalizedAt,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update shared pool: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("shared pool was modified by another transaction")
	}

	var stored int64
	if err := r.db.WithContext(ctx).Model(&SharedParticipantModel{}).
		Where("pool_id = ?", model.ID).
		Count(&stored).Error; err != nil {
		return fmt.Errorf("failed to count pool participants: %w", err)
	}
	return r.insertParticipants(ctx, p, int(stored))
}

func (r *GormPoolRepository) insertParticipants(ctx context.Context, p *bookingDomain.Pool, from int) error {
	participants := p.Participants()
	if from >= len(participants) {
		return nil
	}
	rows := make([]SharedParticipantModel, 0, len(participants)-from)
	for i := from; i < len(participants); i++ {
		rows = append(rows, SharedParticipantModel{
			PoolID:        p.ID(),
			ParticipantID: participants[i],
			Seq:           i,
			CreatedAt:     p.UpdatedAt(),
		})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyParticipating
		}
		return fmt.Errorf("failed to save pool participants: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toPoolModel(p *bookingDomain.Pool) *SharedPoolModel {
	return &SharedPoolModel{
		ID:              p.ID(),
		HomeHandle:      p.HomeID(),
		OwnerID:         p.OwnerID(),
		InitiatorID:     p.InitiatorID(),
		Instrument:      p.Instrument().String(),
		StartDay:        int64(p.Start()),
		EndDay:          int64(p.End()),
		TotalShares:     p.TotalShares(),
		SharesRemaining: p.SharesRemaining(),
		TotalAmount:     p.TotalAmount(),
		RemainingAmount: p.RemainingAmount(),
		PricePerShare:   p.PricePerShare(),
		Status:          p.Status().String(),
		FinalizedAt:     p.FinalizedAt(),
		Version:         p.Version(),
		CreatedAt:       p.CreatedAt(),
		UpdatedAt:       p.UpdatedAt(),
	}
}

func toDomainPool(m *SharedPoolModel, rows []SharedParticipantModel) (*bookingDomain.Pool, error) {
	status, err := bookingDomain.ParsePoolStatus(m.Status)
	if err != nil {
		return nil, err
	}
	inst, err := money.ParseInstrument(m.Instrument)
	if err != nil {
		return nil, err
	}
	participants := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		participants[i] = row.ParticipantID
	}

	return bookingDomain.ReconstructPool(
		m.ID,
		m.HomeHandle,
		m.OwnerID,
		m.InitiatorID,
		inst,
		calendar.Day(m.StartDay),
		calendar.Day(m.EndDay),
		m.TotalShares,
		m.SharesRemaining,
		m.TotalAmount,
		m.RemainingAmount,
		m.PricePerShare,
		status,
		participants,
		m.FinalizedAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
