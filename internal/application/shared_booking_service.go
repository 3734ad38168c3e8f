package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/contracts"
	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/domain/settlement"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// InitiateSharedRequest holds the data needed to open a shared booking.
type InitiateSharedRequest struct {
	Start       calendar.Day `json:"start" binding:"required"`
	End         calendar.Day `json:"end" binding:"required"`
	TotalShares int          `json:"total_shares" binding:"required"`
	Instrument  string       `json:"instrument" binding:"required"`
}

// PoolDTO is the response representation of a shared booking.
type PoolDTO struct {
	ID              string           `json:"id"`
	HomeID          int64            `json:"home_id"`
	OwnerID         uuid.UUID        `json:"owner_id"`
	InitiatorID     uuid.UUID        `json:"initiator_id"`
	Start           calendar.Day     `json:"start"`
	End             calendar.Day     `json:"end"`
	Instrument      money.Instrument `json:"instrument"`
	TotalShares     int              `json:"total_shares"`
	SharesRemaining int              `json:"shares_remaining"`
	TotalAmount     money.Amount     `json:"total_amount"`
	RemainingAmount money.Amount     `json:"remaining_amount"`
	PricePerShare   money.Amount     `json:"price_per_share"`
	Status          string           `json:"status"`
	Participants    []uuid.UUID      `json:"participants"`
	FinalizedAt     *time.Time       `json:"finalized_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SharedBookingService runs shared bookings: several parties each pay one
// share directly to the owner, and the dates are booked once the last share sells.
type SharedBookingService struct {
	tx      uow.Transactor
	locker  lock.Locker
	gateway settlement.Gateway
	pricing bookingDomain.PricingStrategy
	clock   clock.Clock
	events  eventEmitter
	logger  *zap.Logger
}

// NewSharedBookingService creates a new SharedBookingService.
func NewSharedBookingService(
	tx uow.Transactor,
	locker lock.Locker,
	gateway settlement.Gateway,
	pricing bookingDomain.PricingStrategy,
	clk clock.Clock,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *SharedBookingService {
	return &SharedBookingService{
		tx:      tx,
		locker:  locker,
		gateway: gateway,
		pricing: pricing,
		clock:   clk,
		events:  newEventEmitter(publisher, topic, logger),
		logger:  logger,
	}
}

// Initiate opens a pool for [start, end] and buys the first share for the initiator.
// The calendar is checked but not committed.
func (s *SharedBookingService) Initiate(ctx context.Context, initiatorID uuid.UUID, homeID int64, req InitiateSharedRequest) (*PoolDTO, error) {
	now := s.clock.Now()
	today := calendar.DayOf(now)

	if req.Start >= req.End {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
			"a shared booking must end after it starts")
	}
	if req.Start <= today {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
			fmt.Sprintf("start %s must be after today %s", req.Start, today))
	}
	if req.TotalShares < bookingDomain.MinShares {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidShareCount,
			fmt.Sprintf("a shared booking needs at least %d shares", bookingDomain.MinShares))
	}

	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	var (
		pool    *bookingDomain.Pool
		settled bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		l, err := loadListedHome(ctx, st, homeID)
		if err != nil {
			return err
		}
		if l.IsFree() {
			return domain.New(domain.KindValidation, domain.CodeInvalidPaymentMethod,
				"free homes cannot be booked in shares")
		}
		inst, price, err := pricePerDay(l, req.Instrument)
		if err != nil {
			return err
		}

		cal, err := st.Calendars().FindByHome(ctx, homeID)
		if err != nil {
			return err
		}
		cal.Advance(today)
		if err := cal.CheckRange(req.Start, req.End); err != nil {
			return err
		}

		total, err := s.pricing.Calculate(bookingDomain.PricingParams{
			PricePerDay: price,
			Start:       req.Start,
			End:         req.End,
		})
		if err != nil {
			return err
		}

		pool, err = bookingDomain.NewPool(bookingDomain.NewPoolID(homeID, now, initiatorID), initiatorID, bookingDomain.PoolTerms{
			HomeID:      homeID,
			OwnerID:     l.OwnerID(),
			Start:       req.Start,
			End:         req.End,
			TotalShares: req.TotalShares,
			Instrument:  inst,
			TotalAmount: total,
		}, now)
		if err != nil {
			return err
		}

		if err := s.gateway.Transfer(ctx, initiatorID, pool.OwnerID(), pool.PricePerShare(), inst); err != nil {
			return transferFailed(err, pool.PricePerShare(), inst)
		}
		settled = true
		if _, err := pool.RecordShare(initiatorID, now); err != nil {
			return err
		}
		return st.Pools().Save(ctx, pool)
	})
	if err != nil {
		if settled {
			s.logger.Error("initiator share settled but pool could not be recorded",
				zap.Int64("home_id", homeID),
				zap.String("payer", initiatorID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("shared booking initiated",
		zap.String("pool_id", pool.ID()),
		zap.Int64("home_id", homeID),
		zap.String("payer", initiatorID.String()),
		zap.Int("total_shares", pool.TotalShares()),
		zap.String("amount", pool.PricePerShare().String()),
		zap.String("instrument", pool.Instrument().String()),
	)
	s.events.publish(ctx, contracts.SharedInitiated, poolSubject(pool.ID()), contracts.SharedInitiatedEvent{
		PoolID:        pool.ID(),
		HomeID:        homeID,
		InitiatorID:   initiatorID,
		Start:         pool.Start(),
		End:           pool.End(),
		TotalShares:   pool.TotalShares(),
		TotalAmount:   pool.TotalAmount(),
		PricePerShare: pool.PricePerShare(),
		Instrument:    pool.Instrument(),
		OccurredAt:    now,
	})
	s.publishSharePurchased(ctx, pool, initiatorID, now)

	dto := toPoolDTO(pool)
	return &dto, nil
}

// BuyShare sells one share of a pool to buyer. The purchase that sells the
// last share finalizes the pool and books its dates.
func (s *SharedBookingService) BuyShare(ctx context.Context, buyerID uuid.UUID, poolID string) (*PoolDTO, error) {
	existing, err := s.tx.Reader().Pools().FindByID(ctx, poolID)
	if err != nil {
		if domain.IsCode(err, domain.CodePoolNotFound) {
			return nil, domain.ErrBookingNotActive.WithDetail("pool_id", poolID)
		}
		return nil, err
	}
	homeID := existing.HomeID()

	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	now := s.clock.Now()
	var (
		pool      *bookingDomain.Pool
		finalized bool
		settled   bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		p, err := st.Pools().FindByID(ctx, poolID)
		if err != nil {
			return err
		}
		if err := p.CanBuy(buyerID); err != nil {
			return err
		}

		cal, err := st.Calendars().FindByHome(ctx, homeID)
		if err != nil {
			return err
		}
		cal.Advance(calendar.DayOf(now))
		if err := cal.CheckRange(p.Start(), p.End()); err != nil {
			return err
		}

		if err := s.gateway.Transfer(ctx, buyerID, p.OwnerID(), p.PricePerShare(), p.Instrument()); err != nil {
			return transferFailed(err, p.PricePerShare(), p.Instrument())
		}
		settled = true

		finalized, err = p.RecordShare(buyerID, now)
		if err != nil {
			return err
		}
		if finalized {
			if err := cal.CommitBooked(p.Start(), p.End()); err != nil {
				return err
			}
			cal.IncrementVersion()
			if err := st.Calendars().Update(ctx, cal); err != nil {
				return err
			}
		}
		p.IncrementVersion()
		if err := st.Pools().Update(ctx, p); err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		if settled {
			s.logger.Error("share settled but could not be recorded",
				zap.String("pool_id", poolID),
				zap.String("payer", buyerID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("share purchased",
		zap.String("pool_id", poolID),
		zap.Int64("home_id", homeID),
		zap.String("payer", buyerID.String()),
		zap.String("amount", pool.PricePerShare().String()),
		zap.Int("shares_remaining", pool.SharesRemaining()),
	)
	s.publishSharePurchased(ctx, pool, buyerID, now)

	if finalized {
		s.logger.Info("shared booking finalized",
			zap.String("pool_id", poolID),
			zap.Int64("home_id", homeID),
			zap.String("uncollected", pool.RemainingAmount().String()),
		)
		s.events.publish(ctx, contracts.SharedFinalized, poolSubject(poolID), contracts.SharedFinalizedEvent{
			PoolID:       poolID,
			HomeID:       homeID,
			Start:        pool.Start(),
			End:          pool.End(),
			Participants: pool.Participants(),
			Uncollected:  pool.RemainingAmount(),
			OccurredAt:   now,
		})
	}

	dto := toPoolDTO(pool)
	return &dto, nil
}

// GetPool retrieves a shared booking with its participants.
func (s *SharedBookingService) GetPool(ctx context.Context, poolID string) (*PoolDTO, error) {
	p, err := s.tx.Reader().Pools().FindByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	dto := toPoolDTO(p)
	return &dto, nil
}

// --- Helpers ---

func (s *SharedBookingService) publishSharePurchased(ctx context.Context, p *bookingDomain.Pool, buyerID uuid.UUID, at time.Time) {
	s.events.publish(ctx, contracts.SharedSharePurchased, poolSubject(p.ID()), contracts.SharedSharePurchasedEvent{
		PoolID:          p.ID(),
		HomeID:          p.HomeID(),
		BuyerID:         buyerID,
		Amount:          p.PricePerShare(),
		SharesRemaining: p.SharesRemaining(),
		OccurredAt:      at,
	})
}

func poolSubject(poolID string) string {
	return "shared/" + poolID
}

func toPoolDTO(p *bookingDomain.Pool) PoolDTO {
	return PoolDTO{
		ID:              p.ID(),
		HomeID:          p.HomeID(),
		OwnerID:         p.OwnerID(),
		InitiatorID:     p.InitiatorID(),
		Start:           p.Start(),
		End:             p.End(),
		Instrument:      p.Instrument(),
		TotalShares:     p.TotalShares(),
		SharesRemaining: p.SharesRemaining(),
		TotalAmount:     p.TotalAmount(),
		RemainingAmount: p.RemainingAmount(),
		PricePerShare:   p.PricePerShare(),
		Status:          p.Status().String(),
		Participants:    p.Participants(),
		FinalizedAt:     p.FinalizedAt(),
		CreatedAt:       p.CreatedAt(),
		UpdatedAt:       p.UpdatedAt(),
	}
}
