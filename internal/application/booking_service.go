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
	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/domain/settlement"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// BookRequest holds the data needed to book a home for an inclusive day range.
// Instrument may be omitted for free homes.
type BookRequest struct {
	Start      calendar.Day `json:"start" binding:"required"`
	End        calendar.Day `json:"end" binding:"required"`
	Instrument string       `json:"instrument"`
}

// ReceiptDTO is the response representation of a confirmed booking.
type ReceiptDTO struct {
	ID         uuid.UUID        `json:"id"`
	HomeID     int64            `json:"home_id"`
	PayerID    uuid.UUID        `json:"payer_id"`
	PayeeID    uuid.UUID        `json:"payee_id"`
	Start      calendar.Day     `json:"start"`
	End        calendar.Day     `json:"end"`
	Days       int64            `json:"days"`
	Total      money.Amount     `json:"total"`
	Instrument money.Instrument `json:"instrument,omitempty"`
	Free       bool             `json:"free"`
	Active     bool             `json:"active"`
	CreatedAt  time.Time        `json:"created_at"`
}

// BookingService is the application service for single-party bookings.
type BookingService struct {
	tx      uow.Transactor
	locker  lock.Locker
	gateway settlement.Gateway
	pricing bookingDomain.PricingStrategy
	clock   clock.Clock
	events  eventEmitter
	logger  *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	tx uow.Transactor,
	locker lock.Locker,
	gateway settlement.Gateway,
	pricing bookingDomain.PricingStrategy,
	clk clock.Clock,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:      tx,
		locker:  locker,
		gateway: gateway,
		pricing: pricing,
		clock:   clk,
		events:  newEventEmitter(publisher, topic, logger),
		logger:  logger,
	}
}

// Book reserves [start, end] on a home for payer.
//
// The range check, the transfer and the calendar commit run while holding the
// home's lock inside one transaction, in that order: funds only move for dates
// that were Available, and the calendar is untouched when the transfer fails.
func (s *BookingService) Book(ctx context.Context, payerID uuid.UUID, homeID int64, req BookRequest) (*ReceiptDTO, error) {
	if req.Start > req.End {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
			fmt.Sprintf("start %s is after end %s", req.Start, req.End))
	}

	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	now := s.clock.Now()
	var (
		receipt *bookingDomain.Receipt
		settled bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		l, err := loadListedHome(ctx, st, homeID)
		if err != nil {
			return err
		}

		var (
			inst  money.Instrument
			price money.Amount
		)
		if !l.IsFree() {
			inst, price, err = pricePerDay(l, req.Instrument)
			if err != nil {
				return err
			}
		}

		cal, err := st.Calendars().FindByHome(ctx, homeID)
		if err != nil {
			return err
		}
		cal.Advance(calendar.DayOf(now))
		if err := cal.CheckRange(req.Start, req.End); err != nil {
			return err
		}

		total := money.Zero
		if !l.IsFree() {
			total, err = s.pricing.Calculate(bookingDomain.PricingParams{
				PricePerDay: price,
				Start:       req.Start,
				End:         req.End,
			})
			if err != nil {
				return err
			}
			if err := s.gateway.Transfer(ctx, payerID, l.OwnerID(), total, inst); err != nil {
				return transferFailed(err, total, inst)
			}
			settled = true
		}

		if err := cal.CommitBooked(req.Start, req.End); err != nil {
			return err
		}
		cal.IncrementVersion()
		if err := st.Calendars().Update(ctx, cal); err != nil {
			return err
		}

		receipt, err = bookingDomain.NewReceipt(homeID, payerID, l.OwnerID(), req.Start, req.End, total, inst, l.IsFree(), now)
		if err != nil {
			return err
		}
		return st.Receipts().Append(ctx, receipt)
	})
	if err != nil {
		if settled {
			s.logger.Error("booking settled but could not be recorded",
				zap.Int64("home_id", homeID),
				zap.String("payer", payerID.String()),
				zap.String("start", req.Start.String()),
				zap.String("end", req.End.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("booking confirmed",
		zap.String("receipt_id", receipt.ID().String()),
		zap.Int64("home_id", homeID),
		zap.String("payer", payerID.String()),
		zap.String("amount", receipt.Total().String()),
		zap.String("instrument", receipt.Instrument().String()),
	)
	s.events.publish(ctx, contracts.BookingConfirmed, homeSubject(homeID), contracts.BookingConfirmedEvent{
		ReceiptID:  receipt.ID(),
		HomeID:     homeID,
		PayerID:    payerID,
		PayeeID:    receipt.PayeeID(),
		Start:      receipt.Start(),
		End:        receipt.End(),
		Total:      receipt.Total(),
		Instrument: receipt.Instrument(),
		OccurredAt: now,
	})

	dto := toReceiptDTO(receipt)
	return &dto, nil
}

// GetPayerBookings retrieves the bookings a guest paid for.
func (s *BookingService) GetPayerBookings(ctx context.Context, payerID uuid.UUID, page, limit int) ([]ReceiptDTO, int64, error) {
	receipts, total, err := s.tx.Reader().Receipts().FindByPayer(ctx, payerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toReceiptDTOs(receipts), total, nil
}

// GetPayeeBookings retrieves the bookings an owner received.
func (s *BookingService) GetPayeeBookings(ctx context.Context, payeeID uuid.UUID, page, limit int) ([]ReceiptDTO, int64, error) {
	receipts, total, err := s.tx.Reader().Receipts().FindByPayee(ctx, payeeID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toReceiptDTOs(receipts), total, nil
}

// --- Helpers ---

// loadListedHome returns the listing of a home that exists and is listed.
func loadListedHome(ctx context.Context, st uow.Store, homeID int64) (*listing.Listing, error) {
	l, err := st.Listings().FindByHandle(ctx, homeID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive() {
		return nil, domain.ErrHomeNotListed.WithDetail("home_id", homeID)
	}
	return l, nil
}

// pricePerDay resolves the instrument tag against what the listing accepts.
func pricePerDay(l *listing.Listing, tag string) (money.Instrument, money.Amount, error) {
	inst, err := money.ParseInstrument(tag)
	if err != nil {
		return "", money.Zero, domain.New(domain.KindValidation, domain.CodeInvalidPaymentMethod, err.Error())
	}
	price, err := l.PricePerDay(inst)
	if err != nil {
		return "", money.Zero, domain.New(domain.KindValidation, domain.CodeInvalidPaymentMethod,
			fmt.Sprintf("home %d does not accept %s", l.Handle(), inst))
	}
	return inst, price, nil
}

func transferFailed(err error, amount money.Amount, inst money.Instrument) error {
	return domain.Wrap(domain.KindCollaborator, domain.CodeTokenTransferFailed, "token transfer failed", err).
		WithDetail("instrument", inst.String()).
		WithDetail("amount", amount.String())
}

func toReceiptDTO(r *bookingDomain.Receipt) ReceiptDTO {
	return ReceiptDTO{
		ID:         r.ID(),
		HomeID:     r.HomeID(),
		PayerID:    r.PayerID(),
		PayeeID:    r.PayeeID(),
		Start:      r.Start(),
		End:        r.End(),
		Days:       r.Days(),
		Total:      r.Total(),
		Instrument: r.Instrument(),
		Free:       r.IsFree(),
		Active:     r.IsActive(),
		CreatedAt:  r.CreatedAt(),
	}
}

func toReceiptDTOs(receipts []*bookingDomain.Receipt) []ReceiptDTO {
	dtos := make([]ReceiptDTO, len(receipts))
	for i, r := range receipts {
		dtos[i] = toReceiptDTO(r)
	}
	return dtos
}
