package booking

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// MinShares is the smallest pool size; a single-share pool is a plain booking.
const MinShares = 2

// poolIDKey domain-separates pool identifiers from any other BLAKE3 use.
var poolIDKey = [32]byte{'t', 'o', 'k', 'e', 'n', 's', 't', 'a', 'y', '.', 's', 'h', 'a', 'r', 'e', 'd', '.', 'p', 'o', 'o', 'l', '.', 'v', '1'}

// NewPoolID derives the request identifier for a pool from the home, the
// initiation time, and the initiator.
func NewPoolID(homeID int64, at time.Time, initiator uuid.UUID) string {
	hasher, err := blake3.NewKeyed(poolIDKey[:])
	if err != nil {
		panic("booking: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(homeID))
	binary.BigEndian.PutUint64(buf[8:], uint64(at.UnixNano()))
	hasher.Write(buf[:])
	hasher.Write(initiator[:])
	return hex.EncodeToString(hasher.Sum(nil))
}

// PoolTerms are the fixed parameters a pool is opened with.
type PoolTerms struct {
	HomeID      int64
	OwnerID     uuid.UUID
	Start       calendar.Day
	End         calendar.Day
	TotalShares int
	Instrument  money.Instrument
	TotalAmount money.Amount
}

// Pool is the aggregate root for a shared booking: several parties each buy
// one share of a reservation that is committed to the calendar once sold out.
type Pool struct {
	id              string
	homeID          int64
	ownerID         uuid.UUID
	initiatorID     uuid.UUID
	instrument      money.Instrument
	start           calendar.Day
	end             calendar.Day
	totalShares     int
	sharesRemaining int
	totalAmount     money.Amount
	remainingAmount money.Amount
	pricePerShare   money.Amount
	status          PoolStatus
	participants    []uuid.UUID

	finalizedAt *time.Time
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewPool opens an Active pool with no participants yet.
func NewPool(id string, initiator uuid.UUID, terms PoolTerms, now time.Time) (*Pool, error) {
	if id == "" {
		return nil, domain.NewValidationError("pool ID is required")
	}
	if initiator == uuid.Nil {
		return nil, domain.NewValidationError("initiator ID is required")
	}
	if terms.Start >= terms.End {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidDateRange,
			"a shared booking must span at least two days")
	}
	perShare, _, err := SharePrice(terms.TotalAmount, terms.TotalShares)
	if err != nil {
		return nil, err
	}
	if perShare.IsZero() {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidShareCount,
			fmt.Sprintf("%s split %d ways leaves nothing per share", terms.TotalAmount, terms.TotalShares))
	}

	now = now.UTC()
	p := &Pool{
		id:              id,
		homeID:          terms.HomeID,
		ownerID:         terms.OwnerID,
		initiatorID:     initiator,
		instrument:      terms.Instrument,
		start:           terms.Start,
		end:             terms.End,
		totalShares:     terms.TotalShares,
		sharesRemaining: terms.TotalShares,
		totalAmount:     terms.TotalAmount,
		remainingAmount: terms.TotalAmount,
		pricePerShare:   perShare,
		status:          StatusUninitiated,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}
	if err := p.transition(StatusActive); err != nil {
		return nil, err
	}
	return p, nil
}

// ReconstructPool rebuilds a Pool from persistence data (no validation).
func ReconstructPool(
	id string,
	homeID int64,
	ownerID, initiatorID uuid.UUID,
	instrument money.Instrument,
	start, end calendar.Day,
	totalShares, sharesRemaining int,
	totalAmount, remainingAmount, pricePerShare money.Amount,
	status PoolStatus,
	participants []uuid.UUID,
	finalizedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Pool {
	ps := make([]uuid.UUID, len(participants))
	copy(ps, participants)
	return &Pool{
		id:              id,
		homeID:          homeID,
		ownerID:         ownerID,
		initiatorID:     initiatorID,
		instrument:      instrument,
		start:           start,
		end:             end,
		totalShares:     totalShares,
		sharesRemaining: sharesRemaining,
		totalAmount:     totalAmount,
		remainingAmount: remainingAmount,
		pricePerShare:   pricePerShare,
		status:          status,
		participants:    ps,
		finalizedAt:     finalizedAt,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

func (p *Pool) ID() string                    { return p.id }
func (p *Pool) HomeID() int64                 { return p.homeID }
func (p *Pool) OwnerID() uuid.UUID            { return p.ownerID }
func (p *Pool) InitiatorID() uuid.UUID        { return p.initiatorID }
func (p *Pool) Instrument() money.Instrument  { return p.instrument }
func (p *Pool) Start() calendar.Day           { return p.start }
func (p *Pool) End() calendar.Day             { return p.end }
func (p *Pool) TotalShares() int              { return p.totalShares }
func (p *Pool) SharesRemaining() int          { return p.sharesRemaining }
func (p *Pool) TotalAmount() money.Amount     { return p.totalAmount }
func (p *Pool) RemainingAmount() money.Amount { return p.remainingAmount }
func (p *Pool) PricePerShare() money.Amount   { return p.pricePerShare }
func (p *Pool) Status() PoolStatus            { return p.status }
func (p *Pool) FinalizedAt() *time.Time       { return p.finalizedAt }
func (p *Pool) Version() int64                { return p.version }
func (p *Pool) CreatedAt() time.Time          { return p.createdAt }
func (p *Pool) UpdatedAt() time.Time          { return p.updatedAt }

// Participants returns the buyers in purchase order.
func (p *Pool) Participants() []uuid.UUID {
	ps := make([]uuid.UUID, len(p.participants))
	copy(ps, p.participants)
	return ps
}

// SharesOf returns how many shares party holds (0 or 1).
func (p *Pool) SharesOf(party uuid.UUID) int {
	for _, id := range p.participants {
		if id == party {
			return 1
		}
	}
	return 0
}

// Clone returns an independent copy.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.participants = p.Participants()
	if p.finalizedAt != nil {
		t := *p.finalizedAt
		cp.finalizedAt = &t
	}
	return &cp
}

// --- Behavior ---

// CanBuy reports why buyer may not purchase a share, or nil if they may.
// Only an Active pool sells shares. A sold-out pool answers NoSharesAvailable
// even though it is also finalized.
func (p *Pool) CanBuy(buyer uuid.UUID) error {
	if p.status == StatusUninitiated {
		return domain.ErrBookingNotActive
	}
	if p.sharesRemaining == 0 {
		return domain.ErrNoSharesAvailable
	}
	if p.status.IsTerminal() {
		return domain.ErrBookingNotActive
	}
	if p.SharesOf(buyer) > 0 {
		return domain.ErrAlreadyParticipating
	}
	return nil
}

// RecordShare books one share for buyer after the price was settled.
// It reports whether this purchase finalized the pool.
func (p *Pool) RecordShare(buyer uuid.UUID, now time.Time) (bool, error) {
	if err := p.CanBuy(buyer); err != nil {
		return false, err
	}
	remaining, err := p.remainingAmount.Sub(p.pricePerShare)
	if err != nil {
		return false, domain.Wrap(domain.KindInternal, domain.CodeInternal, "pool amount underflow", err)
	}
	now = now.UTC()
	p.remainingAmount = remaining
	p.sharesRemaining--
	p.participants = append(p.participants, buyer)
	p.updatedAt = now

	if p.sharesRemaining > 0 {
		return false, nil
	}
	if err := p.transition(StatusFinalized); err != nil {
		return false, err
	}
	p.finalizedAt = &now
	return true, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Pool) IncrementVersion() {
	p.version++
}

func (p *Pool) transition(target PoolStatus) error {
	if !p.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(p.status), string(target))
	}
	p.status = target
	return nil
}
