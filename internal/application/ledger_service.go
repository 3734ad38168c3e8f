package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/domain"
	"github.com/tokenstay/service-stay/internal/settlement"
)

// MintRequest credits tokens to a party.
type MintRequest struct {
	PartyID uuid.UUID    `json:"party_id" binding:"required"`
	Amount  money.Amount `json:"amount" binding:"required"`
}

// ApproveRequest sets how much the booking operator may pull from a party.
type ApproveRequest struct {
	PartyID uuid.UUID    `json:"party_id" binding:"required"`
	Amount  money.Amount `json:"amount"`
}

// VerifyMemberRequest grants or extends a membership. A missing ExpiresAt
// uses the configured membership lifetime.
type VerifyMemberRequest struct {
	PartyID   uuid.UUID  `json:"party_id" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// AccountDTO is a party's position on one instrument.
type AccountDTO struct {
	PartyID         uuid.UUID        `json:"party_id"`
	Instrument      money.Instrument `json:"instrument"`
	Balance         money.Amount     `json:"balance"`
	Allowance       money.Amount     `json:"allowance"`
	MemberUntil     *time.Time       `json:"member_until,omitempty"`
	MembershipValid bool             `json:"membership_valid"`
}

// MembershipDTO is the state of a party's membership.
type MembershipDTO struct {
	PartyID   uuid.UUID `json:"party_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LedgerService administers the in-process token backends.
type LedgerService struct {
	ledgers       map[money.Instrument]*settlement.Ledger
	registry      *settlement.MembershipRegistry
	operator      uuid.UUID
	clock         clock.Clock
	membershipTTL time.Duration
	logger        *zap.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	ledgers map[money.Instrument]*settlement.Ledger,
	registry *settlement.MembershipRegistry,
	operator uuid.UUID,
	clk clock.Clock,
	membershipTTL time.Duration,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		ledgers:       ledgers,
		registry:      registry,
		operator:      operator,
		clock:         clk,
		membershipTTL: membershipTTL,
		logger:        logger,
	}
}

// Mint credits req.Amount on the given instrument.
func (s *LedgerService) Mint(_ context.Context, tag string, req MintRequest) (*AccountDTO, error) {
	l, err := s.ledger(tag)
	if err != nil {
		return nil, err
	}
	if req.PartyID == uuid.Nil {
		return nil, domain.NewValidationError("party_id is required")
	}
	if req.Amount.IsZero() {
		return nil, domain.NewValidationError("amount must be positive")
	}
	l.Mint(req.PartyID, req.Amount)
	return s.account(l, req.PartyID), nil
}

// Approve lets the booking operator pull up to req.Amount from the party.
func (s *LedgerService) Approve(_ context.Context, tag string, req ApproveRequest) (*AccountDTO, error) {
	l, err := s.ledger(tag)
	if err != nil {
		return nil, err
	}
	if req.PartyID == uuid.Nil {
		return nil, domain.NewValidationError("party_id is required")
	}
	l.Approve(req.PartyID, s.operator, req.Amount)
	s.logger.Info("operator allowance set",
		zap.String("instrument", l.Instrument().String()),
		zap.String("party", req.PartyID.String()),
		zap.String("amount", req.Amount.String()),
	)
	return s.account(l, req.PartyID), nil
}

// Account returns a party's balance, operator allowance and membership.
func (s *LedgerService) Account(_ context.Context, tag string, party uuid.UUID) (*AccountDTO, error) {
	l, err := s.ledger(tag)
	if err != nil {
		return nil, err
	}
	return s.account(l, party), nil
}

// VerifyMember grants or extends party's membership.
func (s *LedgerService) VerifyMember(_ context.Context, req VerifyMemberRequest) (*MembershipDTO, error) {
	if req.PartyID == uuid.Nil {
		return nil, domain.NewValidationError("party_id is required")
	}
	until := s.clock.Now().Add(s.membershipTTL)
	if req.ExpiresAt != nil {
		until = req.ExpiresAt.UTC()
	}
	if !until.After(s.clock.Now()) {
		return nil, domain.NewValidationError("expires_at must be in the future")
	}
	s.registry.Verify(req.PartyID, until)
	s.logger.Info("membership verified",
		zap.String("party", req.PartyID.String()),
		zap.Time("expires_at", until),
	)
	return &MembershipDTO{PartyID: req.PartyID, ExpiresAt: until}, nil
}

// RevokeMember withdraws party's membership.
func (s *LedgerService) RevokeMember(_ context.Context, party uuid.UUID, reason string) {
	s.registry.Revoke(party)
	s.logger.Info("membership revoked",
		zap.String("party", party.String()),
		zap.String("reason", reason),
	)
}

func (s *LedgerService) ledger(tag string) (*settlement.Ledger, error) {
	inst, err := money.ParseInstrument(tag)
	if err != nil {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidPaymentMethod, err.Error())
	}
	l, ok := s.ledgers[inst]
	if !ok {
		return nil, domain.NewNotFoundError("ledger", fmt.Sprint(inst))
	}
	return l, nil
}

func (s *LedgerService) account(l *settlement.Ledger, party uuid.UUID) *AccountDTO {
	dto := &AccountDTO{
		PartyID:    party,
		Instrument: l.Instrument(),
		Balance:    l.BalanceOf(party),
		Allowance:  l.Allowance(party, s.operator),
	}
	if until, ok := s.registry.ExpiresAt(party); ok {
		dto.MemberUntil = &until
		dto.MembershipValid = s.registry.Check(party) == nil
	}
	return dto
}
