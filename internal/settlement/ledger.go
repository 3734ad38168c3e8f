// Package settlement implements the token backends behind the settlement gateway.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/domain/money"
	dsettlement "github.com/tokenstay/service-stay/internal/domain/settlement"
)

// Token is a fungible token with pull-style transfers: spender moves funds
// out of from's balance within the allowance from granted it.
type Token interface {
	TransferFrom(ctx context.Context, spender, from, to uuid.UUID, amount money.Amount) error
}

type allowanceKey struct {
	owner   uuid.UUID
	spender uuid.UUID
}

// Ledger is an in-process token with balances and allowances.
type Ledger struct {
	instrument money.Instrument
	logger     *zap.Logger

	mu         sync.RWMutex
	balances   map[uuid.UUID]money.Amount
	allowances map[allowanceKey]money.Amount
}

// NewLedger creates an empty ledger for inst.
func NewLedger(inst money.Instrument, logger *zap.Logger) *Ledger {
	return &Ledger{
		instrument: inst,
		logger:     logger,
		balances:   make(map[uuid.UUID]money.Amount),
		allowances: make(map[allowanceKey]money.Amount),
	}
}

// Instrument returns the token this ledger tracks.
func (l *Ledger) Instrument() money.Instrument { return l.instrument }

// Mint credits amount to party.
func (l *Ledger) Mint(party uuid.UUID, amount money.Amount) money.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[party].Add(amount)
	l.balances[party] = bal
	l.logger.Info("tokens minted",
		zap.String("instrument", l.instrument.String()),
		zap.String("party", party.String()),
		zap.String("amount", amount.String()),
	)
	return bal
}

// Approve sets the amount spender may pull from owner's balance.
func (l *Ledger) Approve(owner, spender uuid.UUID, amount money.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner: owner, spender: spender}] = amount
}

// BalanceOf returns party's balance.
func (l *Ledger) BalanceOf(party uuid.UUID) money.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[party]
}

// Allowance returns how much spender may still pull from owner.
func (l *Ledger) Allowance(owner, spender uuid.UUID) money.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[allowanceKey{owner: owner, spender: spender}]
}

// TransferFrom moves amount from from to to on behalf of spender.
// Either every balance changes or none does.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to uuid.UUID, amount money.Amount) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", dsettlement.ErrUnreachable, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner: from, spender: spender}
	newAllowance, err := l.allowances[key].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s approved %s", dsettlement.ErrInsufficientAllowance, from, l.allowances[key])
	}
	newFrom, err := l.balances[from].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s", dsettlement.ErrInsufficientBalance, from, l.balances[from])
	}

	l.allowances[key] = newAllowance
	l.balances[from] = newFrom
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}
