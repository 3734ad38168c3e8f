// Package settlement defines how the booking engines move funds between parties.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/money"
)

// Gateway moves funds from payer to payee in one instrument. It never retries.
type Gateway interface {
	Transfer(ctx context.Context, payer, payee uuid.UUID, amount money.Amount, inst money.Instrument) error
}

// Backend failure reasons.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotMember             = errors.New("party is not a verified member")
	ErrMembershipExpired     = errors.New("party membership has expired")
	ErrUnknownInstrument     = errors.New("unknown instrument")
	ErrUnreachable           = errors.New("token backend unreachable")
)

// TransferError is returned by a Gateway when a transfer did not happen.
// Unreachable distinguishes a collaborator that could not be reached from one
// that rejected the transfer.
type TransferError struct {
	Instrument  money.Instrument
	Amount      money.Amount
	Unreachable bool
	Err         error
}

func (e *TransferError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("transfer of %s %s failed: backend unreachable: %v", e.Amount, e.Instrument, e.Err)
	}
	return fmt.Sprintf("transfer of %s %s failed: %v", e.Amount, e.Instrument, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
