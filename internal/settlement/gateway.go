package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/domain/money"
	dsettlement "github.com/tokenstay/service-stay/internal/domain/settlement"
)

// Gateway routes transfers to the token backing each instrument. The booking
// service pulls funds as operator, so payers must approve the operator first.
type Gateway struct {
	operator uuid.UUID
	backends map[money.Instrument]Token
	logger   *zap.Logger
}

// NewGateway creates a gateway over the given backends.
func NewGateway(operator uuid.UUID, backends map[money.Instrument]Token, logger *zap.Logger) *Gateway {
	return &Gateway{operator: operator, backends: backends, logger: logger}
}

// Operator returns the spender identity payers must approve.
func (g *Gateway) Operator() uuid.UUID { return g.operator }

// Transfer moves amount from payer to payee. Failures are returned as
// *dsettlement.TransferError and never retried.
func (g *Gateway) Transfer(ctx context.Context, payer, payee uuid.UUID, amount money.Amount, inst money.Instrument) error {
	backend, ok := g.backends[inst]
	if !ok {
		return &dsettlement.TransferError{Instrument: inst, Amount: amount, Err: dsettlement.ErrUnknownInstrument}
	}

	if err := backend.TransferFrom(ctx, g.operator, payer, payee, amount); err != nil {
		unreachable := errors.Is(err, dsettlement.ErrUnreachable) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded)
		g.logger.Warn("transfer rejected",
			zap.String("instrument", inst.String()),
			zap.String("payer", payer.String()),
			zap.String("payee", payee.String()),
			zap.String("amount", amount.String()),
			zap.Bool("unreachable", unreachable),
			zap.Error(err),
		)
		return &dsettlement.TransferError{Instrument: inst, Amount: amount, Unreachable: unreachable, Err: err}
	}

	g.logger.Info("transfer settled",
		zap.String("instrument", inst.String()),
		zap.String("payer", payer.String()),
		zap.String("payee", payee.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}
