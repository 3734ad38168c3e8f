package booking

import (
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// PricingStrategy defines the interface for calculating booking prices.
type PricingStrategy interface {
	// Calculate returns the total for the given parameters.
	Calculate(params PricingParams) (money.Amount, error)
}

// PricingParams holds the inputs for price calculation.
type PricingParams struct {
	PricePerDay money.Amount
	Start       calendar.Day
	End         calendar.Day
}

// DailyRateStrategy charges the listing's fixed day rate for every day of the stay.
type DailyRateStrategy struct{}

// NewDailyRateStrategy creates a new DailyRateStrategy.
func NewDailyRateStrategy() *DailyRateStrategy {
	return &DailyRateStrategy{}
}

// Calculate computes price_per_day * (end - start + 1).
func (s *DailyRateStrategy) Calculate(params PricingParams) (money.Amount, error) {
	if params.Start > params.End {
		return money.Zero, domain.ErrInvalidDateRange
	}
	return params.PricePerDay.MulInt(calendar.DaysInclusive(params.Start, params.End)), nil
}

// SharePrice splits total into shares equal parts rounded down.
// The remainder is never collected from any participant.
func SharePrice(total money.Amount, shares int) (perShare, remainder money.Amount, err error) {
	if shares < MinShares {
		return money.Zero, money.Zero, domain.ErrInvalidShareCount
	}
	perShare, remainder = total.SplitFloor(int64(shares))
	return perShare, remainder, nil
}
