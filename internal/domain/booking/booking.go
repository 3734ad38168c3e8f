package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// Receipt is the confirmation record of a settled single booking.
// It is appended to both the payer's and the payee's history and never removed.
type Receipt struct {
	id         uuid.UUID
	homeID     int64
	payerID    uuid.UUID
	payeeID    uuid.UUID
	start      calendar.Day
	end        calendar.Day
	total      money.Amount
	instrument money.Instrument
	free       bool
	active     bool
	createdAt  time.Time
}

// NewReceipt records a confirmed booking.
func NewReceipt(
	homeID int64,
	payerID, payeeID uuid.UUID,
	start, end calendar.Day,
	total money.Amount,
	instrument money.Instrument,
	free bool,
	now time.Time,
) (*Receipt, error) {
	if payerID == uuid.Nil {
		return nil, domain.NewValidationError("payer ID is required")
	}
	if payeeID == uuid.Nil {
		return nil, domain.NewValidationError("payee ID is required")
	}
	if start > end {
		return nil, domain.ErrInvalidDateRange
	}
	return &Receipt{
		id:         uuid.New(),
		homeID:     homeID,
		payerID:    payerID,
		payeeID:    payeeID,
		start:      start,
		end:        end,
		total:      total,
		instrument: instrument,
		free:       free,
		active:     true,
		createdAt:  now.UTC(),
	}, nil
}

// ReconstructReceipt rebuilds a Receipt from persistence data (no validation).
func ReconstructReceipt(
	id uuid.UUID,
	homeID int64,
	payerID, payeeID uuid.UUID,
	start, end calendar.Day,
	total money.Amount,
	instrument money.Instrument,
	free, active bool,
	createdAt time.Time,
) *Receipt {
	return &Receipt{
		id:         id,
		homeID:     homeID,
		payerID:    payerID,
		payeeID:    payeeID,
		start:      start,
		end:        end,
		total:      total,
		instrument: instrument,
		free:       free,
		active:     active,
		createdAt:  createdAt,
	}
}

// --- Getters ---

// ID returns the receipt's unique identifier.
func (r *Receipt) ID() uuid.UUID { return r.id }

// HomeID returns the booked home's handle.
func (r *Receipt) HomeID() int64 { return r.homeID }

// PayerID returns the guest who paid.
func (r *Receipt) PayerID() uuid.UUID { return r.payerID }

// PayeeID returns the home owner who was paid.
func (r *Receipt) PayeeID() uuid.UUID { return r.payeeID }

// Start returns the first booked day.
func (r *Receipt) Start() calendar.Day { return r.start }

// End returns the last booked day (inclusive).
func (r *Receipt) End() calendar.Day { return r.end }

// Days returns the number of booked days.
func (r *Receipt) Days() int64 { return calendar.DaysInclusive(r.start, r.end) }

// Total returns the settled amount.
func (r *Receipt) Total() money.Amount { return r.total }

// Instrument returns the settlement instrument. Empty for free stays.
func (r *Receipt) Instrument() money.Instrument { return r.instrument }

// IsFree reports whether the stay was booked on a free listing.
func (r *Receipt) IsFree() bool { return r.free }

// IsActive reports whether the booking is still in force.
func (r *Receipt) IsActive() bool { return r.active }

// CreatedAt returns the confirmation timestamp.
func (r *Receipt) CreatedAt() time.Time { return r.createdAt }
