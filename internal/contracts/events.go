// Package contracts holds the Kafka topics, CloudEvent types and payloads
// this service produces and consumes.
package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
)

// EventSource is the CloudEvent source of everything this service publishes.
const EventSource = "service-stay"

// Default topics.
const (
	TopicStayEvents       = "stay.events"
	TopicMembershipEvents = "membership.events"
)

// Published event types.
const (
	HomeRegistered          = "home.registered"
	HomeUpdated             = "home.updated"
	HomeActivated           = "home.activated"
	HomeAvailabilityChanged = "home.availability_changed"
	BookingConfirmed        = "booking.confirmed"
	SharedInitiated         = "shared.initiated"
	SharedSharePurchased    = "shared.share_purchased"
	SharedFinalized         = "shared.finalized"
)

// Consumed event types.
const (
	MembershipVerified = "membership.verified"
	MembershipRevoked  = "membership.revoked"
)

// HomeRegisteredEvent is published when a home is first registered or re-registered by its owner.
type HomeRegisteredEvent struct {
	HomeID       int64     `json:"home_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	ContentRef   string    `json:"content_ref"`
	Free         bool      `json:"free"`
	Reregistered bool      `json:"reregistered"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// HomeUpdatedEvent is published after a listing update.
type HomeUpdatedEvent struct {
	HomeID     int64     `json:"home_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Fields     []string  `json:"fields"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HomeActivatedEvent is published when a listing is listed or unlisted.
type HomeActivatedEvent struct {
	HomeID     int64     `json:"home_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Active     bool      `json:"active"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HomeAvailabilityChangedEvent is published when an owner opens or closes days.
type HomeAvailabilityChangedEvent struct {
	HomeID     int64        `json:"home_id"`
	Start      calendar.Day `json:"start"`
	End        calendar.Day `json:"end"`
	Available  bool         `json:"available"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// BookingConfirmedEvent is published after a single booking settled and was committed.
type BookingConfirmedEvent struct {
	ReceiptID  uuid.UUID        `json:"receipt_id"`
	HomeID     int64            `json:"home_id"`
	PayerID    uuid.UUID        `json:"payer_id"`
	PayeeID    uuid.UUID        `json:"payee_id"`
	Start      calendar.Day     `json:"start"`
	End        calendar.Day     `json:"end"`
	Total      money.Amount     `json:"total"`
	Instrument money.Instrument `json:"instrument,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// SharedInitiatedEvent is published when a shared booking pool opens.
type SharedInitiatedEvent struct {
	PoolID        string           `json:"pool_id"`
	HomeID        int64            `json:"home_id"`
	InitiatorID   uuid.UUID        `json:"initiator_id"`
	Start         calendar.Day     `json:"start"`
	End           calendar.Day     `json:"end"`
	TotalShares   int              `json:"total_shares"`
	TotalAmount   money.Amount     `json:"total_amount"`
	PricePerShare money.Amount     `json:"price_per_share"`
	Instrument    money.Instrument `json:"instrument"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// SharedSharePurchasedEvent is published for every share sold, including the initiator's.
type SharedSharePurchasedEvent struct {
	PoolID          string       `json:"pool_id"`
	HomeID          int64        `json:"home_id"`
	BuyerID         uuid.UUID    `json:"buyer_id"`
	Amount          money.Amount `json:"amount"`
	SharesRemaining int          `json:"shares_remaining"`
	OccurredAt      time.Time    `json:"occurred_at"`
}

// SharedFinalizedEvent is published once a pool sells out and its dates are booked.
type SharedFinalizedEvent struct {
	PoolID       string       `json:"pool_id"`
	HomeID       int64        `json:"home_id"`
	Start        calendar.Day `json:"start"`
	End          calendar.Day `json:"end"`
	Participants []uuid.UUID  `json:"participants"`
	Uncollected  money.Amount `json:"uncollected"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// MembershipVerifiedEvent grants or extends a membership.
type MembershipVerifiedEvent struct {
	PartyID    uuid.UUID `json:"party_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MembershipRevokedEvent withdraws a membership.
type MembershipRevokedEvent struct {
	PartyID    uuid.UUID `json:"party_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
