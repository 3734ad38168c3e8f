package listing

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// ContentRef is the fixed-size hash of the listing's off-line content (photos, description).
type ContentRef [32]byte

// ParseContentRef decodes a 64-character hex string, with or without a 0x prefix.
func ParseContentRef(s string) (ContentRef, error) {
	var ref ContentRef
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ref, fmt.Errorf("content reference must be hex: %w", err)
	}
	if len(b) != len(ref) {
		return ref, fmt.Errorf("content reference must be %d bytes, got %d", len(ref), len(b))
	}
	copy(ref[:], b)
	return ref, nil
}

// IsZero reports whether the reference is unset.
func (r ContentRef) IsZero() bool { return r == ContentRef{} }

// String returns the 0x-prefixed hex encoding.
func (r ContentRef) String() string { return "0x" + hex.EncodeToString(r[:]) }

// Terms are the owner-controlled listing fields.
type Terms struct {
	ContentRef ContentRef
	PriceA     money.Amount
	PriceB     money.Amount
	AcceptsA   bool
	AcceptsB   bool
	Free       bool
}

// Validate enforces the listing invariants.
func (t Terms) Validate() error {
	if t.ContentRef.IsZero() {
		return invalidListing("content reference is required")
	}
	if t.Free {
		return nil
	}
	if !t.AcceptsA && !t.AcceptsB {
		return invalidListing("a paid listing must accept at least one instrument")
	}
	if t.AcceptsA && t.PriceA.IsZero() {
		return invalidListing("price in token_a must be positive when token_a is accepted")
	}
	if t.AcceptsB && t.PriceB.IsZero() {
		return invalidListing("price in token_b must be positive when token_b is accepted")
	}
	return nil
}

func invalidListing(msg string) error {
	return domain.New(domain.KindValidation, domain.CodeInvalidListing, msg)
}

// Update carries a partial listing update. Nil fields are left unchanged.
type Update struct {
	ContentRef *ContentRef
	PriceA     *money.Amount
	PriceB     *money.Amount
	AcceptsA   *bool
	AcceptsB   *bool
	Free       *bool
}

// IsEmpty reports whether no field is flagged for update.
func (u Update) IsEmpty() bool {
	return u.ContentRef == nil && u.PriceA == nil && u.PriceB == nil &&
		u.AcceptsA == nil && u.AcceptsB == nil && u.Free == nil
}

func (u Update) applyTo(t Terms) Terms {
	if u.ContentRef != nil {
		t.ContentRef = *u.ContentRef
	}
	if u.PriceA != nil {
		t.PriceA = *u.PriceA
	}
	if u.PriceB != nil {
		t.PriceB = *u.PriceB
	}
	if u.AcceptsA != nil {
		t.AcceptsA = *u.AcceptsA
	}
	if u.AcceptsB != nil {
		t.AcceptsB = *u.AcceptsB
	}
	if u.Free != nil {
		t.Free = *u.Free
	}
	return t
}

// Listing is the aggregate root for a registered home.
type Listing struct {
	handle    int64
	ownerID   uuid.UUID
	terms     Terms
	active    bool
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewListing creates an inactive listing. The owner lists it with SetActive.
func NewListing(handle int64, ownerID uuid.UUID, terms Terms, now time.Time) (*Listing, error) {
	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if handle <= 0 {
		return nil, domain.NewValidationError("home handle must be positive")
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Listing{
		handle:    handle,
		ownerID:   ownerID,
		terms:     terms,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Listing from persistence data (no validation).
func Reconstruct(
	handle int64,
	ownerID uuid.UUID,
	terms Terms,
	active bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Listing {
	return &Listing{
		handle:    handle,
		ownerID:   ownerID,
		terms:     terms,
		active:    active,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// --- Getters ---

func (l *Listing) Handle() int64        { return l.handle }
func (l *Listing) OwnerID() uuid.UUID   { return l.ownerID }
func (l *Listing) Terms() Terms         { return l.terms }
func (l *Listing) IsActive() bool       { return l.active }
func (l *Listing) IsFree() bool         { return l.terms.Free }
func (l *Listing) Version() int64       { return l.version }
func (l *Listing) CreatedAt() time.Time { return l.createdAt }
func (l *Listing) UpdatedAt() time.Time { return l.updatedAt }

// Clone returns an independent copy.
func (l *Listing) Clone() *Listing {
	cp := *l
	return &cp
}

// --- Behavior ---

// IsOwnedBy checks if the listing belongs to the given party.
func (l *Listing) IsOwnedBy(party uuid.UUID) bool {
	return l.ownerID == party
}

// Apply merges u into the listing after an ownership check and re-validates the result.
// On error the listing is unchanged.
func (l *Listing) Apply(caller uuid.UUID, u Update, now time.Time) error {
	if !l.IsOwnedBy(caller) {
		return domain.ErrNotOwner
	}
	merged := u.applyTo(l.terms)
	if err := merged.Validate(); err != nil {
		return err
	}
	l.terms = merged
	l.updatedAt = now.UTC()
	return nil
}

// Replace overwrites every term. Used when the owner re-registers a home.
func (l *Listing) Replace(caller uuid.UUID, terms Terms, now time.Time) error {
	if !l.IsOwnedBy(caller) {
		return domain.ErrHomeAlreadyRegistered
	}
	if err := terms.Validate(); err != nil {
		return err
	}
	l.terms = terms
	l.updatedAt = now.UTC()
	return nil
}

// SetActive flips the listed flag. It reports whether the flag changed.
func (l *Listing) SetActive(caller uuid.UUID, active bool, now time.Time) (bool, error) {
	if !l.IsOwnedBy(caller) {
		return false, domain.ErrNotOwner
	}
	if l.active == active {
		return false, nil
	}
	l.active = active
	l.updatedAt = now.UTC()
	return true, nil
}

// Accepts reports whether the listing takes payment in inst.
func (l *Listing) Accepts(inst money.Instrument) bool {
	switch inst {
	case money.InstrumentA:
		return l.terms.AcceptsA
	case money.InstrumentB:
		return l.terms.AcceptsB
	default:
		return false
	}
}

// PricePerDay returns the day rate in inst.
func (l *Listing) PricePerDay(inst money.Instrument) (money.Amount, error) {
	if !l.Accepts(inst) {
		return money.Zero, domain.ErrInvalidPaymentMethod
	}
	if inst == money.InstrumentA {
		return l.terms.PriceA, nil
	}
	return l.terms.PriceB, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (l *Listing) IncrementVersion() {
	l.version++
}
