package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/money"
	dsettlement "github.com/tokenstay/service-stay/internal/domain/settlement"
	"github.com/tokenstay/service-stay/internal/platform/clock"
)

// MembershipRegistry tracks verified members and when their verification expires.
type MembershipRegistry struct {
	clock clock.Clock

	mu      sync.RWMutex
	members map[uuid.UUID]time.Time
}

// NewMembershipRegistry creates an empty registry.
func NewMembershipRegistry(clk clock.Clock) *MembershipRegistry {
	return &MembershipRegistry{clock: clk, members: make(map[uuid.UUID]time.Time)}
}

// Verify marks party as a member until the given time.
func (r *MembershipRegistry) Verify(party uuid.UUID, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[party] = until.UTC()
}

// Revoke removes party's membership.
func (r *MembershipRegistry) Revoke(party uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, party)
}

// ExpiresAt returns when party's membership lapses.
func (r *MembershipRegistry) ExpiresAt(party uuid.UUID) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, ok := r.members[party]
	return until, ok
}

// Check returns nil if party holds a current membership.
func (r *MembershipRegistry) Check(party uuid.UUID) error {
	until, ok := r.ExpiresAt(party)
	if !ok {
		return fmt.Errorf("%w: %s", dsettlement.ErrNotMember, party)
	}
	if !r.clock.Now().Before(until) {
		return fmt.Errorf("%w: %s expired at %s", dsettlement.ErrMembershipExpired, party, until.Format(time.RFC3339))
	}
	return nil
}

// GatedToken only lets verified members send or receive funds.
type GatedToken struct {
	Token
	registry *MembershipRegistry
}

// NewGatedToken wraps token with the membership gate.
func NewGatedToken(token Token, registry *MembershipRegistry) *GatedToken {
	return &GatedToken{Token: token, registry: registry}
}

// TransferFrom checks both parties before delegating.
func (g *GatedToken) TransferFrom(ctx context.Context, spender, from, to uuid.UUID, amount money.Amount) error {
	if err := g.registry.Check(from); err != nil {
		return err
	}
	if err := g.registry.Check(to); err != nil {
		return err
	}
	return g.Token.TransferFrom(ctx, spender, from, to, amount)
}
