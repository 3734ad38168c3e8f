package application_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/application"
	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
	"github.com/tokenstay/service-stay/internal/repository/memory"
	"github.com/tokenstay/service-stay/internal/settlement"
)

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

const testContentRef = "0xabababababababababababababababababababababababababababababababab"

// day returns today plus offset days.
func day(offset int) calendar.Day {
	return calendar.DayOf(testNow).AddDays(offset)
}

func amt(units int64) money.Amount {
	return money.MustAmount(units)
}

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, e kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

// stack wires every service over the in-memory store and ledgers.
type stack struct {
	clock    *clock.Fake
	store    *memory.UnitOfWork
	ledgerA  *settlement.Ledger
	ledgerB  *settlement.Ledger
	registry *settlement.MembershipRegistry
	operator uuid.UUID
	events   *recordingPublisher

	listings *application.ListingService
	bookings *application.BookingService
	shared   *application.SharedBookingService
	ledgers  *application.LedgerService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	clk := clock.NewFake(testNow)
	store := memory.NewUnitOfWork()
	locker := lock.NewLocal()
	pub := &recordingPublisher{}
	operator := uuid.New()

	ledgerA := settlement.NewLedger(money.InstrumentA, logger)
	ledgerB := settlement.NewLedger(money.InstrumentB, logger)
	registry := settlement.NewMembershipRegistry(clk)
	gateway := settlement.NewGateway(operator, map[money.Instrument]settlement.Token{
		money.InstrumentA: settlement.NewGatedToken(ledgerA, registry),
		money.InstrumentB: ledgerB,
	}, logger)
	pricing := bookingDomain.NewDailyRateStrategy()

	return &stack{
		clock:    clk,
		store:    store,
		ledgerA:  ledgerA,
		ledgerB:  ledgerB,
		registry: registry,
		operator: operator,
		events:   pub,
		listings: application.NewListingService(store, locker, clk, calendar.DefaultHorizon, pub, "", logger),
		bookings: application.NewBookingService(store, locker, gateway, pricing, clk, pub, "", logger),
		shared:   application.NewSharedBookingService(store, locker, gateway, pricing, clk, pub, "", logger),
		ledgers: application.NewLedgerService(map[money.Instrument]*settlement.Ledger{
			money.InstrumentA: ledgerA,
			money.InstrumentB: ledgerB,
		}, registry, operator, clk, 24*time.Hour, logger),
	}
}

// fund mints units of B to party and approves the operator for all of it.
func (s *stack) fund(t *testing.T, party uuid.UUID, units int64) {
	t.Helper()
	s.ledgerB.Mint(party, amt(units))
	s.ledgerB.Approve(party, s.operator, amt(units))
}

// listedHome registers an active home priced per day in both instruments.
func (s *stack) listedHome(t *testing.T, owner uuid.UUID, priceA, priceB int64) int64 {
	t.Helper()
	ctx := context.Background()
	home, err := s.listings.Register(ctx, owner, application.RegisterHomeRequest{
		ContentRef: testContentRef,
		PriceA:     amt(priceA),
		PriceB:     amt(priceB),
		AcceptsA:   true,
		AcceptsB:   true,
	})
	require.NoError(t, err)
	_, err = s.listings.SetActive(ctx, owner, home.HomeID, true)
	require.NoError(t, err)
	return home.HomeID
}

// statuses returns the calendar status for each day in [start, end].
func (s *stack) statuses(t *testing.T, homeID int64, start, end calendar.Day) []string {
	t.Helper()
	cal, err := s.listings.GetCalendar(context.Background(), homeID)
	require.NoError(t, err)
	var out []string
	for _, d := range cal.Days {
		if d.Day >= start && d.Day <= end {
			out = append(out, d.Status)
		}
	}
	return out
}

func repeat(status string, n int) []string {
	return strings.Split(strings.TrimSuffix(strings.Repeat(status+",", n), ","), ",")
}
