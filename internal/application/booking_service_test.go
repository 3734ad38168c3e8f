package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/contracts"
	"github.com/tokenstay/service-stay/internal/domain/money"
	dsettlement "github.com/tokenstay/service-stay/internal/domain/settlement"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

func TestBook_SettlesAndCommitsExactRange(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()
	homeID := s.listedHome(t, owner, 30, 25)
	s.fund(t, guest, 1000)

	receipt, err := s.bookings.Book(ctx, guest, homeID, application.BookRequest{
		Start: day(3), End: day(6), Instrument: string(money.InstrumentB),
	})
	require.NoError(t, err)

	assert.Equal(t, "100", receipt.Total.String())
	assert.Equal(t, int64(4), receipt.Days)
	assert.Equal(t, owner, receipt.PayeeID)
	assert.True(t, receipt.Active)
	assert.Equal(t, "900", s.ledgerB.BalanceOf(guest).String())
	assert.Equal(t, "100", s.ledgerB.BalanceOf(owner).String())

	assert.Equal(t, []string{"available", "booked", "booked", "booked", "booked", "available"},
		s.statuses(t, homeID, day(2), day(7)))

	history, total, err := s.bookings.GetPayerBookings(ctx, guest, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, receipt.ID, history[0].ID)

	received, total, err := s.bookings.GetPayeeBookings(ctx, owner, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, receipt.ID, received[0].ID)

	assert.Equal(t, 1, s.events.count(contracts.BookingConfirmed))
}

func TestBook_UnavailableRangeFailsWithEarliestDay(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, first, second := uuid.New(), uuid.New(), uuid.New()
	homeID := s.listedHome(t, owner, 10, 10)
	s.fund(t, first, 1000)
	s.fund(t, second, 1000)

	_, err := s.bookings.Book(ctx, first, homeID, application.BookRequest{
		Start: day(5), End: day(6), Instrument: string(money.InstrumentB),
	})
	require.NoError(t, err)
	closed := false
	_, err = s.listings.SetAvailability(ctx, owner, homeID, application.SetAvailabilityRequest{
		Start: day(8), End: day(8), Available: &closed,
	})
	require.NoError(t, err)

	before := s.statuses(t, homeID, day(0), day(99))
	for attempt := 0; attempt < 2; attempt++ {
		_, err = s.bookings.Book(ctx, second, homeID, application.BookRequest{
			Start: day(4), End: day(9), Instrument: string(money.InstrumentB),
		})
		require.ErrorIs(t, err, domain.ErrDatesNotAvailable)
		var de *domain.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, day(5).String(), de.Details["day"])
	}

	assert.Equal(t, before, s.statuses(t, homeID, day(0), day(99)))
	assert.Equal(t, "1000", s.ledgerB.BalanceOf(second).String())
}

func TestBook_SettlementFailureLeavesCalendar(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()
	homeID := s.listedHome(t, owner, 10, 10)

	s.ledgerB.Mint(guest, amt(15))
	s.ledgerB.Approve(guest, s.operator, amt(1000))

	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.bookings.Book(ctx, guest, homeID, application.BookRequest{
			Start: day(1), End: day(2), Instrument: string(money.InstrumentB),
		})
		require.ErrorIs(t, err, domain.ErrTokenTransferFailed)
		assert.True(t, errors.Is(err, dsettlement.ErrInsufficientBalance))

		var te *dsettlement.TransferError
		require.True(t, errors.As(err, &te))
		assert.False(t, te.Unreachable)
		assert.Equal(t, "20", te.Amount.String())
	}

	assert.Equal(t, repeat("available", 2), s.statuses(t, homeID, day(1), day(2)))
	assert.Equal(t, "15", s.ledgerB.BalanceOf(guest).String())
	assert.Equal(t, 0, s.events.count(contracts.BookingConfirmed))

	_, total, err := s.bookings.GetPayerBookings(ctx, guest, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestBook_MembershipGatedInstrument(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()
	homeID := s.listedHome(t, owner, 10, 10)
	s.ledgerA.Mint(guest, amt(100))
	s.ledgerA.Approve(guest, s.operator, amt(100))

	req := application.BookRequest{Start: day(1), End: day(1), Instrument: string(money.InstrumentA)}

	_, err := s.bookings.Book(ctx, guest, homeID, req)
	assert.True(t, errors.Is(err, dsettlement.ErrNotMember))

	s.registry.Verify(guest, testNow.Add(time.Hour))
	_, err = s.bookings.Book(ctx, guest, homeID, req)
	assert.True(t, errors.Is(err, dsettlement.ErrNotMember), "owner must be a member too")

	s.registry.Verify(owner, testNow.Add(48*time.Hour))
	s.clock.Advance(2 * time.Hour)
	_, err = s.bookings.Book(ctx, guest, homeID, req)
	assert.True(t, errors.Is(err, dsettlement.ErrMembershipExpired))

	s.registry.Verify(guest, testNow.Add(24*time.Hour))
	receipt, err := s.bookings.Book(ctx, guest, homeID, req)
	require.NoError(t, err)
	assert.Equal(t, money.InstrumentA, receipt.Instrument)
	assert.Equal(t, "10", s.ledgerA.BalanceOf(owner).String())
}

func TestBook_ListingChecks(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()
	s.fund(t, guest, 1000)

	onlyB, err := s.listings.Register(ctx, owner, application.RegisterHomeRequest{
		ContentRef: testContentRef,
		PriceB:     amt(5),
		AcceptsB:   true,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		homeID  int64
		req     application.BookRequest
		wantErr error
	}{
		{
			name:    "unlisted home",
			homeID:  onlyB.HomeID,
			req:     application.BookRequest{Start: day(1), End: day(1), Instrument: "token_b"},
			wantErr: domain.ErrHomeNotListed,
		},
		{
			name:    "unknown home",
			homeID:  404,
			req:     application.BookRequest{Start: day(1), End: day(1), Instrument: "token_b"},
			wantErr: domain.ErrHomeNotFound,
		},
		{
			name:    "inverted range",
			homeID:  onlyB.HomeID,
			req:     application.BookRequest{Start: day(3), End: day(1), Instrument: "token_b"},
			wantErr: domain.ErrInvalidDateRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.bookings.Book(ctx, guest, tt.homeID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = s.listings.SetActive(ctx, owner, onlyB.HomeID, true)
	require.NoError(t, err)

	t.Run("instrument not accepted", func(t *testing.T) {
		_, err := s.bookings.Book(ctx, guest, onlyB.HomeID, application.BookRequest{Start: day(1), End: day(1), Instrument: "token_a"})
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})

	t.Run("unknown instrument", func(t *testing.T) {
		_, err := s.bookings.Book(ctx, guest, onlyB.HomeID, application.BookRequest{Start: day(1), End: day(1), Instrument: "gold"})
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})

	t.Run("past the horizon", func(t *testing.T) {
		_, err := s.bookings.Book(ctx, guest, onlyB.HomeID, application.BookRequest{Start: day(98), End: day(100), Instrument: "token_b"})
		assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	})

	t.Run("yesterday", func(t *testing.T) {
		_, err := s.bookings.Book(ctx, guest, onlyB.HomeID, application.BookRequest{Start: day(-1), End: day(1), Instrument: "token_b"})
		assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
	})

	assert.Equal(t, "1000", s.ledgerB.BalanceOf(guest).String())
}

func TestBook_FreeHomeSkipsSettlement(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()

	home, err := s.listings.Register(ctx, owner, application.RegisterHomeRequest{
		ContentRef: testContentRef,
		Free:       true,
	})
	require.NoError(t, err)
	_, err = s.listings.SetActive(ctx, owner, home.HomeID, true)
	require.NoError(t, err)

	receipt, err := s.bookings.Book(ctx, guest, home.HomeID, application.BookRequest{Start: day(0), End: day(2)})
	require.NoError(t, err)
	assert.True(t, receipt.Free)
	assert.True(t, receipt.Total.IsZero())
	assert.Empty(t, receipt.Instrument)
	assert.Equal(t, repeat("booked", 3), s.statuses(t, home.HomeID, day(0), day(2)))
}

func TestBook_FullHorizonPrice(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner, guest := uuid.New(), uuid.New()
	homeID := s.listedHome(t, owner, 1, 1_000_000_000_000)
	s.fund(t, guest, 100_000_000_000_000)

	receipt, err := s.bookings.Book(ctx, guest, homeID, application.BookRequest{
		Start: day(0), End: day(99), Instrument: "token_b",
	})
	require.NoError(t, err)
	assert.Equal(t, "100000000000000", receipt.Total.String())
	assert.True(t, s.ledgerB.BalanceOf(guest).IsZero())
}

func TestBook_ConcurrentOverlapsBookOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	owner := uuid.New()
	homeID := s.listedHome(t, owner, 10, 10)

	const guests = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < guests; i++ {
		guest := uuid.New()
		s.fund(t, guest, 1000)
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := s.bookings.Book(ctx, guest, homeID, application.BookRequest{
				Start: day(10 + offset%2), End: day(12), Instrument: "token_b",
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrDatesNotAvailable)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, s.events.count(contracts.BookingConfirmed))
	received, _, err := s.bookings.GetPayeeBookings(ctx, owner, 1, 10)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, received[0].Total.String(), s.ledgerB.BalanceOf(owner).String())
}
