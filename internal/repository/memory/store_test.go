package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newListing(t *testing.T, handle int64, owner uuid.UUID) *listing.Listing {
	t.Helper()
	var ref listing.ContentRef
	ref[0] = 1
	l, err := listing.NewListing(handle, owner, listing.Terms{ContentRef: ref, Free: true}, testNow)
	require.NoError(t, err)
	return l
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	u := NewUnitOfWork()
	boom := errors.New("boom")

	err := u.WithinTx(ctx, func(ctx context.Context, s uow.Store) error {
		require.NoError(t, s.Listings().Save(ctx, newListing(t, 1, uuid.New())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = u.Reader().Listings().FindByHandle(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrHomeNotFound))
}

func TestWithinTx_CommitAndIsolation(t *testing.T) {
	ctx := context.Background()
	u := NewUnitOfWork()
	owner := uuid.New()

	require.NoError(t, u.WithinTx(ctx, func(ctx context.Context, s uow.Store) error {
		handle, err := s.Listings().NextHandle(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), handle)
		if err := s.Listings().Save(ctx, newListing(t, handle, owner)); err != nil {
			return err
		}
		cal, err := calendar.New(handle, calendar.DayOf(testNow), 5, calendar.StatusAvailable)
		require.NoError(t, err)
		return s.Calendars().Save(ctx, cal)
	}))

	got, err := u.Reader().Listings().FindByHandle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerID())

	// Mutating a loaded copy does not leak into the store.
	_, err = got.SetActive(owner, true, testNow)
	require.NoError(t, err)
	again, err := u.Reader().Listings().FindByHandle(ctx, 1)
	require.NoError(t, err)
	assert.False(t, again.IsActive())

	homes, total, err := u.Reader().Listings().FindByOwner(ctx, owner, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, homes, 1)

	next, err := u.Reader().Listings().NextHandle(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestUpdate_StaleVersion(t *testing.T) {
	ctx := context.Background()
	u := NewUnitOfWork()
	owner := uuid.New()

	require.NoError(t, u.WithinTx(ctx, func(ctx context.Context, s uow.Store) error {
		return s.Listings().Save(ctx, newListing(t, 1, owner))
	}))

	err := u.WithinTx(ctx, func(ctx context.Context, s uow.Store) error {
		l, err := s.Listings().FindByHandle(ctx, 1)
		require.NoError(t, err)
		// Version was not incremented.
		return s.Listings().Update(ctx, l)
	})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestReader_RejectsWrites(t *testing.T) {
	u := NewUnitOfWork()
	err := u.Reader().Listings().Save(context.Background(), newListing(t, 1, uuid.New()))
	assert.Error(t, err)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, paginate(items, 2, 2))
	assert.Equal(t, []int{5}, paginate(items, 3, 2))
	assert.Equal(t, []int{}, paginate(items, 4, 2))
	assert.Equal(t, []int{}, paginate(items, math.MaxInt/2+1, 20))
}

func TestFindByPayer_HugePage(t *testing.T) {
	u := NewUnitOfWork()
	var (
		receipts []*booking.Receipt
		err      error
	)
	assert.NotPanics(t, func() {
		receipts, _, err = u.Reader().Receipts().FindByPayer(context.Background(), uuid.New(), math.MaxInt/2+1, 20)
	})
	require.NoError(t, err)
	assert.Empty(t, receipts)
}
