package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/contracts"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

// RegisterHomeRequest holds the data needed to register a home.
// HomeID is optional; when omitted the next free handle is allocated.
type RegisterHomeRequest struct {
	HomeID     *int64       `json:"home_id"`
	ContentRef string       `json:"content_ref" binding:"required"`
	PriceA     money.Amount `json:"price_a"`
	PriceB     money.Amount `json:"price_b"`
	AcceptsA   bool         `json:"accepts_a"`
	AcceptsB   bool         `json:"accepts_b"`
	Free       bool         `json:"free"`
}

// UpdateHomeRequest is a partial listing update. Omitted fields are unchanged.
type UpdateHomeRequest struct {
	ContentRef *string       `json:"content_ref"`
	PriceA     *money.Amount `json:"price_a"`
	PriceB     *money.Amount `json:"price_b"`
	AcceptsA   *bool         `json:"accepts_a"`
	AcceptsB   *bool         `json:"accepts_b"`
	Free       *bool         `json:"free"`
}

// SetActiveRequest lists or unlists a home.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetAvailabilityRequest opens or closes an inclusive day range.
type SetAvailabilityRequest struct {
	Start     calendar.Day `json:"start" binding:"required"`
	End       calendar.Day `json:"end" binding:"required"`
	Available *bool        `json:"available" binding:"required"`
}

// HomeDTO is the response representation of a listing.
type HomeDTO struct {
	HomeID     int64        `json:"home_id"`
	OwnerID    uuid.UUID    `json:"owner_id"`
	ContentRef string       `json:"content_ref"`
	PriceA     money.Amount `json:"price_a"`
	PriceB     money.Amount `json:"price_b"`
	AcceptsA   bool         `json:"accepts_a"`
	AcceptsB   bool         `json:"accepts_b"`
	Free       bool         `json:"free"`
	Active     bool         `json:"active"`
	Version    int64        `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// DayStatusDTO is one day of a calendar snapshot.
type DayStatusDTO struct {
	Day    calendar.Day `json:"day"`
	Status string       `json:"status"`
}

// CalendarDTO is a full availability snapshot of a home.
type CalendarDTO struct {
	HomeID      int64          `json:"home_id"`
	WindowStart calendar.Day   `json:"window_start"`
	WindowEnd   calendar.Day   `json:"window_end"`
	Horizon     int            `json:"horizon"`
	Days        []DayStatusDTO `json:"days"`
}

// ListingService owns home registration, listing terms and availability.
type ListingService struct {
	tx      uow.Transactor
	locker  lock.Locker
	clock   clock.Clock
	horizon int
	events  eventEmitter
	logger  *zap.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(
	tx uow.Transactor,
	locker lock.Locker,
	clk clock.Clock,
	horizon int,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *ListingService {
	if horizon < 1 {
		horizon = calendar.DefaultHorizon
	}
	return &ListingService{
		tx:      tx,
		locker:  locker,
		clock:   clk,
		horizon: horizon,
		events:  newEventEmitter(publisher, topic, logger),
		logger:  logger,
	}
}

// Register creates a home with its calendar, or re-registers an existing home
// for its owner. New homes start unlisted with every day Available.
func (s *ListingService) Register(ctx context.Context, ownerID uuid.UUID, req RegisterHomeRequest) (*HomeDTO, error) {
	ref, err := listing.ParseContentRef(req.ContentRef)
	if err != nil {
		return nil, domain.New(domain.KindValidation, domain.CodeInvalidListing, err.Error())
	}
	terms := listing.Terms{
		ContentRef: ref,
		PriceA:     req.PriceA,
		PriceB:     req.PriceB,
		AcceptsA:   req.AcceptsA,
		AcceptsB:   req.AcceptsB,
		Free:       req.Free,
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if req.HomeID != nil && *req.HomeID <= 0 {
		return nil, domain.NewValidationError("home_id must be positive")
	}

	release, err := s.locker.Acquire(ctx, lock.RegistryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to lock home registry: %w", err)
	}
	defer release()

	if req.HomeID != nil {
		releaseHome, err := s.locker.Acquire(ctx, lock.HomeKey(*req.HomeID))
		if err != nil {
			return nil, fmt.Errorf("failed to lock home: %w", err)
		}
		defer releaseHome()
	}

	now := s.clock.Now()
	var (
		result       *listing.Listing
		reregistered bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		handle, existing, err := s.resolveHandle(ctx, st, req.HomeID)
		if err != nil {
			return err
		}

		if existing != nil {
			if err := existing.Replace(ownerID, terms, now); err != nil {
				return err
			}
			existing.IncrementVersion()
			if err := st.Listings().Update(ctx, existing); err != nil {
				return err
			}
			result, reregistered = existing, true
			return nil
		}

		l, err := listing.NewListing(handle, ownerID, terms, now)
		if err != nil {
			return err
		}
		cal, err := calendar.New(handle, calendar.DayOf(now), s.horizon, calendar.StatusAvailable)
		if err != nil {
			return err
		}
		if err := st.Listings().Save(ctx, l); err != nil {
			return err
		}
		if err := st.Calendars().Save(ctx, cal); err != nil {
			return err
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("home registered",
		zap.Int64("home_id", result.Handle()),
		zap.String("owner_id", ownerID.String()),
		zap.Bool("reregistered", reregistered),
	)
	s.events.publish(ctx, contracts.HomeRegistered, homeSubject(result.Handle()), contracts.HomeRegisteredEvent{
		HomeID:       result.Handle(),
		OwnerID:      ownerID,
		ContentRef:   ref.String(),
		Free:         terms.Free,
		Reregistered: reregistered,
		OccurredAt:   now,
	})

	dto := toHomeDTO(result)
	return &dto, nil
}

// resolveHandle returns the handle to register under and, when the caller
// supplied a handle that is already taken, the existing listing.
func (s *ListingService) resolveHandle(ctx context.Context, st uow.Store, requested *int64) (int64, *listing.Listing, error) {
	if requested == nil {
		handle, err := st.Listings().NextHandle(ctx)
		return handle, nil, err
	}
	existing, err := st.Listings().FindByHandle(ctx, *requested)
	if err != nil {
		if domain.IsCode(err, domain.CodeHomeNotFound) {
			return *requested, nil, nil
		}
		return 0, nil, err
	}
	return *requested, existing, nil
}

// UpdateListing applies a partial update to the owner's listing.
func (s *ListingService) UpdateListing(ctx context.Context, callerID uuid.UUID, homeID int64, req UpdateHomeRequest) (*HomeDTO, error) {
	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	now := s.clock.Now()
	var (
		updated *listing.Listing
		fields  []string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		l, err := st.Listings().FindByHandle(ctx, homeID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(callerID) {
			return domain.ErrNotOwner
		}

		u, f, err := req.toUpdate()
		if err != nil {
			return err
		}
		if u.IsEmpty() {
			return domain.NewValidationError("no listing fields to update")
		}
		if err := l.Apply(callerID, u, now); err != nil {
			return err
		}
		l.IncrementVersion()
		if err := st.Listings().Update(ctx, l); err != nil {
			return err
		}
		updated, fields = l, f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("home updated",
		zap.Int64("home_id", homeID),
		zap.Strings("fields", fields),
	)
	s.events.publish(ctx, contracts.HomeUpdated, homeSubject(homeID), contracts.HomeUpdatedEvent{
		HomeID:     homeID,
		OwnerID:    callerID,
		Fields:     fields,
		OccurredAt: now,
	})

	dto := toHomeDTO(updated)
	return &dto, nil
}

// SetActive lists or unlists a home. Pending shared bookings are unaffected.
func (s *ListingService) SetActive(ctx context.Context, callerID uuid.UUID, homeID int64, active bool) (*HomeDTO, error) {
	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	now := s.clock.Now()
	var (
		updated *listing.Listing
		changed bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		l, err := st.Listings().FindByHandle(ctx, homeID)
		if err != nil {
			return err
		}
		changed, err = l.SetActive(callerID, active, now)
		if err != nil {
			return err
		}
		updated = l
		if !changed {
			return nil
		}
		l.IncrementVersion()
		return st.Listings().Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("home listing toggled",
			zap.Int64("home_id", homeID),
			zap.Bool("active", active),
		)
		s.events.publish(ctx, contracts.HomeActivated, homeSubject(homeID), contracts.HomeActivatedEvent{
			HomeID:     homeID,
			OwnerID:    callerID,
			Active:     active,
			OccurredAt: now,
		})
	}

	dto := toHomeDTO(updated)
	return &dto, nil
}

// SetAvailability opens or closes days on the owner's calendar. Booked days cannot change.
func (s *ListingService) SetAvailability(ctx context.Context, callerID uuid.UUID, homeID int64, req SetAvailabilityRequest) (*CalendarDTO, error) {
	if req.Available == nil {
		return nil, domain.NewValidationError("available is required")
	}
	release, err := s.locker.Acquire(ctx, lock.HomeKey(homeID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock home: %w", err)
	}
	defer release()

	now := s.clock.Now()
	var updated *calendar.Calendar
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st uow.Store) error {
		l, err := st.Listings().FindByHandle(ctx, homeID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(callerID) {
			return domain.ErrNotOwner
		}
		if req.Start > req.End {
			return domain.New(domain.KindValidation, domain.CodeInvalidDateRange, "start is after end")
		}

		cal, err := st.Calendars().FindByHome(ctx, homeID)
		if err != nil {
			return err
		}
		cal.Advance(calendar.DayOf(now))
		if err := cal.SetAvailability(req.Start, req.End, *req.Available); err != nil {
			return err
		}
		cal.IncrementVersion()
		if err := st.Calendars().Update(ctx, cal); err != nil {
			return err
		}
		updated = cal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("home availability changed",
		zap.Int64("home_id", homeID),
		zap.String("start", req.Start.String()),
		zap.String("end", req.End.String()),
		zap.Bool("available", *req.Available),
	)
	s.events.publish(ctx, contracts.HomeAvailabilityChanged, homeSubject(homeID), contracts.HomeAvailabilityChangedEvent{
		HomeID:     homeID,
		Start:      req.Start,
		End:        req.End,
		Available:  *req.Available,
		OccurredAt: now,
	})

	dto := toCalendarDTO(updated)
	return &dto, nil
}

// GetHome retrieves a single listing.
func (s *ListingService) GetHome(ctx context.Context, homeID int64) (*HomeDTO, error) {
	l, err := s.tx.Reader().Listings().FindByHandle(ctx, homeID)
	if err != nil {
		return nil, err
	}
	dto := toHomeDTO(l)
	return &dto, nil
}

// GetCalendar returns the availability snapshot as of today.
func (s *ListingService) GetCalendar(ctx context.Context, homeID int64) (*CalendarDTO, error) {
	cal, err := s.tx.Reader().Calendars().FindByHome(ctx, homeID)
	if err != nil {
		return nil, err
	}
	cal.Advance(calendar.DayOf(s.clock.Now()))
	dto := toCalendarDTO(cal)
	return &dto, nil
}

// ListOwnerHomes returns the homes registered by an owner.
func (s *ListingService) ListOwnerHomes(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]HomeDTO, int64, error) {
	homes, total, err := s.tx.Reader().Listings().FindByOwner(ctx, ownerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]HomeDTO, len(homes))
	for i, l := range homes {
		dtos[i] = toHomeDTO(l)
	}
	return dtos, total, nil
}

// --- Helpers ---

func (r UpdateHomeRequest) toUpdate() (listing.Update, []string, error) {
	var (
		u      listing.Update
		fields []string
	)
	if r.ContentRef != nil {
		ref, err := listing.ParseContentRef(*r.ContentRef)
		if err != nil {
			return u, nil, domain.New(domain.KindValidation, domain.CodeInvalidListing, err.Error())
		}
		u.ContentRef = &ref
		fields = append(fields, "content_ref")
	}
	if r.PriceA != nil {
		u.PriceA = r.PriceA
		fields = append(fields, "price_a")
	}
	if r.PriceB != nil {
		u.PriceB = r.PriceB
		fields = append(fields, "price_b")
	}
	if r.AcceptsA != nil {
		u.AcceptsA = r.AcceptsA
		fields = append(fields, "accepts_a")
	}
	if r.AcceptsB != nil {
		u.AcceptsB = r.AcceptsB
		fields = append(fields, "accepts_b")
	}
	if r.Free != nil {
		u.Free = r.Free
		fields = append(fields, "free")
	}
	return u, fields, nil
}

func homeSubject(homeID int64) string {
	return "home/" + strconv.FormatInt(homeID, 10)
}

func toHomeDTO(l *listing.Listing) HomeDTO {
	t := l.Terms()
	return HomeDTO{
		HomeID:     l.Handle(),
		OwnerID:    l.OwnerID(),
		ContentRef: t.ContentRef.String(),
		PriceA:     t.PriceA,
		PriceB:     t.PriceB,
		AcceptsA:   t.AcceptsA,
		AcceptsB:   t.AcceptsB,
		Free:       t.Free,
		Active:     l.IsActive(),
		Version:    l.Version(),
		CreatedAt:  l.CreatedAt(),
		UpdatedAt:  l.UpdatedAt(),
	}
}

func toCalendarDTO(cal *calendar.Calendar) CalendarDTO {
	slots := cal.Slots()
	days := make([]DayStatusDTO, len(slots))
	for i, st := range slots {
		days[i] = DayStatusDTO{Day: cal.WindowStart().AddDays(i), Status: st.String()}
	}
	return CalendarDTO{
		HomeID:      cal.HomeID(),
		WindowStart: cal.WindowStart(),
		WindowEnd:   cal.WindowEnd(),
		Horizon:     cal.Horizon(),
		Days:        days,
	}
}
