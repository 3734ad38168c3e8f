// Package memory is an in-process implementation of the unit of work used
// when the service runs without a database, and by the service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/listing"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	"github.com/tokenstay/service-stay/internal/platform/domain"
)

type state struct {
	listings  map[int64]*listing.Listing
	calendars map[int64]*calendar.Calendar
	pools     map[string]*booking.Pool
	receipts  []*booking.Receipt
}

func newState() *state {
	return &state{
		listings:  make(map[int64]*listing.Listing),
		calendars: make(map[int64]*calendar.Calendar),
		pools:     make(map[string]*booking.Pool),
	}
}

// UnitOfWork keeps every aggregate in memory. Transactions run one at a time
// and stage their writes until fn returns nil. Stored aggregates are cloned on
// the way in and out so callers never share state with the store.
type UnitOfWork struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data *state
}

// NewUnitOfWork creates an empty store.
func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{data: newState()}
}

// WithinTx runs fn with staged repositories and commits them if fn succeeds.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, s uow.Store) error) error {
	u.txMu.Lock()
	defer u.txMu.Unlock()

	t := &tx{base: u, staged: newState()}
	if err := fn(ctx, t); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	for k, v := range t.staged.listings {
		u.data.listings[k] = v
	}
	for k, v := range t.staged.calendars {
		u.data.calendars[k] = v
	}
	for k, v := range t.staged.pools {
		u.data.pools[k] = v
	}
	u.data.receipts = append(u.data.receipts, t.staged.receipts...)
	return nil
}

// Reader returns read-only repositories over committed state.
func (u *UnitOfWork) Reader() uow.Store {
	return &tx{base: u, readOnly: true}
}

// Ping always succeeds.
func (u *UnitOfWork) Ping(context.Context) error { return nil }

type tx struct {
	base     *UnitOfWork
	staged   *state
	readOnly bool
}

func (t *tx) Listings() listing.Repository        { return listingRepo{t} }
func (t *tx) Calendars() calendar.Repository      { return calendarRepo{t} }
func (t *tx) Receipts() booking.ReceiptRepository { return receiptRepo{t} }
func (t *tx) Pools() booking.PoolRepository       { return poolRepo{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return domain.New(domain.KindInternal, domain.CodeInternal, "write outside a transaction")
	}
	return nil
}

func (t *tx) listing(handle int64) (*listing.Listing, bool) {
	if !t.readOnly {
		if l, ok := t.staged.listings[handle]; ok {
			return l, true
		}
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	l, ok := t.base.data.listings[handle]
	return l, ok
}

func (t *tx) calendar(handle int64) (*calendar.Calendar, bool) {
	if !t.readOnly {
		if c, ok := t.staged.calendars[handle]; ok {
			return c, true
		}
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	c, ok := t.base.data.calendars[handle]
	return c, ok
}

func (t *tx) pool(id string) (*booking.Pool, bool) {
	if !t.readOnly {
		if p, ok := t.staged.pools[id]; ok {
			return p, true
		}
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	p, ok := t.base.data.pools[id]
	return p, ok
}

func homeNotFound(handle int64) error {
	return domain.ErrHomeNotFound.WithDetail("home_id", handle)
}

func staleVersion(entity string) error {
	return domain.NewConflictError(entity + " was modified by another transaction")
}

// --- listings ---

type listingRepo struct{ t *tx }

func (r listingRepo) NextHandle(context.Context) (int64, error) {
	var highest int64
	r.t.base.mu.RLock()
	for h := range r.t.base.data.listings {
		if h > highest {
			highest = h
		}
	}
	r.t.base.mu.RUnlock()
	if !r.t.readOnly {
		for h := range r.t.staged.listings {
			if h > highest {
				highest = h
			}
		}
	}
	return highest + 1, nil
}

func (r listingRepo) FindByHandle(_ context.Context, handle int64) (*listing.Listing, error) {
	l, ok := r.t.listing(handle)
	if !ok {
		return nil, homeNotFound(handle)
	}
	return l.Clone(), nil
}

func (r listingRepo) FindByOwner(_ context.Context, ownerID uuid.UUID, page, limit int) ([]*listing.Listing, int64, error) {
	seen := make(map[int64]*listing.Listing)
	r.t.base.mu.RLock()
	for h, l := range r.t.base.data.listings {
		seen[h] = l
	}
	r.t.base.mu.RUnlock()
	if !r.t.readOnly {
		for h, l := range r.t.staged.listings {
			seen[h] = l
		}
	}

	var owned []*listing.Listing
	for _, l := range seen {
		if l.IsOwnedBy(ownerID) {
			owned = append(owned, l.Clone())
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Handle() < owned[j].Handle() })
	return paginate(owned, page, limit), int64(len(owned)), nil
}

func (r listingRepo) Save(_ context.Context, l *listing.Listing) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, exists := r.t.listing(l.Handle()); exists {
		return domain.ErrHomeAlreadyRegistered
	}
	r.t.staged.listings[l.Handle()] = l.Clone()
	return nil
}

func (r listingRepo) Update(_ context.Context, l *listing.Listing) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	current, ok := r.t.listing(l.Handle())
	if !ok {
		return homeNotFound(l.Handle())
	}
	if current.Version() != l.Version()-1 {
		return staleVersion("home")
	}
	r.t.staged.listings[l.Handle()] = l.Clone()
	return nil
}

// --- calendars ---

type calendarRepo struct{ t *tx }

func (r calendarRepo) FindByHome(_ context.Context, homeID int64) (*calendar.Calendar, error) {
	c, ok := r.t.calendar(homeID)
	if !ok {
		return nil, homeNotFound(homeID)
	}
	return c.Clone(), nil
}

func (r calendarRepo) Save(_ context.Context, cal *calendar.Calendar) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, exists := r.t.calendar(cal.HomeID()); exists {
		return domain.NewConflictError("calendar already exists")
	}
	r.t.staged.calendars[cal.HomeID()] = cal.Clone()
	return nil
}

func (r calendarRepo) Update(_ context.Context, cal *calendar.Calendar) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	current, ok := r.t.calendar(cal.HomeID())
	if !ok {
		return homeNotFound(cal.HomeID())
	}
	if current.Version() != cal.Version()-1 {
		return staleVersion("calendar")
	}
	r.t.staged.calendars[cal.HomeID()] = cal.Clone()
	return nil
}

// --- receipts ---

type receiptRepo struct{ t *tx }

func (r receiptRepo) Append(_ context.Context, rc *booking.Receipt) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.staged.receipts = append(r.t.staged.receipts, rc)
	return nil
}

func (r receiptRepo) FindByPayer(_ context.Context, payerID uuid.UUID, page, limit int) ([]*booking.Receipt, int64, error) {
	return r.find(func(rc *booking.Receipt) bool { return rc.PayerID() == payerID }, page, limit)
}

func (r receiptRepo) FindByPayee(_ context.Context, payeeID uuid.UUID, page, limit int) ([]*booking.Receipt, int64, error) {
	return r.find(func(rc *booking.Receipt) bool { return rc.PayeeID() == payeeID }, page, limit)
}

func (r receiptRepo) find(match func(*booking.Receipt) bool, page, limit int) ([]*booking.Receipt, int64, error) {
	r.t.base.mu.RLock()
	all := append([]*booking.Receipt(nil), r.t.base.data.receipts...)
	r.t.base.mu.RUnlock()
	if !r.t.readOnly {
		all = append(all, r.t.staged.receipts...)
	}

	// Newest first, matching the database ordering.
	var out []*booking.Receipt
	for i := len(all) - 1; i >= 0; i-- {
		if match(all[i]) {
			out = append(out, all[i])
		}
	}
	return paginate(out, page, limit), int64(len(out)), nil
}

// --- pools ---

type poolRepo struct{ t *tx }

func (r poolRepo) FindByID(_ context.Context, id string) (*booking.Pool, error) {
	p, ok := r.t.pool(id)
	if !ok {
		return nil, domain.ErrPoolNotFound.WithDetail("pool_id", id)
	}
	return p.Clone(), nil
}

func (r poolRepo) Save(_ context.Context, p *booking.Pool) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, exists := r.t.pool(p.ID()); exists {
		return domain.NewConflictError("shared pool already exists")
	}
	r.t.staged.pools[p.ID()] = p.Clone()
	return nil
}

func (r poolRepo) Update(_ context.Context, p *booking.Pool) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	current, ok := r.t.pool(p.ID())
	if !ok {
		return domain.ErrPoolNotFound.WithDetail("pool_id", p.ID())
	}
	if current.Version() != p.Version()-1 {
		return staleVersion("shared pool")
	}
	r.t.staged.pools[p.ID()] = p.Clone()
	return nil
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return items
	}
	if page-1 > len(items)/limit {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
