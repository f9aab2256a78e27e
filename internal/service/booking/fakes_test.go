package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/google/uuid"
)

// fakePoolRepo implements repository.PoolRepository with real capacity
// semantics behind a mutex, so the coordinator can be exercised under
// genuine concurrency.
type fakePoolRepo struct {
	mu     sync.Mutex
	pools  map[string]*domain.Pool
	units  map[string]map[string]bool
	tokens map[string]*domain.ReservationToken
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{
		pools:  make(map[string]*domain.Pool),
		units:  make(map[string]map[string]bool),
		tokens: make(map[string]*domain.ReservationToken),
	}
}

func (f *fakePoolRepo) addPool(p *domain.Pool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[p.ID] = p
}

func (f *fakePoolRepo) addUnits(poolID string, unitIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	units := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		units[id] = false
	}
	f.units[poolID] = units
}

func (f *fakePoolRepo) available(poolID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[poolID].AvailableCapacity
}

func (f *fakePoolRepo) unitBooked(poolID, unitID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[poolID][unitID]
}

func (f *fakePoolRepo) List(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pools []domain.Pool
	for _, p := range f.pools {
		if p.Kind == kind && p.Active {
			pools = append(pools, *p)
		}
	}
	return pools, nil
}

func (f *fakePoolRepo) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePoolRepo) Create(ctx context.Context, pool *domain.Pool, unitIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool.AvailableCapacity = pool.TotalCapacity
	f.pools[pool.ID] = pool
	if len(unitIDs) > 0 {
		units := make(map[string]bool, len(unitIDs))
		for _, id := range unitIDs {
			units[id] = false
		}
		f.units[pool.ID] = units
	}
	return nil
}

func (f *fakePoolRepo) SetActive(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = active
	return nil
}

func (f *fakePoolRepo) ListUnits(ctx context.Context, poolID string) ([]domain.PoolUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var units []domain.PoolUnit
	for id, booked := range f.units[poolID] {
		units = append(units, domain.PoolUnit{PoolID: poolID, UnitID: id, Booked: booked})
	}
	return units, nil
}

func (f *fakePoolRepo) TryReserve(ctx context.Context, poolID string, quantity int) (*domain.ReservationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[poolID]
	if !ok || !p.Active {
		return nil, domain.ErrNotFound
	}
	if p.AvailableCapacity < quantity {
		return nil, domain.ErrInsufficientCapacity
	}
	p.AvailableCapacity -= quantity
	token := &domain.ReservationToken{ID: uuid.NewString(), PoolID: poolID, Quantity: quantity, UnitIDs: []string{}}
	f.tokens[token.ID] = token
	return token, nil
}

func (f *fakePoolRepo) TryReserveUnits(ctx context.Context, poolID string, unitIDs []string) (*domain.ReservationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[poolID]
	if !ok || !p.Active {
		return nil, domain.ErrNotFound
	}
	units := f.units[poolID]
	for _, id := range unitIDs {
		booked, known := units[id]
		if !known || booked {
			return nil, &domain.UnitUnavailableError{PoolID: poolID, UnitID: id}
		}
	}
	for _, id := range unitIDs {
		units[id] = true
	}
	p.AvailableCapacity -= len(unitIDs)
	token := &domain.ReservationToken{ID: uuid.NewString(), PoolID: poolID, Quantity: len(unitIDs), UnitIDs: unitIDs}
	f.tokens[token.ID] = token
	return token, nil
}

func (f *fakePoolRepo) Release(ctx context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[tokenID]
	if !ok {
		return domain.ErrNotFound
	}
	if token.Released {
		return nil
	}
	token.Released = true
	p := f.pools[token.PoolID]
	p.AvailableCapacity += token.Quantity
	for _, id := range token.UnitIDs {
		f.units[token.PoolID][id] = false
	}
	return nil
}

func (f *fakePoolRepo) Reconcile(ctx context.Context, staleAfter time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held := make(map[string]int)
	for _, t := range f.tokens {
		if !t.Released {
			held[t.PoolID] += t.Quantity
		}
	}
	var corrected int64
	for id, p := range f.pools {
		want := p.TotalCapacity - held[id]
		if p.AvailableCapacity != want {
			p.AvailableCapacity = want
			corrected++
		}
	}
	return corrected, nil
}

// fakeBookingRepo keeps bookings in memory with the same conditional
// transition semantics as the postgres repository.
type fakeBookingRepo struct {
	mu     sync.Mutex
	byRef  map[string]*domain.Booking
	nextID int64
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{byRef: make(map[string]*domain.Booking)}
}

func (f *fakeBookingRepo) CreatePending(ctx context.Context, booking *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	booking.ID = f.nextID
	booking.Status = domain.BookingStatusPending
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	f.byRef[booking.Reference] = &cp
	return nil
}

func (f *fakeBookingRepo) GetByReference(ctx context.Context, ref string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepo) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byRef[ref]
	return ok, nil
}

func (f *fakeBookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bookings []domain.Booking
	for _, b := range f.byRef {
		if b.CustomerID == customerID {
			bookings = append(bookings, *b)
		}
	}
	return bookings, nil
}

func (f *fakeBookingRepo) Transition(ctx context.Context, ref string, from []domain.BookingStatus, to domain.BookingStatus, reason string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
		}
	}
	if !allowed {
		cp := *b
		return &cp, domain.ErrInvalidTransition
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	if to == domain.BookingStatusCancelled {
		now := time.Now()
		b.CancelledAt = &now
		b.CancellationReason = reason
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepo) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []domain.Booking
	for _, b := range f.byRef {
		if b.Status == domain.BookingStatusPending && !b.ExpiresAt.After(deadline) {
			b.Status = domain.BookingStatusCancelled
			now := time.Now()
			b.CancelledAt = &now
			b.CancellationReason = "payment window expired"
			expired = append(expired, *b)
		}
	}
	return expired, nil
}
