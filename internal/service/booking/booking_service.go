package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/metrics"
	"github.com/Domenick1991/travelbooking/internal/pricing"
	"github.com/Domenick1991/travelbooking/internal/reference"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/rs/zerolog"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, reference string) (*domain.Booking, error)
	ListBookings(ctx context.Context, customerID string) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, reference, reason string) (*domain.Booking, error)
	CompleteBooking(ctx context.Context, reference string) (*domain.Booking, error)
	OnPaymentResult(ctx context.Context, reference string, success bool) error
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
	Reconcile(ctx context.Context) (int64, error)
}

type Cache interface {
	AcquireUnitHold(ctx context.Context, poolID, unitID string, ttl time.Duration) (bool, error)
	ReleaseUnitHold(ctx context.Context, poolID, unitID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Service struct {
	bookings           repository.BookingRepository
	pools              repository.PoolRepository
	refs               *reference.Generator
	cache              Cache
	producer           Producer
	logger             zerolog.Logger
	eventsTopic        string
	notificationsTopic string
	holdTTL            time.Duration
	unitHoldTTL        time.Duration
}

type ServiceOption func(*Service)

func WithNotificationsTopic(topic string) ServiceOption {
	return func(s *Service) {
		s.notificationsTopic = topic
	}
}

func WithCache(cache Cache, unitHoldTTL time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.unitHoldTTL = unitHoldTTL
	}
}

func NewService(
	bookings repository.BookingRepository,
	pools repository.PoolRepository,
	refs *reference.Generator,
	producer Producer,
	logger zerolog.Logger,
	eventsTopic string,
	holdTTL time.Duration,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		bookings:    bookings,
		pools:       pools,
		refs:        refs,
		producer:    producer,
		logger:      logger.With().Str("component", "booking").Logger(),
		eventsTopic: eventsTopic,
		holdTTL:     holdTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBookingInput carries one normalized booking request. CustomerID is
// resolved once at the API boundary. PoolIDs holds the flight legs in
// itinerary order (one or two) and exactly one pool id for every other kind.
type CreateBookingInput struct {
	Kind         domain.BookingKind `json:"kind"`
	CustomerID   string             `json:"customer_id"`
	Email        string             `json:"email"`
	PoolIDs      []string           `json:"pool_ids"`
	Passengers   int                `json:"passengers,omitempty"`
	CheckIn      time.Time          `json:"check_in,omitempty"`
	CheckOut     time.Time          `json:"check_out,omitempty"`
	Rooms        int                `json:"rooms,omitempty"`
	SeatIDs      []string           `json:"seat_ids,omitempty"`
	Guests       int                `json:"guests,omitempty"`
	Participants int                `json:"participants,omitempty"`
}

// resourceRequest is one capacity claim the coordinator must acquire.
type resourceRequest struct {
	poolID   string
	quantity int
	unitIDs  []string
}

// CreateBooking runs the reservation sequence: validate, reserve capacity
// across all referenced pools, price, generate a unique reference, persist
// the pending booking. Any failure after capacity was taken unwinds the
// acquired tokens, so a multi-pool booking is all-or-nothing.
func (s *Service) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	poolsByID, err := s.resolvePools(ctx, input)
	if err != nil {
		return nil, err
	}

	requests := buildRequests(input)
	// Pools are always reserved in pool-id order regardless of itinerary
	// order, so two bookings touching the same pools can never deadlock.
	sort.Slice(requests, func(i, j int) bool { return requests[i].poolID < requests[j].poolID })

	heldUnits, err := s.acquireUnitHolds(ctx, requests)
	if err != nil {
		if isUnitUnavailable(err) {
			metrics.CapacityConflictsTotal.WithLabelValues(string(input.Kind)).Inc()
		}
		return nil, err
	}

	tokens, err := s.reserveAll(ctx, requests)
	if err != nil {
		s.releaseUnitHolds(ctx, heldUnits)
		if errors.Is(err, domain.ErrInsufficientCapacity) || isUnitUnavailable(err) {
			metrics.CapacityConflictsTotal.WithLabelValues(string(input.Kind)).Inc()
		}
		return nil, err
	}

	price, err := quote(input, poolsByID)
	if err != nil {
		s.unwind(ctx, tokens)
		s.releaseUnitHolds(ctx, heldUnits)
		return nil, err
	}

	ref, err := s.refs.GenerateUnique(ctx, referencePrefix(input.Kind), s.bookings.ReferenceExists)
	if err != nil {
		s.unwind(ctx, tokens)
		s.releaseUnitHolds(ctx, heldUnits)
		if errors.Is(err, reference.ErrCollisionExhausted) {
			s.logger.Error().Err(err).Msg("reference space exhausted")
		}
		return nil, err
	}

	booking := &domain.Booking{
		Reference:  ref,
		Kind:       input.Kind,
		CustomerID: input.CustomerID,
		Email:      input.Email,
		Price:      price,
		Status:     domain.BookingStatusPending,
		ExpiresAt:  time.Now().Add(s.holdTTL),
	}
	for _, t := range tokens {
		booking.Resources = append(booking.Resources, domain.ResourceRef{
			TokenID:  t.ID,
			PoolID:   t.PoolID,
			Quantity: t.Quantity,
			UnitIDs:  t.UnitIDs,
		})
	}

	if err := s.bookings.CreatePending(ctx, booking); err != nil {
		s.unwind(ctx, tokens)
		s.releaseUnitHolds(ctx, heldUnits)
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	metrics.ReservationsTotal.WithLabelValues(string(input.Kind)).Inc()
	s.publish(ctx, "booking_created", booking)
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, ref string) (*domain.Booking, error) {
	return s.bookings.GetByReference(ctx, ref)
}

func (s *Service) ListBookings(ctx context.Context, customerID string) ([]domain.Booking, error) {
	return s.bookings.ListByCustomer(ctx, customerID)
}

func (s *Service) resolvePools(ctx context.Context, input CreateBookingInput) (map[string]*domain.Pool, error) {
	poolsByID := make(map[string]*domain.Pool, len(input.PoolIDs))
	for _, id := range input.PoolIDs {
		if _, seen := poolsByID[id]; seen {
			return nil, domain.NewValidationError("pool_ids", "duplicate pool id "+id)
		}
		pool, err := s.pools.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !pool.Active {
			return nil, fmt.Errorf("pool %s is inactive: %w", id, domain.ErrNotFound)
		}
		if pool.Kind != input.Kind {
			return nil, domain.NewValidationError("pool_ids", fmt.Sprintf("pool %s is not a %s pool", id, input.Kind))
		}
		poolsByID[id] = pool
	}
	return poolsByID, nil
}

// reserveAll claims every request in order. On failure the already acquired
// tokens are released in reverse order before the error is returned.
func (s *Service) reserveAll(ctx context.Context, requests []resourceRequest) ([]*domain.ReservationToken, error) {
	tokens := make([]*domain.ReservationToken, 0, len(requests))
	for _, req := range requests {
		var token *domain.ReservationToken
		var err error
		if len(req.unitIDs) > 0 {
			token, err = s.pools.TryReserveUnits(ctx, req.poolID, req.unitIDs)
		} else {
			token, err = s.pools.TryReserve(ctx, req.poolID, req.quantity)
		}
		if err != nil {
			s.unwind(ctx, tokens)
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// unwind releases partially acquired tokens. A failed release is logged and
// left to the reconciliation job, which sweeps unattached tokens; it is
// never silently dropped.
func (s *Service) unwind(ctx context.Context, tokens []*domain.ReservationToken) {
	for i := len(tokens) - 1; i >= 0; i-- {
		if err := s.pools.Release(ctx, tokens[i].ID); err != nil {
			s.logger.Error().Err(err).
				Str("token_id", tokens[i].ID).
				Str("pool_id", tokens[i].PoolID).
				Msg("unwind release failed, reconciliation will repair")
		}
	}
}

type heldUnit struct {
	poolID string
	unitID string
}

func (s *Service) acquireUnitHolds(ctx context.Context, requests []resourceRequest) ([]heldUnit, error) {
	if s.cache == nil {
		return nil, nil
	}
	var held []heldUnit
	for _, req := range requests {
		for _, unitID := range req.unitIDs {
			ok, err := s.cache.AcquireUnitHold(ctx, req.poolID, unitID, s.unitHoldTTL)
			if err != nil {
				s.releaseUnitHolds(ctx, held)
				return nil, err
			}
			if !ok {
				s.releaseUnitHolds(ctx, held)
				return nil, &domain.UnitUnavailableError{PoolID: req.poolID, UnitID: unitID}
			}
			held = append(held, heldUnit{poolID: req.poolID, unitID: unitID})
		}
	}
	return held, nil
}

func (s *Service) releaseUnitHolds(ctx context.Context, held []heldUnit) {
	if s.cache == nil {
		return
	}
	for _, h := range held {
		_ = s.cache.ReleaseUnitHold(ctx, h.poolID, h.unitID)
	}
}

func validate(input CreateBookingInput) error {
	if !input.Kind.Valid() {
		return domain.NewValidationError("kind", "unknown booking kind")
	}
	if input.CustomerID == "" {
		return domain.NewValidationError("customer_id", "is required")
	}
	if input.Email == "" {
		return domain.NewValidationError("email", "is required")
	}
	if len(input.PoolIDs) == 0 {
		return domain.NewValidationError("pool_ids", "at least one pool is required")
	}

	switch input.Kind {
	case domain.KindFlight:
		if len(input.PoolIDs) > 2 {
			return domain.NewValidationError("pool_ids", "a flight booking has at most an outbound and a return leg")
		}
		if input.Passengers <= 0 {
			return domain.NewValidationError("passengers", "must be positive")
		}
	case domain.KindHotel:
		if len(input.PoolIDs) != 1 {
			return domain.NewValidationError("pool_ids", "exactly one room type is required")
		}
		if input.Rooms <= 0 {
			return domain.NewValidationError("rooms", "must be positive")
		}
		if _, err := pricing.Nights(input.CheckIn, input.CheckOut); err != nil {
			return err
		}
	case domain.KindBus:
		if len(input.PoolIDs) != 1 {
			return domain.NewValidationError("pool_ids", "exactly one bus is required")
		}
		if len(input.SeatIDs) == 0 {
			return domain.NewValidationError("seat_ids", "at least one seat is required")
		}
		seen := make(map[string]bool, len(input.SeatIDs))
		for _, seat := range input.SeatIDs {
			if seen[seat] {
				return domain.NewValidationError("seat_ids", "duplicate seat "+seat)
			}
			seen[seat] = true
		}
	case domain.KindCruise:
		if len(input.PoolIDs) != 1 {
			return domain.NewValidationError("pool_ids", "exactly one cabin category is required")
		}
		if input.Guests <= 0 {
			return domain.NewValidationError("guests", "must be positive")
		}
	case domain.KindPackage:
		if len(input.PoolIDs) != 1 {
			return domain.NewValidationError("pool_ids", "exactly one package is required")
		}
		if input.Participants <= 0 {
			return domain.NewValidationError("participants", "must be positive")
		}
	}
	return nil
}

func buildRequests(input CreateBookingInput) []resourceRequest {
	switch input.Kind {
	case domain.KindFlight:
		requests := make([]resourceRequest, 0, len(input.PoolIDs))
		for _, id := range input.PoolIDs {
			requests = append(requests, resourceRequest{poolID: id, quantity: input.Passengers})
		}
		return requests
	case domain.KindHotel:
		return []resourceRequest{{poolID: input.PoolIDs[0], quantity: input.Rooms}}
	case domain.KindBus:
		return []resourceRequest{{poolID: input.PoolIDs[0], quantity: len(input.SeatIDs), unitIDs: input.SeatIDs}}
	case domain.KindCruise:
		return []resourceRequest{{poolID: input.PoolIDs[0], quantity: input.Guests}}
	case domain.KindPackage:
		return []resourceRequest{{poolID: input.PoolIDs[0], quantity: input.Participants}}
	}
	return nil
}

// quote dispatches on the booking kind exactly once; leg fares keep the
// itinerary order even though reservation order is sorted.
func quote(input CreateBookingInput, poolsByID map[string]*domain.Pool) (domain.PriceBreakdown, error) {
	switch input.Kind {
	case domain.KindFlight:
		fares := make([]int64, 0, len(input.PoolIDs))
		for _, id := range input.PoolIDs {
			fares = append(fares, poolsByID[id].UnitPrice)
		}
		return pricing.Flight(fares, input.Passengers)
	case domain.KindHotel:
		return pricing.Hotel(poolsByID[input.PoolIDs[0]].UnitPrice, input.CheckIn, input.CheckOut, input.Rooms)
	case domain.KindBus:
		return pricing.Bus(poolsByID[input.PoolIDs[0]].UnitPrice, len(input.SeatIDs))
	case domain.KindCruise:
		return pricing.Cruise(poolsByID[input.PoolIDs[0]].UnitPrice, input.Guests)
	case domain.KindPackage:
		return pricing.Package(poolsByID[input.PoolIDs[0]].UnitPrice, input.Participants)
	}
	return domain.PriceBreakdown{}, domain.NewValidationError("kind", "unknown booking kind")
}

func referencePrefix(kind domain.BookingKind) string {
	switch kind {
	case domain.KindFlight:
		return "FL"
	case domain.KindHotel:
		return "HT"
	case domain.KindBus:
		return "BS"
	case domain.KindCruise:
		return "CR"
	case domain.KindPackage:
		return "PK"
	}
	return "BK"
}

func isUnitUnavailable(err error) bool {
	var ue *domain.UnitUnavailableError
	return errors.As(err, &ue)
}

var _ BookingUseCase = (*Service)(nil)
