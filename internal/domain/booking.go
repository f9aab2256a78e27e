package domain

import "time"

type BookingKind string

const (
	KindFlight  BookingKind = "FLIGHT"
	KindHotel   BookingKind = "HOTEL"
	KindBus     BookingKind = "BUS"
	KindCruise  BookingKind = "CRUISE"
	KindPackage BookingKind = "PACKAGE"
)

func (k BookingKind) Valid() bool {
	switch k {
	case KindFlight, KindHotel, KindBus, KindCruise, KindPackage:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// transitions is the booking state machine. CANCELLED and COMPLETED are
// terminal.
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// PriceBreakdown amounts are in the catalog's minor currency unit.
type PriceBreakdown struct {
	Base      int64
	Taxes     int64
	Fees      int64
	Discounts int64
	Total     int64
}

// ResourceRef records one capacity claim a booking holds against a pool.
// UnitIDs is empty for count-based pools.
type ResourceRef struct {
	TokenID  string
	PoolID   string
	Quantity int
	UnitIDs  []string
	Released bool
}

type Booking struct {
	ID                 int64
	Reference          string
	Kind               BookingKind
	CustomerID         string
	Email              string
	Resources          []ResourceRef
	Price              PriceBreakdown
	Status             BookingStatus
	ExpiresAt          time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
