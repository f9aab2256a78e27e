package domain

import "time"

// Pool tracks total and available capacity for one sellable unit: a flight
// leg, a hotel room type, a bus, a cruise cabin category or a package
// departure. UnitPrice is the per-unit rate the price formulas consume
// (leg fare, nightly rate, seat fare, per-guest cabin price, per-person
// package price).
type Pool struct {
	ID                string
	Kind              BookingKind
	Name              string
	TotalCapacity     int
	AvailableCapacity int
	UnitPrice         int64
	Active            bool
	HasUnits          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PoolUnit is a named unit inside a seat-map pool (a bus seat).
type PoolUnit struct {
	PoolID string
	UnitID string
	Booked bool
}

// ReservationToken is durable proof that a quantity (and optionally a set
// of named units) was claimed from a pool. Releasing a token is idempotent:
// capacity is returned only on the transition released=false -> true.
type ReservationToken struct {
	ID               string
	PoolID           string
	Quantity         int
	UnitIDs          []string
	BookingReference string
	Released         bool
	CreatedAt        time.Time
}
