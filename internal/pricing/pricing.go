// Package pricing computes booking totals. All functions are pure; amounts
// are in the catalog's minor currency unit.
package pricing

import (
	"math"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

const (
	flightTaxRate         = 0.18
	flightFeePerPassenger = 199
)

// Flight prices one itinerary: per leg, passengers pay the leg fare, tax is
// applied to the pre-tax pre-fee leg subtotal, and a fixed fee is charged
// per passenger. Legs are priced separately and summed.
func Flight(legFares []int64, passengers int) (domain.PriceBreakdown, error) {
	if passengers <= 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("passengers", "must be positive")
	}
	if len(legFares) == 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("legs", "at least one leg is required")
	}
	var p domain.PriceBreakdown
	for _, fare := range legFares {
		if fare < 0 {
			return domain.PriceBreakdown{}, domain.NewValidationError("legs", "fare must not be negative")
		}
		base := int64(passengers) * fare
		p.Base += base
		p.Taxes += int64(math.Round(float64(base) * flightTaxRate))
		p.Fees += flightFeePerPassenger * int64(passengers)
	}
	p.Total = p.Base + p.Taxes + p.Fees - p.Discounts
	return p, nil
}

// Hotel charges the nightly rate per room per night. Nights are calendar-day
// differences; a stay of less than one day still counts as one night, and a
// check-out on or before check-in is rejected.
func Hotel(nightly int64, checkIn, checkOut time.Time, rooms int) (domain.PriceBreakdown, error) {
	if rooms <= 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("rooms", "must be positive")
	}
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	base := nightly * int64(nights) * int64(rooms)
	return domain.PriceBreakdown{Base: base, Total: base}, nil
}

func Package(perPerson int64, participants int) (domain.PriceBreakdown, error) {
	if participants <= 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("participants", "must be positive")
	}
	base := perPerson * int64(participants)
	return domain.PriceBreakdown{Base: base, Total: base}, nil
}

func Bus(farePerSeat int64, seats int) (domain.PriceBreakdown, error) {
	if seats <= 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("seats", "must be positive")
	}
	base := farePerSeat * int64(seats)
	return domain.PriceBreakdown{Base: base, Total: base}, nil
}

func Cruise(cabinPrice int64, guests int) (domain.PriceBreakdown, error) {
	if guests <= 0 {
		return domain.PriceBreakdown{}, domain.NewValidationError("guests", "must be positive")
	}
	base := cabinPrice * int64(guests)
	return domain.PriceBreakdown{Base: base, Total: base}, nil
}

// Nights returns the calendar-day difference between check-in and check-out,
// ignoring the time of day on either end. Non-positive stays are a
// validation error, never a zero charge.
func Nights(checkIn, checkOut time.Time) (int, error) {
	in := truncateToDay(checkIn)
	out := truncateToDay(checkOut)
	nights := int(out.Sub(in) / (24 * time.Hour))
	if nights <= 0 {
		return 0, domain.NewValidationError("check_out", "must be after check_in")
	}
	return nights, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
