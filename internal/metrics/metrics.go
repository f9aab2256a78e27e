package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_reservations_total",
		Help: "Bookings successfully placed in pending state, by kind.",
	}, []string{"kind"})

	CapacityConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_capacity_conflicts_total",
		Help: "Reservation attempts rejected for insufficient capacity or taken units, by kind.",
	}, []string{"kind"})

	SettlementEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_settlement_events_total",
		Help: "Payment results applied, by outcome (confirmed, cancelled, duplicate).",
	}, []string{"outcome"})

	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_cancellations_total",
		Help: "Bookings cancelled by user action.",
	})

	ReconcileCorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_reconcile_corrections_total",
		Help: "Pools whose availability was repaired by the reconciliation job.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
