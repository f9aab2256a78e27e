package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/metrics"
)

// OnPaymentResult settles a pending booking from a payment-gateway signal.
// Deliveries are at-least-once: a booking that already left PENDING is
// treated as a duplicate and acknowledged without side effects. The
// conditional transition in the repository guarantees capacity moves at most
// once even when duplicates race each other.
func (s *Service) OnPaymentResult(ctx context.Context, ref string, success bool) error {
	current, err := s.bookings.GetByReference(ctx, ref)
	if err != nil {
		return err
	}
	if current.Status != domain.BookingStatusPending {
		metrics.SettlementEventsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info().Str("reference", ref).Str("status", string(current.Status)).
			Msg("duplicate payment result ignored")
		return nil
	}

	if success {
		updated, err := s.bookings.Transition(ctx, ref, []domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusConfirmed, "")
		if errors.Is(err, domain.ErrInvalidTransition) {
			metrics.SettlementEventsTotal.WithLabelValues("duplicate").Inc()
			return nil
		}
		if err != nil {
			return err
		}
		metrics.SettlementEventsTotal.WithLabelValues("confirmed").Inc()
		s.releaseHoldsFor(ctx, updated)
		s.publish(ctx, "booking_confirmed", updated)
		return nil
	}

	updated, err := s.bookings.Transition(ctx, ref, []domain.BookingStatus{domain.BookingStatusPending}, domain.BookingStatusCancelled, "payment failed")
	if errors.Is(err, domain.ErrInvalidTransition) {
		metrics.SettlementEventsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	metrics.SettlementEventsTotal.WithLabelValues("cancelled").Inc()
	s.releaseResources(ctx, updated)
	s.publish(ctx, "booking_cancelled", updated)
	return nil
}

// CancelBooking is valid from PENDING and CONFIRMED. Cancelling an already
// cancelled booking is a no-op; cancelling a completed one is an invalid
// transition.
func (s *Service) CancelBooking(ctx context.Context, ref, reason string) (*domain.Booking, error) {
	current, err := s.bookings.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return current, nil
	}
	if current.Status == domain.BookingStatusCompleted {
		return nil, domain.ErrInvalidTransition
	}

	updated, err := s.bookings.Transition(ctx, ref,
		[]domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed},
		domain.BookingStatusCancelled, reason)
	if errors.Is(err, domain.ErrInvalidTransition) {
		// Lost a race with another cancel or the expiry sweep.
		if updated != nil && updated.Status == domain.BookingStatusCancelled {
			return updated, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	metrics.CancellationsTotal.Inc()
	s.releaseResources(ctx, updated)
	s.publish(ctx, "booking_cancelled", updated)
	return updated, nil
}

// CompleteBooking marks a confirmed booking as travelled. Held capacity is
// not returned: the units were consumed.
func (s *Service) CompleteBooking(ctx context.Context, ref string) (*domain.Booking, error) {
	updated, err := s.bookings.Transition(ctx, ref,
		[]domain.BookingStatus{domain.BookingStatusConfirmed}, domain.BookingStatusCompleted, "")
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking_completed", updated)
	return updated, nil
}

// ExpirePendingBookings cancels pending bookings whose payment window has
// closed and returns their capacity. Runs from the worker on a ticker.
func (s *Service) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.releaseResources(ctx, &expired[i])
		s.publish(ctx, "booking_expired", &expired[i])
	}
	return expired, nil
}

// Reconcile recomputes pool availability from unreleased tokens and repairs
// any drift left behind by failed releases or crashed reservations.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	corrected, err := s.pools.Reconcile(ctx, s.holdTTL)
	if err != nil {
		return 0, err
	}
	if corrected > 0 {
		metrics.ReconcileCorrectionsTotal.Add(float64(corrected))
		s.logger.Warn().Int64("pools_corrected", corrected).Msg("availability drift repaired")
	}
	return corrected, nil
}

// releaseResources returns every capacity claim a booking holds. Release is
// idempotent at the token level, so retried settlement or cancellation
// signals cannot double-release. Failures are logged and left to Reconcile.
func (s *Service) releaseResources(ctx context.Context, b *domain.Booking) {
	for _, res := range b.Resources {
		if err := s.pools.Release(ctx, res.TokenID); err != nil {
			s.logger.Error().Err(err).
				Str("reference", b.Reference).
				Str("token_id", res.TokenID).
				Msg("capacity release failed, reconciliation will repair")
		}
	}
	s.releaseHoldsFor(ctx, b)
}

func (s *Service) releaseHoldsFor(ctx context.Context, b *domain.Booking) {
	if s.cache == nil {
		return
	}
	for _, res := range b.Resources {
		for _, unitID := range res.UnitIDs {
			_ = s.cache.ReleaseUnitHold(ctx, res.PoolID, unitID)
		}
	}
}

func (s *Service) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		Reference:  b.Reference,
		Kind:       string(b.Kind),
		CustomerID: b.CustomerID,
		Email:      b.Email,
		Status:     string(b.Status),
		Total:      b.Price.Total,
		ExpiresAt:  b.ExpiresAt,
		OccurredAt: time.Now(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, b.Reference, event); err != nil {
		s.logger.Warn().Err(err).Str("reference", b.Reference).Str("event", eventType).
			Msg("publish booking event failed")
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, b.Reference, event); err != nil {
			s.logger.Warn().Err(err).Str("reference", b.Reference).Str("event", eventType).
				Msg("publish notification failed")
		}
	}
}
