package kafka

import "time"

// BookingEvent is published on every booking lifecycle change.
type BookingEvent struct {
	Type       string    `json:"type"`
	Reference  string    `json:"reference"`
	Kind       string    `json:"kind"`
	CustomerID string    `json:"customer_id"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentResultEvent arrives from the payment gateway integration. Delivery
// is at-least-once; consumers must tolerate duplicates and reordering.
type PaymentResultEvent struct {
	BookingReference string            `json:"booking_reference"`
	Success          bool              `json:"success"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
