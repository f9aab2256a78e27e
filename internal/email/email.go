package email

import (
	"context"

	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/rs/zerolog"
)

type Sender struct {
	logger zerolog.Logger
}

func NewSender(logger zerolog.Logger) *Sender {
	return &Sender{logger: logger.With().Str("component", "email").Logger()}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	s.logger.Info().
		Str("to", event.Email).
		Str("event", event.Type).
		Str("reference", event.Reference).
		Str("kind", event.Kind).
		Msg("send booking notification")
	return nil
}
