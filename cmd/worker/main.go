package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/email"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/reference"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "travelbooking-worker").Logger()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	poolRepo := repository.NewPoolRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	bookingService := booking.NewService(
		bookingRepo,
		poolRepo,
		reference.NewGenerator(),
		producer,
		logger,
		cfg.Kafka.BookingEventsTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	// Settlement is idempotent, so the payments consumer trades commit
	// granularity for throughput with periodic commits.
	paymentsConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentResultsTopic,
		kafka.WithCommitInterval(time.Second))
	defer paymentsConsumer.Close()
	notificationsConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic,
		kafka.WithMaxWait(5*time.Second))
	defer notificationsConsumer.Close()

	emailSender := email.NewSender(logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return paymentsConsumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.PaymentResultEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Error().Err(err).Msg("decode payment result")
				return nil
			}
			if err := bookingService.OnPaymentResult(ctx, event.BookingReference, event.Success); err != nil {
				logger.Error().Err(err).Str("reference", event.BookingReference).Msg("apply payment result")
			}
			return nil
		})
	})

	g.Go(func() error {
		return notificationsConsumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Error().Err(err).Msg("decode notification")
				return nil
			}
			return emailSender.Send(ctx, event)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				expired, err := bookingService.ExpirePendingBookings(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("expire pending bookings")
					continue
				}
				if len(expired) > 0 {
					logger.Info().Int("count", len(expired)).Msg("expired pending bookings")
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := bookingService.Reconcile(ctx); err != nil {
					logger.Error().Err(err).Msg("reconcile pools")
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker shut down")
}
