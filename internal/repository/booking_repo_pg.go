package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	CreatePending(ctx context.Context, booking *domain.Booking) error
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error)
	Transition(ctx context.Context, reference string, from []domain.BookingStatus, to domain.BookingStatus, reason string) (*domain.Booking, error)
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, reference, kind, customer_id, email, status, base_amount, tax_amount, fee_amount, discount_amount, total_amount, expires_at, cancelled_at, cancellation_reason, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var reason *string
	if err := row.Scan(&b.ID, &b.Reference, &b.Kind, &b.CustomerID, &b.Email, &b.Status,
		&b.Price.Base, &b.Price.Taxes, &b.Price.Fees, &b.Price.Discounts, &b.Price.Total,
		&b.ExpiresAt, &b.CancelledAt, &reason, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if reason != nil {
		b.CancellationReason = *reason
	}
	return &b, nil
}

func (r *PGBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (reference, kind, customer_id, email, status, base_amount, tax_amount, fee_amount, discount_amount, total_amount, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		booking.Reference, booking.Kind, booking.CustomerID, booking.Email, booking.Status,
		booking.Price.Base, booking.Price.Taxes, booking.Price.Fees, booking.Price.Discounts, booking.Price.Total,
		booking.ExpiresAt).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	// Tokens become part of the booking in the same transaction, so a
	// persisted booking always owns its claims.
	tokenIDs := make([]string, 0, len(booking.Resources))
	for _, res := range booking.Resources {
		tokenIDs = append(tokenIDs, res.TokenID)
	}
	if _, err := tx.Exec(ctx, `UPDATE reservation_tokens SET booking_reference=$2 WHERE id = ANY($1)`, tokenIDs, booking.Reference); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference=$1`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadResources(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE reference=$1)`, reference).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Transition moves a booking between statuses with a conditional update so
// that concurrent writers (duplicate payment callbacks, a cancel racing the
// expiry sweep) cannot both apply side effects. Zero affected rows means the
// booking is not in an allowed source status; the current record is returned
// alongside ErrInvalidTransition so the caller can detect duplicates.
func (r *PGBookingRepository) Transition(ctx context.Context, reference string, from []domain.BookingStatus, to domain.BookingStatus, reason string) (*domain.Booking, error) {
	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, string(s))
	}

	var row pgx.Row
	if to == domain.BookingStatusCancelled {
		row = r.db.QueryRow(ctx, `UPDATE bookings SET status=$2, cancelled_at=now(), cancellation_reason=$3, updated_at=now()
			WHERE reference=$1 AND status = ANY($4)
			RETURNING `+bookingColumns, reference, to, reason, fromStrs)
	} else {
		row = r.db.QueryRow(ctx, `UPDATE bookings SET status=$2, updated_at=now()
			WHERE reference=$1 AND status = ANY($3)
			RETURNING `+bookingColumns, reference, to, fromStrs)
	}

	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		current, getErr := r.GetByReference(ctx, reference)
		if getErr != nil {
			return nil, getErr
		}
		return current, domain.ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadResources(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `UPDATE bookings SET status=$1, cancelled_at=now(), cancellation_reason=$2, updated_at=now()
		WHERE status=$3 AND expires_at <= $4
		RETURNING `+bookingColumns,
		domain.BookingStatusCancelled, "payment window expired", domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expired {
		if err := r.loadResources(ctx, &expired[i]); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

func (r *PGBookingRepository) loadResources(ctx context.Context, b *domain.Booking) error {
	rows, err := r.db.Query(ctx, `SELECT id, pool_id, quantity, unit_ids, released FROM reservation_tokens
		WHERE booking_reference=$1 ORDER BY created_at, id`, b.Reference)
	if err != nil {
		return err
	}
	defer rows.Close()

	b.Resources = b.Resources[:0]
	for rows.Next() {
		var res domain.ResourceRef
		if err := rows.Scan(&res.TokenID, &res.PoolID, &res.Quantity, &res.UnitIDs, &res.Released); err != nil {
			return err
		}
		b.Resources = append(b.Resources, res)
	}
	return rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
