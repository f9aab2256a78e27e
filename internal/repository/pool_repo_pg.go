package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolRepository interface {
	List(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error)
	GetByID(ctx context.Context, id string) (*domain.Pool, error)
	Create(ctx context.Context, pool *domain.Pool, unitIDs []string) error
	SetActive(ctx context.Context, id string, active bool) error
	ListUnits(ctx context.Context, poolID string) ([]domain.PoolUnit, error)
	TryReserve(ctx context.Context, poolID string, quantity int) (*domain.ReservationToken, error)
	TryReserveUnits(ctx context.Context, poolID string, unitIDs []string) (*domain.ReservationToken, error)
	Release(ctx context.Context, tokenID string) error
	Reconcile(ctx context.Context, staleAfter time.Duration) (int64, error)
}

type PGPoolRepository struct {
	db *pgxpool.Pool
}

func NewPoolRepository(db *pgxpool.Pool) PoolRepository {
	return &PGPoolRepository{db: db}
}

const poolColumns = `id, kind, name, total_capacity, available_capacity, unit_price, active, has_units, created_at, updated_at`

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	if err := row.Scan(&p.ID, &p.Kind, &p.Name, &p.TotalCapacity, &p.AvailableCapacity, &p.UnitPrice, &p.Active, &p.HasUnits, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPoolRepository) List(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error) {
	rows, err := r.db.Query(ctx, `SELECT `+poolColumns+` FROM resource_pools WHERE kind=$1 AND active ORDER BY id`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pools := make([]domain.Pool, 0)
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

func (r *PGPoolRepository) GetByID(ctx context.Context, id string) (*domain.Pool, error) {
	p, err := scanPool(r.db.QueryRow(ctx, `SELECT `+poolColumns+` FROM resource_pools WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (r *PGPoolRepository) Create(ctx context.Context, pool *domain.Pool, unitIDs []string) error {
	if pool.HasUnits && len(unitIDs) != pool.TotalCapacity {
		return domain.NewValidationError("units", "unit list must match total capacity")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	pool.AvailableCapacity = pool.TotalCapacity
	if err := tx.QueryRow(ctx, `INSERT INTO resource_pools (id, kind, name, total_capacity, available_capacity, unit_price, active, has_units)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		pool.ID, pool.Kind, pool.Name, pool.TotalCapacity, pool.UnitPrice, pool.Active, pool.HasUnits).
		Scan(&pool.CreatedAt, &pool.UpdatedAt); err != nil {
		return err
	}

	for _, unitID := range unitIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO pool_units (pool_id, unit_id) VALUES ($1, $2)`, pool.ID, unitID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGPoolRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.Exec(ctx, `UPDATE resource_pools SET active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGPoolRepository) ListUnits(ctx context.Context, poolID string) ([]domain.PoolUnit, error) {
	rows, err := r.db.Query(ctx, `SELECT pool_id, unit_id, booked FROM pool_units WHERE pool_id=$1 ORDER BY unit_id`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make([]domain.PoolUnit, 0)
	for rows.Next() {
		var u domain.PoolUnit
		if err := rows.Scan(&u.PoolID, &u.UnitID, &u.Booked); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// TryReserve closes the check-then-act window with a single conditional
// decrement; the affected-row count decides between success and
// ErrInsufficientCapacity. The token row is written in the same transaction
// so a claim can never exist without durable proof of it.
func (r *PGPoolRepository) TryReserve(ctx context.Context, poolID string, quantity int) (*domain.ReservationToken, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be positive")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `UPDATE resource_pools SET available_capacity = available_capacity - $2, updated_at = now()
		WHERE id=$1 AND active AND available_capacity >= $2`, poolID, quantity)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM resource_pools WHERE id=$1 AND active)`, poolID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrInsufficientCapacity
	}

	token, err := insertToken(ctx, tx, poolID, quantity, nil)
	if err != nil {
		return nil, err
	}
	return token, tx.Commit(ctx)
}

// TryReserveUnits is all-or-nothing: the requested unit rows are locked,
// every one must be unbooked, and the pool counter moves together with the
// unit flags. A conflict reports the first unavailable unit and leaves
// nothing booked.
func (r *PGPoolRepository) TryReserveUnits(ctx context.Context, poolID string, unitIDs []string) (*domain.ReservationToken, error) {
	if len(unitIDs) == 0 {
		return nil, domain.NewValidationError("units", "at least one unit is required")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var active bool
	err = tx.QueryRow(ctx, `SELECT active FROM resource_pools WHERE id=$1 FOR UPDATE`, poolID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, domain.ErrNotFound
	}

	rows, err := tx.Query(ctx, `SELECT unit_id, booked FROM pool_units WHERE pool_id=$1 AND unit_id = ANY($2) ORDER BY unit_id FOR UPDATE`, poolID, unitIDs)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]bool, len(unitIDs))
	for rows.Next() {
		var id string
		var b bool
		if err := rows.Scan(&id, &b); err != nil {
			rows.Close()
			return nil, err
		}
		booked[id] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range unitIDs {
		b, known := booked[id]
		if !known || b {
			return nil, &domain.UnitUnavailableError{PoolID: poolID, UnitID: id}
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE pool_units SET booked=true WHERE pool_id=$1 AND unit_id = ANY($2)`, poolID, unitIDs); err != nil {
		return nil, err
	}
	res, err := tx.Exec(ctx, `UPDATE resource_pools SET available_capacity = available_capacity - $2, updated_at = now()
		WHERE id=$1 AND available_capacity >= $2`, poolID, len(unitIDs))
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		return nil, domain.ErrInsufficientCapacity
	}

	token, err := insertToken(ctx, tx, poolID, len(unitIDs), unitIDs)
	if err != nil {
		return nil, err
	}
	return token, tx.Commit(ctx)
}

// Release returns a token's capacity exactly once. The conditional update on
// released is what makes retried cancellation signals safe: the second call
// updates zero rows and returns without touching the counter.
func (r *PGPoolRepository) Release(ctx context.Context, tokenID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var poolID string
	var quantity int
	var unitIDs []string
	err = tx.QueryRow(ctx, `UPDATE reservation_tokens SET released=true, released_at=now()
		WHERE id=$1 AND NOT released
		RETURNING pool_id, quantity, unit_ids`, tokenID).Scan(&poolID, &quantity, &unitIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservation_tokens WHERE id=$1)`, tokenID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return nil // already released
	}
	if err != nil {
		return err
	}

	if len(unitIDs) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE pool_units SET booked=false WHERE pool_id=$1 AND unit_id = ANY($2)`, poolID, unitIDs); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE resource_pools SET available_capacity = available_capacity + $2, updated_at = now() WHERE id=$1`, poolID, quantity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Reconcile repairs availability drift in three steps: release tokens whose
// booking is already cancelled (a missed release), release tokens that were
// never attached to a booking within the stale interval (a crashed
// reservation), then recompute every pool's available_capacity from its
// unreleased tokens. Returns the number of pools corrected.
func (r *PGPoolRepository) Reconcile(ctx context.Context, staleAfter time.Duration) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE pool_units u SET booked=false
		FROM reservation_tokens t JOIN bookings b ON b.reference = t.booking_reference
		WHERE NOT t.released AND b.status = 'CANCELLED'
		  AND u.pool_id = t.pool_id AND u.unit_id = ANY(t.unit_ids)`); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `UPDATE reservation_tokens t SET released=true, released_at=now()
		FROM bookings b
		WHERE b.reference = t.booking_reference AND NOT t.released AND b.status = 'CANCELLED'`); err != nil {
		return 0, err
	}

	staleSecs := staleAfter.Seconds()
	if _, err := tx.Exec(ctx, `UPDATE pool_units u SET booked=false
		FROM reservation_tokens t
		WHERE NOT t.released AND t.booking_reference IS NULL AND t.created_at < now() - make_interval(secs => $1)
		  AND u.pool_id = t.pool_id AND u.unit_id = ANY(t.unit_ids)`, staleSecs); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `UPDATE reservation_tokens SET released=true, released_at=now()
		WHERE NOT released AND booking_reference IS NULL AND created_at < now() - make_interval(secs => $1)`, staleSecs); err != nil {
		return 0, err
	}

	res, err := tx.Exec(ctx, `UPDATE resource_pools p SET available_capacity = p.total_capacity - COALESCE(h.held, 0), updated_at = now()
		FROM resource_pools p2
		LEFT JOIN (
			SELECT pool_id, SUM(quantity)::int AS held FROM reservation_tokens WHERE NOT released GROUP BY pool_id
		) h ON h.pool_id = p2.id
		WHERE p.id = p2.id AND p.available_capacity <> p2.total_capacity - COALESCE(h.held, 0)`)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func insertToken(ctx context.Context, tx pgx.Tx, poolID string, quantity int, unitIDs []string) (*domain.ReservationToken, error) {
	token := &domain.ReservationToken{
		ID:       uuid.NewString(),
		PoolID:   poolID,
		Quantity: quantity,
		UnitIDs:  unitIDs,
	}
	if unitIDs == nil {
		token.UnitIDs = []string{}
	}
	if err := tx.QueryRow(ctx, `INSERT INTO reservation_tokens (id, pool_id, quantity, unit_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, token.ID, token.PoolID, token.Quantity, token.UnitIDs).
		Scan(&token.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert reservation token: %w", err)
	}
	return token, nil
}

var _ PoolRepository = (*PGPoolRepository)(nil)
