package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// ReservationRepo provides data access to the reservation table. All
// timestamp fields are stored in UTC. The seat-uniqueness invariant (at
// most one HELD or CONFIRMED reservation per seat) is enforced by
// CreateHold's check-then-insert running inside one transaction, which
// in turn runs under the caller's per-seat lease.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateHold inserts a new HELD reservation for the seat after checking
// that no reservation on the same seat is currently HELD or CONFIRMED.
// Returns ErrConflict when the seat is taken. The check and the insert
// share one transaction; the caller must hold the seat lease so that
// concurrent holders of the same seat serialize ahead of this check.
func (r *ReservationRepo) CreateHold(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const check = `SELECT reservation_id FROM reservation
	               WHERE seat_id = ? AND status IN ('HELD','CONFIRMED')
	               LIMIT 1 FOR UPDATE`
	var existing string
	err = tx.QueryRowContext(ctx, check, res.SeatID).Scan(&existing)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	const ins = `INSERT INTO reservation (reservation_id, user_id, seat_id, status, held_at, expires_at)
	             VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		res.ReservationID, res.UserID, res.SeatID, res.Status,
		res.HeldAt.UTC(), res.ExpiresAt.UTC(),
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// FindByID loads a reservation. Returns ErrNotFound when no row exists.
func (r *ReservationRepo) FindByID(ctx context.Context, reservationID string) (*model.Reservation, error) {
	const q = `SELECT reservation_id, user_id, seat_id, status, held_at, expires_at, created_at
	           FROM reservation WHERE reservation_id = ?`
	var res model.Reservation
	err := r.db.QueryRowContext(ctx, q, reservationID).Scan(
		&res.ReservationID, &res.UserID, &res.SeatID, &res.Status,
		&res.HeldAt, &res.ExpiresAt, &res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ExpireIfHeld flips a reservation to EXPIRED only when it is still
// HELD. The condition is the concurrency guard: when a payment already
// confirmed the row, zero rows are affected and false is returned. Both
// the delayed-message path and the sweep path go through this same
// conditional update, so racing them is safe.
func (r *ReservationRepo) ExpireIfHeld(ctx context.Context, reservationID string) (bool, error) {
	const q = `UPDATE reservation SET status = 'EXPIRED'
	           WHERE reservation_id = ? AND status = 'HELD'`
	result, err := r.db.ExecContext(ctx, q, reservationID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindExpiredHeld returns reservations that are still HELD past their
// expiry deadline. Used by the periodic sweep as a backstop for the
// delayed-message expiry path.
func (r *ReservationRepo) FindExpiredHeld(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	const q = `SELECT reservation_id, user_id, seat_id, status, held_at, expires_at, created_at
	           FROM reservation WHERE status = 'HELD' AND expires_at <= ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		res := new(model.Reservation)
		if err := rows.Scan(
			&res.ReservationID, &res.UserID, &res.SeatID, &res.Status,
			&res.HeldAt, &res.ExpiresAt, &res.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// confirmIfHeldTx flips the reservation to CONFIRMED only while it is
// still HELD, within the caller's transaction. Shared with PaymentRepo.
func confirmIfHeldTx(ctx context.Context, tx *sql.Tx, reservationID string) (bool, error) {
	const q = `UPDATE reservation SET status = 'CONFIRMED'
	           WHERE reservation_id = ? AND status = 'HELD'`
	result, err := tx.ExecContext(ctx, q, reservationID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
