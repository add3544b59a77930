package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// PaymentRepo persists payments. Its Confirm method is the single
// atomic step of the payment path: payment insert, point debit and
// reservation confirmation either all commit or none do.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// ConfirmParams carries everything Confirm needs. The caller has already
// validated reservation ownership, state and expiry under the
// reservation lease; the conditional confirmation inside the
// transaction re-checks the HELD status so a racing expiry sweep can
// never be overwritten.
type ConfirmParams struct {
	ReservationID string
	UserID        string
	Amount        int64
}

// Confirm creates a SUCCESS payment row, debits the point ledger and
// flips the reservation to CONFIRMED, all in one transaction. Returns
// the payment and the balance after the debit. Error cases:
// ErrNotFound (no balance row), ErrInsufficientFunds (debit exceeds
// balance) and ErrInvalidState (reservation no longer HELD). Any error
// rolls the whole transaction back, leaving the reservation untouched.
func (r *PaymentRepo) Confirm(ctx context.Context, p ConfirmParams) (*model.Payment, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	payment := &model.Payment{
		PaymentID:     uuid.NewString(),
		ReservationID: p.ReservationID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Status:        model.PaymentSuccess,
		PaidAt:        now,
	}

	// The unique key on reservation_id makes a second successful payment
	// for the same reservation structurally impossible.
	const ins = `INSERT INTO payment (payment_id, reservation_id, user_id, amount, status, paid_at)
	             VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins,
		payment.PaymentID, payment.ReservationID, payment.UserID,
		payment.Amount, payment.Status, payment.PaidAt,
	); err != nil {
		return nil, 0, err
	}

	balance, err := debitTx(ctx, tx, p.UserID, p.Amount, &payment.PaymentID)
	if err != nil {
		return nil, 0, err
	}

	confirmed, err := confirmIfHeldTx(ctx, tx, p.ReservationID)
	if err != nil {
		return nil, 0, err
	}
	if !confirmed {
		return nil, 0, ErrInvalidState
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true
	return payment, balance, nil
}

// FindByReservationID loads the payment for a reservation. Returns
// ErrNotFound when the reservation has not been paid.
func (r *PaymentRepo) FindByReservationID(ctx context.Context, reservationID string) (*model.Payment, error) {
	const q = `SELECT payment_id, reservation_id, user_id, amount, status, paid_at, created_at
	           FROM payment WHERE reservation_id = ?`
	var p model.Payment
	err := r.db.QueryRowContext(ctx, q, reservationID).Scan(
		&p.PaymentID, &p.ReservationID, &p.UserID, &p.Amount, &p.Status, &p.PaidAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
