package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// PointRepo provides data access to the point balance and its
// append-only transaction ledger. Every mutation writes the balance row
// and a ledger entry in the same transaction, so the ledger can always
// reconstruct the balance. Callers serialize mutations per user through
// the point:{userId} lease; the row lock taken by the debit SELECT is a
// secondary, local guard.
type PointRepo struct {
	db *sql.DB
}

// NewPointRepo returns a new PointRepo bound to the provided database.
func NewPointRepo(db *sql.DB) *PointRepo { return &PointRepo{db: db} }

// Credit adds amount to the user's balance, creating the balance row if
// this is the user's first charge, and appends a CHARGE ledger entry.
// Returns the balance after the credit.
func (r *PointRepo) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upsert = `INSERT INTO user_point_balance (user_id, balance) VALUES (?, ?)
	                ON DUPLICATE KEY UPDATE balance = balance + ?`
	if _, err := tx.ExecContext(ctx, upsert, userID, amount, amount); err != nil {
		return 0, err
	}

	var balance int64
	const sel = `SELECT balance FROM user_point_balance WHERE user_id = ?`
	if err := tx.QueryRowContext(ctx, sel, userID).Scan(&balance); err != nil {
		return 0, err
	}

	if err := appendLedgerTx(ctx, tx, userID, model.PointTxCharge, amount, balance, nil); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return balance, nil
}

// Debit subtracts amount from the user's balance and appends a PAYMENT
// ledger entry referencing refPaymentID. Returns ErrNotFound when the
// user has no balance row and ErrInsufficientFunds when the balance is
// smaller than amount.
func (r *PointRepo) Debit(ctx context.Context, userID string, amount int64, refPaymentID *string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	balance, err := debitTx(ctx, tx, userID, amount, refPaymentID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return balance, nil
}

// GetBalance is a plain read. Returns ErrNotFound when the user has no
// balance row yet.
func (r *PointRepo) GetBalance(ctx context.Context, userID string) (*model.PointBalance, error) {
	const q = `SELECT user_id, balance, updated_at FROM user_point_balance WHERE user_id = ?`
	var b model.PointBalance
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Balance, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListTransactions returns the most recent ledger entries for a user,
// newest first.
func (r *PointRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.PointTransaction, error) {
	const q = `SELECT tx_id, user_id, tx_type, amount, balance_after, ref_payment_id, created_at
	           FROM point_tx WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PointTransaction
	for rows.Next() {
		t := new(model.PointTransaction)
		var ref sql.NullString
		if err := rows.Scan(&t.TxID, &t.UserID, &t.TxType, &t.Amount, &t.BalanceAfter, &ref, &t.CreatedAt); err != nil {
			return nil, err
		}
		if ref.Valid {
			v := ref.String
			t.RefPaymentID = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// debitTx performs the debit inside an existing transaction so the
// payment path can combine it with the payment insert and reservation
// confirmation. The SELECT ... FOR UPDATE pins the balance row for the
// duration of the transaction.
func debitTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, refPaymentID *string) (int64, error) {
	const sel = `SELECT balance FROM user_point_balance WHERE user_id = ? FOR UPDATE`
	var balance int64
	err := tx.QueryRowContext(ctx, sel, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	const upd = `UPDATE user_point_balance SET balance = balance - ? WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, upd, amount, userID); err != nil {
		return 0, err
	}
	balance -= amount

	if err := appendLedgerTx(ctx, tx, userID, model.PointTxPayment, amount, balance, refPaymentID); err != nil {
		return 0, err
	}
	return balance, nil
}

// appendLedgerTx writes one immutable ledger entry.
func appendLedgerTx(ctx context.Context, tx *sql.Tx, userID, txType string, amount, balanceAfter int64, refPaymentID *string) error {
	const ins = `INSERT INTO point_tx (tx_id, user_id, tx_type, amount, balance_after, ref_payment_id, created_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	var ref sql.NullString
	if refPaymentID != nil {
		ref = sql.NullString{String: *refPaymentID, Valid: true}
	}
	_, err := tx.ExecContext(ctx, ins, uuid.NewString(), userID, txType, amount, balanceAfter, ref, time.Now().UTC())
	return err
}
