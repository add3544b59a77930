package model

import "time"

// Point transaction types. Every balance mutation appends exactly one
// transaction record, so the ledger can reconstruct the balance.
const (
	PointTxCharge  = "CHARGE"
	PointTxPayment = "PAYMENT"
	PointTxRefund  = "REFUND"
)

// PointBalance is the current point balance for a user. The balance is
// never negative; debits are guarded by both the per-user lease and a
// row-level check inside the storage transaction.
type PointBalance struct {
	UserID    string
	Balance   int64
	UpdatedAt time.Time
}

// PointTransaction is one immutable entry in the append-only ledger.
//
// Fields:
//  TxID         – primary key (UUID).
//  UserID       – account owner.
//  TxType       – CHARGE, PAYMENT or REFUND.
//  Amount       – points moved by this entry.
//  BalanceAfter – balance immediately after this entry applied.
//  RefPaymentID – payment that caused the entry, when applicable.
//  CreatedAt    – row creation timestamp.
type PointTransaction struct {
	TxID         string
	UserID       string
	TxType       string
	Amount       int64
	BalanceAfter int64
	RefPaymentID *string
	CreatedAt    time.Time
}
