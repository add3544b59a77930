package model

import "time"

// Payment statuses.
const (
	PaymentSuccess   = "SUCCESS"
	PaymentFailed    = "FAILED"
	PaymentCancelled = "CANCELLED"
)

// Payment records a point debit against a held reservation. A
// reservation has at most one successful payment (unique key on
// ReservationID).
//
// Fields:
//  PaymentID     – primary key (UUID).
//  ReservationID – reservation being paid for.
//  UserID        – paying user.
//  Amount        – points debited.
//  Status        – SUCCESS, FAILED or CANCELLED.
//  PaidAt        – when the payment completed.
//  CreatedAt     – row creation timestamp.
type Payment struct {
	PaymentID     string
	ReservationID string
	UserID        string
	Amount        int64
	Status        string
	PaidAt        time.Time
	CreatedAt     time.Time
}
