package model

import "time"

// Reservation statuses. The HELD to CONFIRMED and HELD to EXPIRED
// transitions are mutually exclusive, resolved by a conditional update
// on the row.
const (
	ReservationHeld      = "HELD"
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
	ReservationExpired   = "EXPIRED"
)

// Reservation is a time-bounded exclusive claim on a seat. For any seat
// at most one reservation may be HELD or CONFIRMED at a time; that is
// the core invariant the seat lease and the conditional updates protect.
//
// Fields:
//  ReservationID – primary key (UUID).
//  UserID        – user who placed the hold.
//  SeatID        – seat being claimed.
//  Status        – HELD, CONFIRMED, CANCELLED or EXPIRED.
//  HeldAt        – when the hold was created.
//  ExpiresAt     – HeldAt plus the configured hold duration.
//  CreatedAt     – row creation timestamp.
type Reservation struct {
	ReservationID string
	UserID        string
	SeatID        string
	Status        string
	HeldAt        time.Time
	ExpiresAt     time.Time
	CreatedAt     time.Time
}
