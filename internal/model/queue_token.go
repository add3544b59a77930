package model

import "time"

// Queue token statuses. A token starts WAITING, is promoted to ACTIVE by
// the activation scheduler when capacity allows, and ends EXPIRED either
// by TTL or by explicit invalidation after a completed payment.
const (
	TokenWaiting = "WAITING"
	TokenActive  = "ACTIVE"
	TokenExpired = "EXPIRED"
)

// QueueToken grants a user queued or active access to the reservation
// endpoints. At most one non-expired token exists per user.
//
// Fields:
//  TokenID       – internal identifier (UUID).
//  UserID        – owner of the token.
//  TokenValue    – opaque credential handed to the client; also the
//                  primary lookup key in the token store.
//  QueuePosition – 1-based position assigned at issuance.
//  Status        – WAITING, ACTIVE or EXPIRED.
//  IssuedAt      – when the token was created.
//  ExpiresAt     – TTL deadline; reset on promotion to ACTIVE.
type QueueToken struct {
	TokenID       string
	UserID        string
	TokenValue    string
	QueuePosition int
	Status        string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// IsExpired reports whether the token is terminally expired or past its
// TTL deadline.
func (t *QueueToken) IsExpired() bool {
	return t.Status == TokenExpired || time.Now().After(t.ExpiresAt)
}

// IsActive reports whether the token currently admits its holder to the
// reservation endpoints.
func (t *QueueToken) IsActive() bool {
	return t.Status == TokenActive && !time.Now().After(t.ExpiresAt)
}
