// Package event is the integration spine: it defines the wire payloads
// exchanged over the message broker and the publisher/consumer
// machinery around them. Delivery is at-least-once with per-partition-key
// ordering only; every consumer is idempotent.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried in the envelope.
const (
	TypePaymentCompleted      = "payment.completed"
	TypeReservationExpiration = "reservation.expiration"
	TypeNotificationRequest   = "notification.request"
)

// Broker topology. payment.completed fans out to one durable queue per
// consumer group; the expiration delay queue holds messages for the
// hold duration and dead-letters them into the work queue.
const (
	ExchangePaymentCompleted = "payment.completed"

	QueuePaymentRanking      = "payment.completed.ranking"
	QueuePaymentDataPlatform = "payment.completed.data-platform"

	QueueReservationExpiration      = "reservation.expiration"
	QueueReservationExpirationDelay = "reservation.expiration.delay"

	QueueNotificationRequest = "notification.request"
)

// Envelope is the JSON wire format shared by every event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	EventTime time.Time       `json:"eventTime"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload with a fresh event ID and timestamp.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// PaymentCompletedPayload announces a confirmed sale. Partitioned by
// UserID so all events of one user stay ordered at the bus.
type PaymentCompletedPayload struct {
	PaymentID     string `json:"paymentId"`
	UserID        string `json:"userId"`
	ReservationID string `json:"reservationId"`
	SeatID        string `json:"seatId"`
	Amount        int64  `json:"amount"`
}

// ReservationExpirationPayload rides the delayed queue and tells the
// expiry consumer when and what to conditionally expire.
type ReservationExpirationPayload struct {
	ReservationID string    `json:"reservationId"`
	UserID        string    `json:"userId"`
	SeatID        string    `json:"seatId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// NotificationRequestPayload asks the notification sink to message a
// user. Data carries free-form context for the template.
type NotificationRequestPayload struct {
	UserID  string            `json:"userId"`
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}
