package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/monitoring"
)

// Publisher owns a long-lived broker connection and publishes domain
// events. Errors are logged and returned so callers can decide whether
// a failed publish should interrupt the request flow; most callers
// treat it as best-effort because a sweeper or retry covers the gap.
type Publisher struct {
	url    string
	logger *zap.SugaredLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects to the broker and declares the full topology.
// Declarations are idempotent, so publisher and consumers can race on
// startup without conflict.
func NewPublisher(url string, logger *zap.SugaredLogger) (*Publisher, error) {
	p := &Publisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials the broker and re-declares the topology. Callers must
// hold no lock; connect takes it.
func (p *Publisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// declareTopology sets up every exchange and queue the system uses.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangePaymentCompleted, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s: %w", ExchangePaymentCompleted, err)
	}
	for _, q := range []string{QueuePaymentRanking, QueuePaymentDataPlatform} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		if err := ch.QueueBind(q, "", ExchangePaymentCompleted, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", q, err)
		}
	}
	if _, err := ch.QueueDeclare(QueueReservationExpiration, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", QueueReservationExpiration, err)
	}
	// The delay queue has no consumers. Messages sit until their
	// per-message TTL elapses, then dead-letter into the work queue.
	if _, err := ch.QueueDeclare(QueueReservationExpirationDelay, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": QueueReservationExpiration,
	}); err != nil {
		return fmt.Errorf("queue declare %s: %w", QueueReservationExpirationDelay, err)
	}
	if _, err := ch.QueueDeclare(QueueNotificationRequest, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", QueueNotificationRequest, err)
	}
	return nil
}

// PublishPaymentCompleted fans a confirmed sale out to every consumer
// group. The partition key rides in a header so the JSON body stays
// identical across transports.
func (p *Publisher) PublishPaymentCompleted(ctx context.Context, payload PaymentCompletedPayload) error {
	return p.publish(ctx, ExchangePaymentCompleted, "", TypePaymentCompleted, payload, payload.UserID, "")
}

// ScheduleReservationExpiration drops a message into the delay queue
// with a TTL that elapses at the hold deadline. The consumer still
// re-checks ExpiresAt, so an early delivery is harmless.
func (p *Publisher) ScheduleReservationExpiration(ctx context.Context, payload ReservationExpirationPayload) error {
	delay := time.Until(payload.ExpiresAt)
	if delay < 0 {
		delay = 0
	}
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return p.publish(ctx, "", QueueReservationExpirationDelay, TypeReservationExpiration, payload, payload.UserID, expiration)
}

// PublishNotificationRequest asks the notification worker to message a user.
func (p *Publisher) PublishNotificationRequest(ctx context.Context, payload NotificationRequestPayload) error {
	return p.publish(ctx, "", QueueNotificationRequest, TypeNotificationRequest, payload, payload.UserID, "")
}

func (p *Publisher) publish(ctx context.Context, exchange, key, eventType string, payload any, partitionKey, expiration string) error {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		p.logger.Errorw("marshal event payload failed", "type", eventType, "error", err)
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		p.logger.Errorw("marshal event envelope failed", "type", eventType, "error", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.EventTime,
		Expiration:   expiration,
		Headers:      amqp.Table{"partition-key": partitionKey},
		Body:         body,
	}

	p.mu.Lock()
	if p.ch == nil || p.ch.IsClosed() {
		p.mu.Unlock()
		if err := p.connect(); err != nil {
			p.logger.Errorw("rabbitmq reconnect failed", "type", eventType, "error", err)
			return err
		}
		p.mu.Lock()
	}
	err = p.ch.PublishWithContext(ctx, exchange, key, false, false, pub)
	p.mu.Unlock()

	if err != nil {
		p.logger.Errorw("publish failed", "type", eventType, "exchange", exchange, "key", key, "error", err)
		return err
	}
	monitoring.EventsPublished.WithLabelValues(eventType).Inc()
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
