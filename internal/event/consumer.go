package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/monitoring"
)

// HandlerFunc processes one delivery body. A nil return acks the
// message; an error nacks it without requeue so a poison message
// cannot loop forever.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer runs a reconnecting consume loop against one queue. Each
// consumer group owns its own durable queue, so a single consumer per
// queue preserves delivery order within it.
type Consumer struct {
	url     string
	queue   string
	logger  *zap.SugaredLogger
	handler HandlerFunc
}

func NewConsumer(url, queue string, logger *zap.SugaredLogger, handler HandlerFunc) *Consumer {
	return &Consumer{url: url, queue: queue, logger: logger, handler: handler}
}

// Run connects to the broker and consumes until ctx is cancelled. It
// reconnects with exponential backoff on broker failures and never
// lets a handler error stop consumption.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warnw("broker dial failed, retrying", "queue", c.queue, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warnw("consume loop ended, reconnecting", "queue", c.queue, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warnw("set QoS failed", "queue", c.queue, "error", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	// Close the channel when ctx is cancelled so the range below
	// unblocks. done caps the watcher to this loop iteration so
	// reconnects do not pile up goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-done:
		}
	}()

	for d := range msgs {
		if err := c.handler(ctx, d.Body); err != nil {
			c.logger.Errorw("handle message failed", "queue", c.queue, "error", err)
			monitoring.EventsConsumed.WithLabelValues(c.queue, "error").Inc()
			_ = d.Nack(false, false)
			continue
		}
		monitoring.EventsConsumed.WithLabelValues(c.queue, "ok").Inc()
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// decode unmarshals an envelope and its typed payload in one step.
func decode[T any](body []byte) (Envelope, T, error) {
	var env Envelope
	var payload T
	if err := json.Unmarshal(body, &env); err != nil {
		return env, payload, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return env, payload, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
	}
	return env, payload, nil
}
