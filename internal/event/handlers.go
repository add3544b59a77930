package event

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Consumer-side dependencies are narrow interfaces so the handlers can
// be exercised with in-memory fakes. Every handler is idempotent and
// swallows domain errors after logging them; redelivery of an already
// processed event must not fail.

// RankingUpdater folds a confirmed sale into the ranking aggregates.
type RankingUpdater interface {
	OnReservationConfirmed(ctx context.Context, scheduleID string) error
}

// SeatResolver maps a seat back to its schedule.
type SeatResolver interface {
	FindScheduleIDBySeatID(ctx context.Context, seatID string) (string, error)
}

// ReservationExpirer conditionally releases a lapsed hold. The bool
// reports whether this call performed the transition.
type ReservationExpirer interface {
	ExpireReservation(ctx context.Context, reservationID string) (bool, error)
}

// Notifier delivers a user-facing message.
type Notifier interface {
	Notify(ctx context.Context, payload NotificationRequestPayload) error
}

// DataSink forwards a completed sale to the analytics platform.
type DataSink interface {
	Record(ctx context.Context, payload PaymentCompletedPayload) error
}

// NewRankingConsumer feeds payment.completed events into the ranking
// aggregates. Ranking is best-effort: failures are logged and the
// message is acked so a broken aggregate cannot stall the queue.
func NewRankingConsumer(url string, ranking RankingUpdater, seats SeatResolver, logger *zap.SugaredLogger) *Consumer {
	return NewConsumer(url, QueuePaymentRanking, logger, func(ctx context.Context, body []byte) error {
		env, payload, err := decode[PaymentCompletedPayload](body)
		if err != nil {
			return err
		}
		scheduleID, err := seats.FindScheduleIDBySeatID(ctx, payload.SeatID)
		if err != nil {
			logger.Errorw("resolve schedule for ranking failed",
				"eventId", env.EventID, "seatId", payload.SeatID, "error", err)
			return nil
		}
		if err := ranking.OnReservationConfirmed(ctx, scheduleID); err != nil {
			logger.Errorw("update ranking failed",
				"eventId", env.EventID, "scheduleId", scheduleID, "error", err)
		}
		return nil
	})
}

// NewDataPlatformConsumer mirrors payment.completed events to the
// analytics sink.
func NewDataPlatformConsumer(url string, sink DataSink, logger *zap.SugaredLogger) *Consumer {
	return NewConsumer(url, QueuePaymentDataPlatform, logger, func(ctx context.Context, body []byte) error {
		env, payload, err := decode[PaymentCompletedPayload](body)
		if err != nil {
			return err
		}
		if err := sink.Record(ctx, payload); err != nil {
			logger.Errorw("forward to data platform failed", "eventId", env.EventID, "error", err)
		}
		return nil
	})
}

// NewNotificationConsumer drains notification.request into the
// notification sink.
func NewNotificationConsumer(url string, notifier Notifier, logger *zap.SugaredLogger) *Consumer {
	return NewConsumer(url, QueueNotificationRequest, logger, func(ctx context.Context, body []byte) error {
		env, payload, err := decode[NotificationRequestPayload](body)
		if err != nil {
			return err
		}
		if err := notifier.Notify(ctx, payload); err != nil {
			logger.Errorw("send notification failed", "eventId", env.EventID, "userId", payload.UserID, "error", err)
		}
		return nil
	})
}

// NewExpirationConsumer receives delayed expiry messages and performs
// the conditional HELD to EXPIRED transition. The delay queue usually
// delivers right at the deadline; the handler still waits out any
// remainder and relies on the conditional update, so a duplicate or
// early delivery is a no-op. When the hold is actually released a
// RESERVATION_EXPIRED notification is requested.
func NewExpirationConsumer(url string, reservations ReservationExpirer, publisher *Publisher, logger *zap.SugaredLogger) *Consumer {
	return NewConsumer(url, QueueReservationExpiration, logger, func(ctx context.Context, body []byte) error {
		env, payload, err := decode[ReservationExpirationPayload](body)
		if err != nil {
			return err
		}
		if wait := time.Until(payload.ExpiresAt); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		expired, err := reservations.ExpireReservation(ctx, payload.ReservationID)
		if err != nil {
			return err
		}
		if !expired {
			logger.Debugw("hold already settled, skipping expiry",
				"eventId", env.EventID, "reservationId", payload.ReservationID)
			return nil
		}
		logger.Infow("hold expired", "reservationId", payload.ReservationID, "userId", payload.UserID)
		if publisher != nil {
			_ = publisher.PublishNotificationRequest(ctx, NotificationRequestPayload{
				UserID:  payload.UserID,
				Type:    "RESERVATION_EXPIRED",
				Title:   "Reservation expired",
				Message: "Your seat hold expired before payment. The seat has been released.",
				Data:    map[string]string{"reservationId": payload.ReservationID, "seatId": payload.SeatID},
			})
		}
		return nil
	})
}
