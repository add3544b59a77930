package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/event"
	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/monitoring"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// PaymentStore performs the atomic settlement transaction.
// *repository.PaymentRepo satisfies it.
type PaymentStore interface {
	Confirm(ctx context.Context, p repository.ConfirmParams) (*model.Payment, int64, error)
	FindByReservationID(ctx context.Context, reservationID string) (*model.Payment, error)
}

// CompletedPublisher fans the settled sale out to downstream consumers.
type CompletedPublisher interface {
	PublishPaymentCompleted(ctx context.Context, payload event.PaymentCompletedPayload) error
}

// PaymentService settles a hold: it validates the reservation under
// its lease, then debits points, records the payment and confirms the
// seat in one database transaction under the user's point lease. The
// completion event is published only after the transaction commits
// and outside both leases.
type PaymentService struct {
	locker       lock.Locker
	reservations ReservationStore
	payments     PaymentStore
	publisher    CompletedPublisher
	logger       *zap.SugaredLogger
}

func NewPaymentService(locker lock.Locker, reservations ReservationStore, payments PaymentStore, publisher CompletedPublisher, logger *zap.SugaredLogger) *PaymentService {
	return &PaymentService{
		locker:       locker,
		reservations: reservations,
		payments:     payments,
		publisher:    publisher,
		logger:       logger,
	}
}

// ProcessPayment pays for a held reservation with points. Concurrent
// attempts on the same reservation settle exactly once: the losers see
// ErrInvalidState once the winner has confirmed. A payment racing the
// expiry worker is decided by the conditional status update inside the
// settlement transaction.
func (s *PaymentService) ProcessPayment(ctx context.Context, userID, reservationID string, amount int64) (*model.Payment, error) {
	if userID == "" || reservationID == "" || amount <= 0 {
		return nil, repository.ErrInvalidArgument
	}

	var payment *model.Payment
	var seatID string
	err := s.locker.WithLock(ctx, "reservation:"+reservationID, func(ctx context.Context) error {
		res, err := s.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return repository.ErrForbidden
		}
		switch res.Status {
		case model.ReservationHeld:
		default:
			return repository.ErrInvalidState
		}
		if time.Now().After(res.ExpiresAt) {
			return repository.ErrExpired
		}
		seatID = res.SeatID

		// The point lease serializes this debit with concurrent
		// charges and other payments by the same user.
		return s.locker.WithLock(ctx, "point:"+userID, func(ctx context.Context) error {
			p, _, err := s.payments.Confirm(ctx, repository.ConfirmParams{
				ReservationID: reservationID,
				UserID:        userID,
				Amount:        amount,
			})
			if err != nil {
				return err
			}
			payment = p
			return nil
		})
	})
	if err != nil {
		monitoring.PaymentOutcomes.WithLabelValues("failed").Inc()
		return nil, err
	}

	monitoring.PaymentOutcomes.WithLabelValues("success").Inc()
	s.logger.Infow("payment completed",
		"paymentId", payment.PaymentID, "reservationId", reservationID, "userId", userID, "amount", amount)

	if s.publisher != nil {
		// At-least-once into the broker; downstream consumers are
		// idempotent. A lost publish here only delays analytics and
		// ranking, never correctness of the sale itself.
		err := s.publisher.PublishPaymentCompleted(ctx, event.PaymentCompletedPayload{
			PaymentID:     payment.PaymentID,
			UserID:        userID,
			ReservationID: reservationID,
			SeatID:        seatID,
			Amount:        amount,
		})
		if err != nil {
			s.logger.Errorw("publish payment.completed failed", "paymentId", payment.PaymentID, "error", err)
		}
	}
	return payment, nil
}

// GetPayment returns the payment for a reservation, restricted to its owner.
func (s *PaymentService) GetPayment(ctx context.Context, userID, reservationID string) (*model.Payment, error) {
	p, err := s.payments.FindByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}
