package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/event"
	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/monitoring"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// ReservationStore is the persistence surface for holds.
// *repository.ReservationRepo satisfies it.
type ReservationStore interface {
	CreateHold(ctx context.Context, r *model.Reservation) error
	FindByID(ctx context.Context, reservationID string) (*model.Reservation, error)
	ExpireIfHeld(ctx context.Context, reservationID string) (bool, error)
	FindExpiredHeld(ctx context.Context, now time.Time) ([]*model.Reservation, error)
}

// SeatFinder resolves a seat within a schedule.
type SeatFinder interface {
	FindSeatByScheduleAndNo(ctx context.Context, scheduleID string, seatNo int) (*model.Seat, error)
}

// ExpiryScheduler queues the delayed expiry message for a fresh hold.
type ExpiryScheduler interface {
	ScheduleReservationExpiration(ctx context.Context, payload event.ReservationExpirationPayload) error
}

// ReservationService implements seat holds. A hold is a soft claim
// that lives for the payment window; the serialization point is a
// per-seat lease plus a uniqueness check inside the insert transaction.
type ReservationService struct {
	locker       lock.Locker
	reservations ReservationStore
	seats        SeatFinder
	scheduler    ExpiryScheduler
	holdDuration time.Duration
	logger       *zap.SugaredLogger
}

func NewReservationService(locker lock.Locker, reservations ReservationStore, seats SeatFinder, scheduler ExpiryScheduler, holdDuration time.Duration, logger *zap.SugaredLogger) *ReservationService {
	return &ReservationService{
		locker:       locker,
		reservations: reservations,
		seats:        seats,
		scheduler:    scheduler,
		holdDuration: holdDuration,
		logger:       logger,
	}
}

// HoldSeat places a hold on one seat. Under concurrent attempts on the
// same seat exactly one caller wins; the rest receive ErrConflict.
// The delayed expiry message is scheduled before the lease is released
// so the hold can never outlive its fuse unnoticed, though the sweeper
// would catch it regardless.
func (s *ReservationService) HoldSeat(ctx context.Context, userID, scheduleID string, seatNo int) (*model.Reservation, error) {
	seat, err := s.seats.FindSeatByScheduleAndNo(ctx, scheduleID, seatNo)
	if err != nil {
		return nil, err
	}

	var res *model.Reservation
	err = s.locker.WithLock(ctx, "seat:"+seat.SeatID, func(ctx context.Context) error {
		now := time.Now()
		res = &model.Reservation{
			ReservationID: uuid.NewString(),
			UserID:        userID,
			SeatID:        seat.SeatID,
			Status:        model.ReservationHeld,
			HeldAt:        now,
			ExpiresAt:     now.Add(s.holdDuration),
			CreatedAt:     now,
		}
		if err := s.reservations.CreateHold(ctx, res); err != nil {
			return err
		}
		if s.scheduler != nil {
			payload := event.ReservationExpirationPayload{
				ReservationID: res.ReservationID,
				UserID:        userID,
				SeatID:        seat.SeatID,
				ExpiresAt:     res.ExpiresAt,
			}
			if err := s.scheduler.ScheduleReservationExpiration(ctx, payload); err != nil {
				// The periodic sweeper is the backstop for a lost message.
				s.logger.Errorw("schedule expiry failed", "reservationId", res.ReservationID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			monitoring.HoldOutcomes.WithLabelValues("conflict").Inc()
		} else {
			monitoring.HoldOutcomes.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	monitoring.HoldOutcomes.WithLabelValues("held").Inc()
	s.logger.Infow("seat held", "reservationId", res.ReservationID, "seatId", seat.SeatID, "userId", userID)
	return res, nil
}

// GetReservation loads one reservation, restricted to its owner.
func (s *ReservationService) GetReservation(ctx context.Context, userID, reservationID string) (*model.Reservation, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return res, nil
}

// ExpireReservation performs the conditional HELD to EXPIRED
// transition. Safe to call any number of times from any number of
// workers; only the call that flips the row reports true.
func (s *ReservationService) ExpireReservation(ctx context.Context, reservationID string) (bool, error) {
	expired, err := s.reservations.ExpireIfHeld(ctx, reservationID)
	if err != nil {
		return false, err
	}
	if expired {
		monitoring.ReservationsExpired.Inc()
	}
	return expired, nil
}

// SweepExpired releases every hold whose payment window has lapsed.
// The safety net behind the delayed expiry messages.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
	stale, err := s.reservations.FindExpiredHeld(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	released := 0
	for _, r := range stale {
		ok, err := s.reservations.ExpireIfHeld(ctx, r.ReservationID)
		if err != nil {
			s.logger.Errorw("sweep expire failed", "reservationId", r.ReservationID, "error", err)
			continue
		}
		if ok {
			monitoring.ReservationsExpired.Inc()
			released++
		}
	}
	if released > 0 {
		s.logger.Infow("stale holds released", "count", released)
	}
	return released, nil
}
