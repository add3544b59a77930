package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the periodic maintenance loops: token activation,
// token cleanup and the stale-hold sweep. Each loop runs on its own
// ticker and stops when ctx is cancelled.
type Scheduler struct {
	queue        *QueueService
	reservations *ReservationService

	activateEvery time.Duration
	cleanupEvery  time.Duration
	sweepEvery    time.Duration

	logger *zap.SugaredLogger
}

func NewScheduler(queue *QueueService, reservations *ReservationService, activateEvery, cleanupEvery, sweepEvery time.Duration, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		queue:         queue,
		reservations:  reservations,
		activateEvery: activateEvery,
		cleanupEvery:  cleanupEvery,
		sweepEvery:    sweepEvery,
		logger:        logger,
	}
}

// Run starts every loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.loop(ctx, "queue-activate", s.activateEvery, func(ctx context.Context) error {
		_, err := s.queue.ActivateTokens(ctx)
		return err
	})
	go s.loop(ctx, "queue-cleanup", s.cleanupEvery, func(ctx context.Context) error {
		_, err := s.queue.CleanupExpiredTokens(ctx)
		return err
	})
	go s.loop(ctx, "hold-sweep", s.sweepEvery, func(ctx context.Context) error {
		_, err := s.reservations.SweepExpired(ctx)
		return err
	})
	<-ctx.Done()
}

func (s *Scheduler) loop(ctx context.Context, name string, every time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				s.logger.Errorw("scheduler tick failed", "loop", name, "error", err)
			}
		}
	}
}
