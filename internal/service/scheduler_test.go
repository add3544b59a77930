package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
)

func TestScheduler_DrivesAllLoops(t *testing.T) {
	tokens := newFakeTokenStore()
	queueSvc := NewQueueService(tokens, "test-secret", time.Minute, time.Minute, 10, testLogger())

	reservations := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 1})
	reservationSvc := NewReservationService(lock.NewMemoryLocker(), reservations, seats, &fakeExpiryScheduler{}, 5*time.Minute, testLogger())

	ctx := context.Background()
	_, err := queueSvc.IssueToken(ctx, "user-1")
	require.NoError(t, err)

	stale, err := reservationSvc.HoldSeat(ctx, "user-1", "sched-1", 1)
	require.NoError(t, err)
	reservations.mu.Lock()
	reservations.byID[stale.ReservationID].ExpiresAt = time.Now().Add(-time.Second)
	reservations.mu.Unlock()

	sched := NewScheduler(queueSvc, reservationSvc,
		10*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond, testLogger())
	runCtx, cancel := context.WithCancel(ctx)
	go sched.Run(runCtx)

	assert.Eventually(t, func() bool {
		active, _ := tokens.CountActive(context.Background())
		return active == 1 && reservations.status(stale.ReservationID) == model.ReservationExpired
	}, time.Second, 10*time.Millisecond)
	cancel()
}
