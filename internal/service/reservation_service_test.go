package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

func newTestReservationService(store *fakeReservationStore, seats *fakeSeatFinder, scheduler *fakeExpiryScheduler) *ReservationService {
	return NewReservationService(lock.NewMemoryLocker(), store, seats, scheduler, 5*time.Minute, testLogger())
}

func TestHoldSeat_Success(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	scheduler := &fakeExpiryScheduler{}
	svc := newTestReservationService(store, seats, scheduler)

	res, err := svc.HoldSeat(context.Background(), "user-1", "sched-1", 7)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationHeld, res.Status)
	assert.Equal(t, "seat-1", res.SeatID)
	assert.WithinDuration(t, res.HeldAt.Add(5*time.Minute), res.ExpiresAt, time.Second)

	scheduled := scheduler.scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, res.ReservationID, scheduled[0].ReservationID)
	assert.Equal(t, res.ExpiresAt, scheduled[0].ExpiresAt)
}

func TestHoldSeat_UnknownSeat(t *testing.T) {
	svc := newTestReservationService(newFakeReservationStore(), newFakeSeatFinder(), &fakeExpiryScheduler{})
	_, err := svc.HoldSeat(context.Background(), "user-1", "sched-1", 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHoldSeat_SecondAttemptConflicts(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})
	ctx := context.Background()

	_, err := svc.HoldSeat(ctx, "user-1", "sched-1", 7)
	require.NoError(t, err)

	_, err = svc.HoldSeat(ctx, "user-2", "sched-1", 7)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestHoldSeat_ConcurrentSingleWinner(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.HoldSeat(context.Background(), "user-1", "sched-1", 7)
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, repository.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, attempts-1, conflicts)
}

func TestExpireReservation_Idempotent(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})
	ctx := context.Background()

	res, err := svc.HoldSeat(ctx, "user-1", "sched-1", 7)
	require.NoError(t, err)

	expired, err := svc.ExpireReservation(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = svc.ExpireReservation(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, model.ReservationExpired, store.status(res.ReservationID))
}

func TestExpireReservation_LeavesConfirmedAlone(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})
	ctx := context.Background()

	res, err := svc.HoldSeat(ctx, "user-1", "sched-1", 7)
	require.NoError(t, err)
	require.True(t, store.confirmIfHeld(res.ReservationID))

	expired, err := svc.ExpireReservation(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, model.ReservationConfirmed, store.status(res.ReservationID))
}

func TestGetReservation_OwnerOnly(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 7})
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})
	ctx := context.Background()

	res, err := svc.HoldSeat(ctx, "user-1", "sched-1", 7)
	require.NoError(t, err)

	got, err := svc.GetReservation(ctx, "user-1", res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, res.ReservationID, got.ReservationID)

	_, err = svc.GetReservation(ctx, "user-2", res.ReservationID)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestSweepExpired(t *testing.T) {
	store := newFakeReservationStore()
	seats := newFakeSeatFinder(
		&model.Seat{SeatID: "seat-1", ScheduleID: "sched-1", SeatNo: 1},
		&model.Seat{SeatID: "seat-2", ScheduleID: "sched-1", SeatNo: 2},
	)
	svc := newTestReservationService(store, seats, &fakeExpiryScheduler{})
	ctx := context.Background()

	lapsed, err := svc.HoldSeat(ctx, "user-1", "sched-1", 1)
	require.NoError(t, err)
	live, err := svc.HoldSeat(ctx, "user-2", "sched-1", 2)
	require.NoError(t, err)

	// Push the first hold past its deadline.
	store.mu.Lock()
	store.byID[lapsed.ReservationID].ExpiresAt = time.Now().Add(-time.Second)
	store.mu.Unlock()

	released, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, model.ReservationExpired, store.status(lapsed.ReservationID))
	assert.Equal(t, model.ReservationHeld, store.status(live.ReservationID))

	// A second sweep finds nothing.
	released, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	// The swept seat is free again: a different user can hold it.
	retaken, err := svc.HoldSeat(ctx, "user-3", "sched-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "user-3", retaken.UserID)
	assert.Equal(t, "seat-1", retaken.SeatID)
	assert.Equal(t, model.ReservationHeld, store.status(retaken.ReservationID))
}
