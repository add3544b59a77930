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

type paymentFixture struct {
	reservations *fakeReservationStore
	points       *fakePointStore
	payments     *fakePaymentStore
	publisher    *fakeCompletedPublisher
	svc          *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	reservations := newFakeReservationStore()
	points := newFakePointStore()
	payments := newFakePaymentStore(reservations, points)
	publisher := &fakeCompletedPublisher{}
	svc := NewPaymentService(lock.NewMemoryLocker(), reservations, payments, publisher, testLogger())
	return &paymentFixture{
		reservations: reservations,
		points:       points,
		payments:     payments,
		publisher:    publisher,
		svc:          svc,
	}
}

func (f *paymentFixture) holdSeat(t *testing.T, reservationID, userID string) {
	t.Helper()
	now := time.Now()
	err := f.reservations.CreateHold(context.Background(), &model.Reservation{
		ReservationID: reservationID,
		UserID:        userID,
		SeatID:        "seat-" + reservationID,
		Status:        model.ReservationHeld,
		HeldAt:        now,
		ExpiresAt:     now.Add(5 * time.Minute),
		CreatedAt:     now,
	})
	require.NoError(t, err)
}

func TestProcessPayment_Success(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 5000)
	require.NoError(t, err)

	payment, err := f.svc.ProcessPayment(ctx, "user-1", "res-1", 2000)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, payment.Status)
	assert.Equal(t, int64(2000), payment.Amount)

	assert.Equal(t, model.ReservationConfirmed, f.reservations.status("res-1"))
	assert.Equal(t, int64(3000), f.points.balance("user-1"))

	published := f.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, payment.PaymentID, published[0].PaymentID)
	assert.Equal(t, "seat-res-1", published[0].SeatID)
}

func TestProcessPayment_UnknownReservation(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.svc.ProcessPayment(context.Background(), "user-1", "missing", 100)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProcessPayment_WrongOwner(t *testing.T) {
	f := newPaymentFixture(t)
	f.holdSeat(t, "res-1", "user-1")

	_, err := f.svc.ProcessPayment(context.Background(), "user-2", "res-1", 100)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.ReservationHeld, f.reservations.status("res-1"))
}

func TestProcessPayment_ExpiredWindow(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 5000)
	require.NoError(t, err)

	f.reservations.mu.Lock()
	f.reservations.byID["res-1"].ExpiresAt = time.Now().Add(-time.Second)
	f.reservations.mu.Unlock()

	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 100)
	assert.ErrorIs(t, err, repository.ErrExpired)
	assert.Equal(t, int64(5000), f.points.balance("user-1"))
	assert.Empty(t, f.publisher.published())
}

func TestProcessPayment_AlreadySettled(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 5000)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 1000)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 1000)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
	assert.Equal(t, int64(4000), f.points.balance("user-1"))
	assert.Equal(t, 1, f.payments.count())
}

func TestProcessPayment_InsufficientFundsLeavesHold(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 500)
	require.NoError(t, err)

	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 2000)
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	// The hold survives a refused payment so the user can top up and retry.
	assert.Equal(t, model.ReservationHeld, f.reservations.status("res-1"))
	assert.Equal(t, int64(500), f.points.balance("user-1"))
	assert.Zero(t, f.payments.count())
	assert.Empty(t, f.publisher.published())
}

func TestProcessPayment_InvalidArguments(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, "", "res-1", 100)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = f.svc.ProcessPayment(ctx, "user-1", "", 100)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 0)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
}

func TestProcessPayment_ConcurrentAttemptsSettleOnce(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 10000)
	require.NoError(t, err)

	const attempts = 5
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.ProcessPayment(context.Background(), "user-1", "res-1", 2000)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrInvalidState):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(8000), f.points.balance("user-1"))
	assert.Equal(t, 1, f.payments.count())
	assert.Len(t, f.publisher.published(), 1)
}

func TestProcessPayment_RacingExpiryWorker(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 5000)
	require.NoError(t, err)

	// The expiry worker wins the race; the payment must observe the
	// terminal state and refuse.
	expired, err := f.reservations.ExpireIfHeld(ctx, "res-1")
	require.NoError(t, err)
	require.True(t, expired)

	_, err = f.svc.ProcessPayment(ctx, "user-1", "res-1", 2000)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
	assert.Equal(t, int64(5000), f.points.balance("user-1"))
}

func TestGetPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	f.holdSeat(t, "res-1", "user-1")
	_, err := f.points.Credit(ctx, "user-1", 5000)
	require.NoError(t, err)

	paid, err := f.svc.ProcessPayment(ctx, "user-1", "res-1", 2000)
	require.NoError(t, err)

	got, err := f.svc.GetPayment(ctx, "user-1", "res-1")
	require.NoError(t, err)
	assert.Equal(t, paid.PaymentID, got.PaymentID)

	_, err = f.svc.GetPayment(ctx, "user-2", "res-1")
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = f.svc.GetPayment(ctx, "user-1", "res-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
