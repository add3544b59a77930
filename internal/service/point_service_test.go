package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

func newTestPointService(store *fakePointStore) *PointService {
	return NewPointService(lock.NewMemoryLocker(), store, testLogger())
}

func TestChargePoints(t *testing.T) {
	store := newFakePointStore()
	svc := newTestPointService(store)
	ctx := context.Background()

	balance, err := svc.ChargePoints(ctx, "user-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	balance, err = svc.ChargePoints(ctx, "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)
}

func TestChargePoints_RejectsNonPositiveAmounts(t *testing.T) {
	svc := newTestPointService(newFakePointStore())
	ctx := context.Background()

	_, err := svc.ChargePoints(ctx, "user-1", 0)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = svc.ChargePoints(ctx, "user-1", -100)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = svc.ChargePoints(ctx, "", 100)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
}

func TestChargePoints_ConcurrentChargesAllLand(t *testing.T) {
	store := newFakePointStore()
	svc := newTestPointService(store)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ChargePoints(context.Background(), "user-1", 1000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*1000), store.balance("user-1"))
}

func TestUsePoints_InsufficientFunds(t *testing.T) {
	store := newFakePointStore()
	svc := newTestPointService(store)
	ctx := context.Background()

	_, err := svc.ChargePoints(ctx, "user-1", 500)
	require.NoError(t, err)

	_, err = svc.UsePoints(ctx, "user-1", 501, nil)
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
	assert.Equal(t, int64(500), store.balance("user-1"))
}

func TestUsePoints_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newFakePointStore()
	svc := newTestPointService(store)
	ctx := context.Background()

	_, err := svc.ChargePoints(ctx, "user-1", 5000)
	require.NoError(t, err)

	const workers = 5
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.UsePoints(context.Background(), "user-1", 2000, nil)
		}(i)
	}
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrInsufficientFunds):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 3, refused)
	assert.Equal(t, int64(1000), store.balance("user-1"))
}

func TestGetBalance_UnknownUser(t *testing.T) {
	svc := newTestPointService(newFakePointStore())
	_, err := svc.GetBalance(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListTransactions_LedgerMatchesMutations(t *testing.T) {
	store := newFakePointStore()
	svc := newTestPointService(store)
	ctx := context.Background()

	_, err := svc.ChargePoints(ctx, "user-1", 3000)
	require.NoError(t, err)
	_, err = svc.UsePoints(ctx, "user-1", 1000, nil)
	require.NoError(t, err)

	txs, err := svc.ListTransactions(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	// Most recent first.
	assert.Equal(t, model.PointTxPayment, txs[0].TxType)
	assert.Equal(t, int64(2000), txs[0].BalanceAfter)
	assert.Equal(t, model.PointTxCharge, txs[1].TxType)
}
