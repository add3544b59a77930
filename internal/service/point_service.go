package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// PointStore is the persistence surface for balances and the ledger.
// *repository.PointRepo satisfies it.
type PointStore interface {
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, refPaymentID *string) (int64, error)
	GetBalance(ctx context.Context, userID string) (*model.PointBalance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.PointTransaction, error)
}

// PointService manages prepaid balances. Every mutation runs under the
// user's point lease so charges and payments against one balance are
// strictly serialized across instances.
type PointService struct {
	locker lock.Locker
	points PointStore
	logger *zap.SugaredLogger
}

func NewPointService(locker lock.Locker, points PointStore, logger *zap.SugaredLogger) *PointService {
	return &PointService{locker: locker, points: points, logger: logger}
}

// ChargePoints adds funds and returns the new balance.
func (s *PointService) ChargePoints(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, repository.ErrInvalidArgument
	}
	var balance int64
	err := s.locker.WithLock(ctx, "point:"+userID, func(ctx context.Context) error {
		var err error
		balance, err = s.points.Credit(ctx, userID, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Infow("points charged", "userId", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// UsePoints debits funds, failing with ErrInsufficientFunds before the
// balance would go negative. refPaymentID links the ledger entry to
// the payment that spent the points.
func (s *PointService) UsePoints(ctx context.Context, userID string, amount int64, refPaymentID *string) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, repository.ErrInvalidArgument
	}
	var balance int64
	err := s.locker.WithLock(ctx, "point:"+userID, func(ctx context.Context) error {
		var err error
		balance, err = s.points.Debit(ctx, userID, amount, refPaymentID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// GetBalance returns the current balance for one user.
func (s *PointService) GetBalance(ctx context.Context, userID string) (*model.PointBalance, error) {
	if userID == "" {
		return nil, repository.ErrInvalidArgument
	}
	return s.points.GetBalance(ctx, userID)
}

// ListTransactions returns the most recent ledger entries.
func (s *PointService) ListTransactions(ctx context.Context, userID string, limit int) ([]*model.PointTransaction, error) {
	if userID == "" {
		return nil, repository.ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.points.ListTransactions(ctx, userID, limit)
}
