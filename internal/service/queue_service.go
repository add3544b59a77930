// Package service holds the business rules of the reservation system.
// Services coordinate repositories, distributed leases and the event
// publisher; they never touch SQL or Redis directly and depend on
// narrow interfaces so tests can run against in-memory fakes.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/monitoring"
	"github.com/ticketlab/concert-reservation/internal/repository"
	"github.com/ticketlab/concert-reservation/internal/utils"
)

// TokenStore is the persistence surface the queue service needs.
// *repository.QueueTokenRepo satisfies it.
type TokenStore interface {
	Save(ctx context.Context, token *model.QueueToken) error
	FindByTokenValue(ctx context.Context, tokenValue string) (*model.QueueToken, error)
	FindByUserID(ctx context.Context, userID string) (*model.QueueToken, error)
	CountWaiting(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	ActivateNext(ctx context.Context, n int64, activeTTL time.Duration) (int64, error)
	ExpireWaitingIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ExpireActiveDueBefore(ctx context.Context, now time.Time) (int64, error)
	MarkExpired(ctx context.Context, tokenValue string) error
}

// QueueStatus is what a polling client sees.
type QueueStatus struct {
	Position int    `json:"position"`
	Status   string `json:"status"`
}

// QueueService implements the admission queue: users receive a signed
// token in WAITING state and a background scheduler promotes them into
// the bounded ACTIVE set in issuance order.
type QueueService struct {
	tokens    TokenStore
	secret    string
	waitTTL   time.Duration
	activeTTL time.Duration
	capacity  int64
	logger    *zap.SugaredLogger
}

func NewQueueService(tokens TokenStore, secret string, waitTTL, activeTTL time.Duration, capacity int, logger *zap.SugaredLogger) *QueueService {
	return &QueueService{
		tokens:    tokens,
		secret:    secret,
		waitTTL:   waitTTL,
		activeTTL: activeTTL,
		capacity:  int64(capacity),
		logger:    logger,
	}
}

// IssueToken hands out an admission token. Re-issuing while a live
// token exists returns the existing one unchanged, so retries and
// double-clicks never push a user back in line.
func (s *QueueService) IssueToken(ctx context.Context, userID string) (*model.QueueToken, error) {
	if userID == "" {
		return nil, repository.ErrInvalidArgument
	}
	existing, err := s.tokens.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.IsExpired() {
		return existing, nil
	}

	waiting, err := s.tokens.CountWaiting(ctx)
	if err != nil {
		return nil, err
	}

	tokenID := uuid.NewString()
	value, err := utils.MintTokenValue(s.secret, tokenID, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	token := &model.QueueToken{
		TokenID:       tokenID,
		UserID:        userID,
		TokenValue:    value,
		QueuePosition: int(waiting) + 1,
		Status:        model.TokenWaiting,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.waitTTL),
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, err
	}
	monitoring.TokensIssued.Inc()
	s.logger.Infow("queue token issued", "userId", userID, "position", token.QueuePosition)
	return token, nil
}

// ActivateTokens promotes the oldest waiting tokens into the free
// ACTIVE slots. Called periodically by the scheduler; concurrent runs
// may briefly overshoot capacity, which the system tolerates because
// admission is throttling, not a hard quota.
func (s *QueueService) ActivateTokens(ctx context.Context) (int64, error) {
	active, err := s.tokens.CountActive(ctx)
	if err != nil {
		return 0, err
	}
	slots := s.capacity - active
	if slots <= 0 {
		return 0, nil
	}
	promoted, err := s.tokens.ActivateNext(ctx, slots, s.activeTTL)
	if err != nil {
		return 0, err
	}
	if promoted > 0 {
		monitoring.TokensActivated.Add(float64(promoted))
		s.logger.Infow("queue tokens activated", "count", promoted)
	}
	return promoted, nil
}

// CleanupExpiredTokens expires waiting tokens past their wait window
// and active tokens past their activity window, freeing ACTIVE slots.
func (s *QueueService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now()
	waiting, err := s.tokens.ExpireWaitingIssuedBefore(ctx, now.Add(-s.waitTTL))
	if err != nil {
		return 0, err
	}
	active, err := s.tokens.ExpireActiveDueBefore(ctx, now)
	if err != nil {
		return waiting, err
	}
	total := waiting + active
	if total > 0 {
		monitoring.TokensExpired.Add(float64(total))
		s.logger.Infow("queue tokens expired", "waiting", waiting, "active", active)
	}
	return total, nil
}

// Validate gates protected endpoints. Only an unexpired ACTIVE token
// passes: an unknown or tampered token is ErrNotFound, a known token
// that is not admitted yet (or no longer) is ErrForbidden.
func (s *QueueService) Validate(ctx context.Context, tokenValue string) (*model.QueueToken, error) {
	claims, err := utils.ParseTokenValue(s.secret, tokenValue)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	token, err := s.tokens.FindByTokenValue(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, repository.ErrNotFound
	}
	if token.UserID != claims.UserID {
		return nil, repository.ErrForbidden
	}
	if token.Status != model.TokenActive || token.IsExpired() {
		return nil, repository.ErrForbidden
	}
	return token, nil
}

// Status reports queue progress for polling clients. Admitted users
// see position 0.
func (s *QueueService) Status(ctx context.Context, tokenValue string) (*QueueStatus, error) {
	if _, err := utils.ParseTokenValue(s.secret, tokenValue); err != nil {
		return nil, repository.ErrNotFound
	}
	token, err := s.tokens.FindByTokenValue(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, repository.ErrNotFound
	}
	status := token.Status
	if token.IsExpired() {
		status = model.TokenExpired
	}
	position := token.QueuePosition
	if status != model.TokenWaiting {
		position = 0
	}
	return &QueueStatus{Position: position, Status: status}, nil
}

// ExpireToken retires a token once its holder has completed payment,
// releasing the ACTIVE slot early. Best-effort: callers ignore errors.
func (s *QueueService) ExpireToken(ctx context.Context, tokenValue string) error {
	if tokenValue == "" {
		return nil
	}
	return s.tokens.MarkExpired(ctx, tokenValue)
}
