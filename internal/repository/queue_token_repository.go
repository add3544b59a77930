package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// Redis key layout for the admission queue. The waiting and active
// sorted sets hold counts and FIFO order in the shared store, never in
// process memory, so they stay correct across service instances.
const (
	tokenKeyPrefix = "queue:token:" // hash: full token state, keyed by token value
	userKeyPrefix  = "queue:user:"  // string: userId -> tokenValue
	waitingSetKey  = "queue:waiting" // zset: score = issuedAt (unix ms)
	activeSetKey   = "queue:active"  // zset: score = expiresAt (unix ms)
)

// QueueTokenRepo stores admission tokens in Redis.
type QueueTokenRepo struct {
	rdb *redis.Client
}

// NewQueueTokenRepo returns a QueueTokenRepo bound to the given client.
func NewQueueTokenRepo(rdb *redis.Client) *QueueTokenRepo {
	return &QueueTokenRepo{rdb: rdb}
}

// Save writes the token hash, the user index and, for WAITING tokens,
// the waiting-set entry. Key TTLs follow the token's own deadline so
// Redis reaps abandoned state on its own.
func (r *QueueTokenRepo) Save(ctx context.Context, t *model.QueueToken) error {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, tokenKeyPrefix+t.TokenValue, map[string]interface{}{
		"tokenId":       t.TokenID,
		"userId":        t.UserID,
		"tokenValue":    t.TokenValue,
		"queuePosition": strconv.Itoa(t.QueuePosition),
		"status":        t.Status,
		"issuedAt":      t.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expiresAt":     t.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, tokenKeyPrefix+t.TokenValue, ttl)
	pipe.Set(ctx, userKeyPrefix+t.UserID, t.TokenValue, ttl)
	if t.Status == model.TokenWaiting {
		pipe.ZAdd(ctx, waitingSetKey, redis.Z{
			Score:  float64(t.IssuedAt.UnixMilli()),
			Member: t.TokenValue,
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// FindByTokenValue loads a token by its value. Returns (nil, nil) for
// an unknown token; the service layer decides what that means for the
// caller.
func (r *QueueTokenRepo) FindByTokenValue(ctx context.Context, tokenValue string) (*model.QueueToken, error) {
	data, err := r.rdb.HGetAll(ctx, tokenKeyPrefix+tokenValue).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data["tokenValue"] == "" {
		return nil, nil
	}
	return parseToken(data)
}

// FindByUserID follows the userId index to the user's current token.
// Returns (nil, nil) when the user has no live token.
func (r *QueueTokenRepo) FindByUserID(ctx context.Context, userID string) (*model.QueueToken, error) {
	tokenValue, err := r.rdb.Get(ctx, userKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.FindByTokenValue(ctx, tokenValue)
}

// CountWaiting returns the number of tokens in the waiting order.
func (r *QueueTokenRepo) CountWaiting(ctx context.Context) (int64, error) {
	return r.rdb.ZCard(ctx, waitingSetKey).Result()
}

// CountActive returns the number of currently admitted tokens.
func (r *QueueTokenRepo) CountActive(ctx context.Context) (int64, error) {
	return r.rdb.ZCard(ctx, activeSetKey).Result()
}

// ActivateNext promotes up to n WAITING tokens in FIFO order (smallest
// issuedAt first). Each promoted token gets status ACTIVE, a fresh
// expiry of now+activeTTL, and moves from the waiting set to the active
// set. Returns the number promoted.
func (r *QueueTokenRepo) ActivateNext(ctx context.Context, n int64, activeTTL time.Duration) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	tokenValues, err := r.rdb.ZRange(ctx, waitingSetKey, 0, n-1).Result()
	if err != nil {
		return 0, err
	}
	if len(tokenValues) == 0 {
		return 0, nil
	}

	now := time.Now()
	expiresAt := now.Add(activeTTL)

	var activated int64
	for _, tokenValue := range tokenValues {
		userID, err := r.rdb.HGet(ctx, tokenKeyPrefix+tokenValue, "userId").Result()
		if err == redis.Nil {
			// Hash already reaped by TTL; drop the dangling zset entry.
			r.rdb.ZRem(ctx, waitingSetKey, tokenValue)
			continue
		}
		if err != nil {
			return activated, err
		}

		pipe := r.rdb.TxPipeline()
		pipe.HSet(ctx, tokenKeyPrefix+tokenValue,
			"status", model.TokenActive,
			"expiresAt", expiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, tokenKeyPrefix+tokenValue, activeTTL)
		pipe.Set(ctx, userKeyPrefix+userID, tokenValue, activeTTL)
		pipe.ZRem(ctx, waitingSetKey, tokenValue)
		pipe.ZAdd(ctx, activeSetKey, redis.Z{
			Score:  float64(expiresAt.UnixMilli()),
			Member: tokenValue,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return activated, err
		}
		activated++
	}
	return activated, nil
}

// ExpireWaitingIssuedBefore marks WAITING tokens issued at or before
// cutoff as EXPIRED and removes them from the waiting order. Returns
// the number expired.
func (r *QueueTokenRepo) ExpireWaitingIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tokenValues, err := r.rdb.ZRangeByScore(ctx, waitingSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	var expired int64
	for _, tokenValue := range tokenValues {
		if err := r.MarkExpired(ctx, tokenValue); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// ExpireActiveDueBefore drops ACTIVE tokens whose expiry deadline has
// passed, freeing their admission slots. Returns the number dropped.
func (r *QueueTokenRepo) ExpireActiveDueBefore(ctx context.Context, now time.Time) (int64, error) {
	tokenValues, err := r.rdb.ZRangeByScore(ctx, activeSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	var dropped int64
	for _, tokenValue := range tokenValues {
		if err := r.MarkExpired(ctx, tokenValue); err != nil {
			return dropped, err
		}
		dropped++
	}
	return dropped, nil
}

// MarkExpired terminally expires a single token and clears its user
// index so the user can request a fresh token immediately.
func (r *QueueTokenRepo) MarkExpired(ctx context.Context, tokenValue string) error {
	userID, err := r.rdb.HGet(ctx, tokenKeyPrefix+tokenValue, "userId").Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, tokenKeyPrefix+tokenValue, "status", model.TokenExpired)
	pipe.ZRem(ctx, waitingSetKey, tokenValue)
	pipe.ZRem(ctx, activeSetKey, tokenValue)
	if userID != "" {
		pipe.Del(ctx, userKeyPrefix+userID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func parseToken(data map[string]string) (*model.QueueToken, error) {
	position, _ := strconv.Atoi(data["queuePosition"])
	issuedAt, err := time.Parse(time.RFC3339Nano, data["issuedAt"])
	if err != nil {
		return nil, err
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, data["expiresAt"])
	if err != nil {
		return nil, err
	}
	return &model.QueueToken{
		TokenID:       data["tokenId"],
		UserID:        data["userId"],
		TokenValue:    data["tokenValue"],
		QueuePosition: position,
		Status:        data["status"],
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
	}, nil
}
