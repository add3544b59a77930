package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// Redis keys for the two leaderboards and the per-schedule
// first-reservation timestamp.
const (
	reservationCountKey    = "ranking:reservation-count"
	soldOutSpeedKey        = "ranking:sold-out-speed"
	firstReservationPrefix = "ranking:first-reservation:"

	firstReservationTTL = 24 * time.Hour
)

// RankingRepo keeps the leaderboard state in Redis sorted sets. The
// aggregator owns this state; it is derived, eventually-consistent data
// and never a source of truth.
type RankingRepo struct {
	rdb *redis.Client
}

// NewRankingRepo returns a RankingRepo bound to the given client.
func NewRankingRepo(rdb *redis.Client) *RankingRepo {
	return &RankingRepo{rdb: rdb}
}

// MarkFirstReservation records the first confirmed reservation instant
// for a schedule. SET NX makes repeated calls no-ops: only the first
// confirmation's timestamp survives.
func (r *RankingRepo) MarkFirstReservation(ctx context.Context, scheduleID string, at time.Time) error {
	return r.rdb.SetNX(ctx,
		firstReservationPrefix+scheduleID,
		strconv.FormatInt(at.UnixMilli(), 10),
		firstReservationTTL,
	).Err()
}

// FirstReservationAt returns the recorded first-reservation instant,
// with ok=false when none is recorded (or it has aged out).
func (r *RankingRepo) FirstReservationAt(ctx context.Context, scheduleID string) (time.Time, bool, error) {
	raw, err := r.rdb.Get(ctx, firstReservationPrefix+scheduleID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// IncrReservationCount bumps the popularity score for a schedule by one
// and returns the new count.
func (r *RankingRepo) IncrReservationCount(ctx context.Context, scheduleID string) (float64, error) {
	return r.rdb.ZIncrBy(ctx, reservationCountKey, 1, scheduleID).Result()
}

// RecordSoldOutOnce writes the sell-out duration for a schedule, in
// seconds. ZADD NX guards against duplicate "hit capacity" events from
// redelivered messages: the first write wins, later ones are no-ops.
func (r *RankingRepo) RecordSoldOutOnce(ctx context.Context, scheduleID string, seconds float64) error {
	return r.rdb.ZAddNX(ctx, soldOutSpeedKey, redis.Z{
		Score:  seconds,
		Member: scheduleID,
	}).Err()
}

// TopReservationCounts returns the most-reserved schedules, highest
// count first.
func (r *RankingRepo) TopReservationCounts(ctx context.Context, limit int) ([]model.RankingEntry, error) {
	zs, err := r.rdb.ZRevRangeWithScores(ctx, reservationCountKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	return toEntries(zs), nil
}

// TopSoldOutSpeeds returns the fastest sell-outs, smallest duration
// first.
func (r *RankingRepo) TopSoldOutSpeeds(ctx context.Context, limit int) ([]model.RankingEntry, error) {
	zs, err := r.rdb.ZRangeWithScores(ctx, soldOutSpeedKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	return toEntries(zs), nil
}

func toEntries(zs []redis.Z) []model.RankingEntry {
	out := make([]model.RankingEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, model.RankingEntry{
			ScheduleID: member,
			Score:      z.Score,
		})
	}
	return out
}
