package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ticketlab/concert-reservation/internal/model"
)

// RankingStore is the aggregate surface backed by Redis sorted sets.
// *repository.RankingRepo satisfies it.
type RankingStore interface {
	MarkFirstReservation(ctx context.Context, scheduleID string, at time.Time) error
	FirstReservationAt(ctx context.Context, scheduleID string) (time.Time, bool, error)
	IncrReservationCount(ctx context.Context, scheduleID string) (float64, error)
	RecordSoldOutOnce(ctx context.Context, scheduleID string, seconds float64) error
	TopReservationCounts(ctx context.Context, limit int) ([]model.RankingEntry, error)
	TopSoldOutSpeeds(ctx context.Context, limit int) ([]model.RankingEntry, error)
}

// ScheduleCatalog enriches ranking entries with concert details and
// reports seat capacity. *repository.ConcertRepo satisfies it.
type ScheduleCatalog interface {
	CountSeatsByScheduleID(ctx context.Context, scheduleID string) (int, error)
	FindScheduleWithConcert(ctx context.Context, scheduleID string) (*model.ScheduleWithConcert, error)
}

// RankingService folds confirmed sales into approximate popularity
// aggregates. Everything here is best-effort: counts may drift under
// redelivery and that is acceptable for a leaderboard.
type RankingService struct {
	ranking     RankingStore
	catalog     ScheduleCatalog
	fallbackCap int
	limit       int
	logger      *zap.SugaredLogger
}

func NewRankingService(ranking RankingStore, catalog ScheduleCatalog, fallbackCap, limit int, logger *zap.SugaredLogger) *RankingService {
	if fallbackCap <= 0 {
		fallbackCap = 50
	}
	if limit <= 0 {
		limit = 10
	}
	return &RankingService{ranking: ranking, catalog: catalog, fallbackCap: fallbackCap, limit: limit, logger: logger}
}

// OnReservationConfirmed bumps the reservation count for a schedule,
// stamps the first sale once, and records the sold-out speed the first
// time the count reaches the schedule's capacity.
func (s *RankingService) OnReservationConfirmed(ctx context.Context, scheduleID string) error {
	now := time.Now()
	if err := s.ranking.MarkFirstReservation(ctx, scheduleID, now); err != nil {
		return err
	}
	count, err := s.ranking.IncrReservationCount(ctx, scheduleID)
	if err != nil {
		return err
	}

	capacity, err := s.catalog.CountSeatsByScheduleID(ctx, scheduleID)
	if err != nil || capacity <= 0 {
		if err != nil {
			s.logger.Warnw("seat capacity lookup failed, using fallback", "scheduleId", scheduleID, "error", err)
		}
		capacity = s.fallbackCap
	}
	if count < float64(capacity) {
		return nil
	}

	first, ok, err := s.ranking.FirstReservationAt(ctx, scheduleID)
	if err != nil || !ok {
		return err
	}
	seconds := now.Sub(first).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	if err := s.ranking.RecordSoldOutOnce(ctx, scheduleID, seconds); err != nil {
		return err
	}
	s.logger.Infow("schedule sold out", "scheduleId", scheduleID, "seconds", seconds)
	return nil
}

// GetPopularRanking returns the schedules with the most confirmed
// reservations, highest first, enriched with concert details.
func (s *RankingService) GetPopularRanking(ctx context.Context, limit int) ([]model.RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = s.limit
	}
	entries, err := s.ranking.TopReservationCounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, entries)
	return entries, nil
}

// GetSoldOutRanking returns the schedules that sold out fastest,
// quickest first.
func (s *RankingService) GetSoldOutRanking(ctx context.Context, limit int) ([]model.RankingEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = s.limit
	}
	entries, err := s.ranking.TopSoldOutSpeeds(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, entries)
	return entries, nil
}

// enrich fills concert details in place. Catalog misses leave the
// entry with just its schedule ID rather than failing the whole list.
func (s *RankingService) enrich(ctx context.Context, entries []model.RankingEntry) {
	for i := range entries {
		sc, err := s.catalog.FindScheduleWithConcert(ctx, entries[i].ScheduleID)
		if err != nil {
			s.logger.Debugw("ranking enrich miss", "scheduleId", entries[i].ScheduleID, "error", err)
			continue
		}
		entries[i].ConcertTitle = sc.ConcertTitle
		entries[i].ConcertDate = sc.ConcertDate
	}
}
