package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ticketlab/concert-reservation/internal/cache"
	"github.com/ticketlab/concert-reservation/internal/config"
	"github.com/ticketlab/concert-reservation/internal/model"
)

// ConcertRepo serves catalog reads (concerts, schedules, seat masters)
// behind a read-through cache. The catalog is external, read-only state
// for the reservation core; this repository is its interface boundary.
// Seat masters never change after creation, so they carry a day-long
// TTL; schedule data gets minutes.
type ConcertRepo struct {
	db    *sql.DB
	cache *cache.Cache
	cfg   config.CacheConfig
}

// NewConcertRepo returns a ConcertRepo. cc may be nil, in which case
// every read goes straight to the database.
func NewConcertRepo(db *sql.DB, cc *cache.Cache, cfg config.CacheConfig) *ConcertRepo {
	if !cfg.Enabled {
		cc = nil
	}
	return &ConcertRepo{db: db, cache: cc, cfg: cfg}
}

// FindSchedulesByConcertID lists a concert's schedules, oldest first.
func (r *ConcertRepo) FindSchedulesByConcertID(ctx context.Context, concertID string) ([]model.ConcertSchedule, error) {
	return cache.GetOrLoad(ctx, r.cache, "schedule:"+concertID, r.cfg.ScheduleTTL,
		func(ctx context.Context) ([]model.ConcertSchedule, error) {
			const q = `SELECT schedule_id, concert_id, concert_date, created_at
			           FROM concert_schedule WHERE concert_id = ? ORDER BY concert_date ASC`
			rows, err := r.db.QueryContext(ctx, q, concertID)
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			var out []model.ConcertSchedule
			for rows.Next() {
				var s model.ConcertSchedule
				if err := rows.Scan(&s.ScheduleID, &s.ConcertID, &s.ConcertDate, &s.CreatedAt); err != nil {
					return nil, err
				}
				out = append(out, s)
			}
			return out, rows.Err()
		})
}

// FindSeatsByScheduleID lists the seat masters of a schedule, ordered
// by seat number.
func (r *ConcertRepo) FindSeatsByScheduleID(ctx context.Context, scheduleID string) ([]model.Seat, error) {
	return cache.GetOrLoad(ctx, r.cache, "seats:"+scheduleID, r.cfg.SeatTTL,
		func(ctx context.Context) ([]model.Seat, error) {
			const q = `SELECT seat_id, schedule_id, seat_no, created_at
			           FROM seat WHERE schedule_id = ? ORDER BY seat_no ASC`
			rows, err := r.db.QueryContext(ctx, q, scheduleID)
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			var out []model.Seat
			for rows.Next() {
				var s model.Seat
				if err := rows.Scan(&s.SeatID, &s.ScheduleID, &s.SeatNo, &s.CreatedAt); err != nil {
					return nil, err
				}
				out = append(out, s)
			}
			return out, rows.Err()
		})
}

// FindSeatByScheduleAndNo resolves one seat master. Returns ErrNotFound
// for an unknown schedule/number pair. Resolution goes through the
// cached seat list so a hot on-sale does not hammer the catalog.
func (r *ConcertRepo) FindSeatByScheduleAndNo(ctx context.Context, scheduleID string, seatNo int) (*model.Seat, error) {
	seats, err := r.FindSeatsByScheduleID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	for i := range seats {
		if seats[i].SeatNo == seatNo {
			return &seats[i], nil
		}
	}
	return nil, ErrNotFound
}

// CountSeatsByScheduleID reports the schedule's full seat capacity,
// used for sell-out detection.
func (r *ConcertRepo) CountSeatsByScheduleID(ctx context.Context, scheduleID string) (int, error) {
	seats, err := r.FindSeatsByScheduleID(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	return len(seats), nil
}

// FindScheduleIDBySeatID maps a seat back to its schedule. Returns
// ErrNotFound for an unknown seat.
func (r *ConcertRepo) FindScheduleIDBySeatID(ctx context.Context, seatID string) (string, error) {
	id, err := cache.GetOrLoad(ctx, r.cache, "seat-schedule:"+seatID, r.cfg.SeatTTL,
		func(ctx context.Context) (string, error) {
			const q = `SELECT schedule_id FROM seat WHERE seat_id = ?`
			var scheduleID string
			err := r.db.QueryRowContext(ctx, q, seatID).Scan(&scheduleID)
			if errors.Is(err, sql.ErrNoRows) {
				return "", ErrNotFound
			}
			return scheduleID, err
		})
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindScheduleWithConcert loads a schedule joined with its concert
// metadata, used to enrich ranking entries. Returns ErrNotFound for an
// unknown schedule.
func (r *ConcertRepo) FindScheduleWithConcert(ctx context.Context, scheduleID string) (*model.ScheduleWithConcert, error) {
	out, err := cache.GetOrLoad(ctx, r.cache, "schedule-concert:"+scheduleID, r.cfg.ScheduleTTL,
		func(ctx context.Context) (model.ScheduleWithConcert, error) {
			const q = `SELECT s.schedule_id, s.concert_date, c.concert_id, c.title
			           FROM concert_schedule s
			           JOIN concert c ON c.concert_id = s.concert_id
			           WHERE s.schedule_id = ?`
			var sc model.ScheduleWithConcert
			err := r.db.QueryRowContext(ctx, q, scheduleID).Scan(
				&sc.ScheduleID, &sc.ConcertDate, &sc.ConcertID, &sc.ConcertTitle,
			)
			if errors.Is(err, sql.ErrNoRows) {
				return sc, ErrNotFound
			}
			return sc, err
		})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
