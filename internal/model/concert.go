package model

import "time"

// Concert is a catalog master record. The catalog is external read-only
// state from the point of view of the reservation core; it is consumed
// through the cached concert repository.
type Concert struct {
	ConcertID   string
	Title       string
	Description string
	CreatedAt   time.Time
}

// ConcertSchedule is one dated performance of a concert.
type ConcertSchedule struct {
	ScheduleID  string
	ConcertID   string
	ConcertDate string
	CreatedAt   time.Time
}

// Seat is a seat master for a schedule. Seat masters are immutable, so
// they are cached with a day-long TTL.
type Seat struct {
	SeatID     string
	ScheduleID string
	SeatNo     int
	CreatedAt  time.Time
}

// ScheduleWithConcert joins a schedule with its concert metadata for
// ranking display.
type ScheduleWithConcert struct {
	ScheduleID   string
	ConcertDate  string
	ConcertID    string
	ConcertTitle string
}
