package service

import (
	"context"

	"github.com/ticketlab/concert-reservation/internal/model"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// CatalogReader is the read surface for browse endpoints.
// *repository.ConcertRepo satisfies it.
type CatalogReader interface {
	FindSchedulesByConcertID(ctx context.Context, concertID string) ([]model.ConcertSchedule, error)
	FindSeatsByScheduleID(ctx context.Context, scheduleID string) ([]model.Seat, error)
}

// ConcertService serves catalog browse reads through the cache-backed
// repository.
type ConcertService struct {
	catalog CatalogReader
}

func NewConcertService(catalog CatalogReader) *ConcertService {
	return &ConcertService{catalog: catalog}
}

// GetAvailableSchedules lists the schedules of a concert.
func (s *ConcertService) GetAvailableSchedules(ctx context.Context, concertID string) ([]model.ConcertSchedule, error) {
	if concertID == "" {
		return nil, repository.ErrInvalidArgument
	}
	return s.catalog.FindSchedulesByConcertID(ctx, concertID)
}

// GetAvailableSeats lists the seat masters of a schedule. Availability
// is decided at hold time, not here; this is the browse view.
func (s *ConcertService) GetAvailableSeats(ctx context.Context, scheduleID string) ([]model.Seat, error) {
	if scheduleID == "" {
		return nil, repository.ErrInvalidArgument
	}
	return s.catalog.FindSeatsByScheduleID(ctx, scheduleID)
}
