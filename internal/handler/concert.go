package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// ConcertHandler serves catalog browse reads.
type ConcertHandler struct {
	Concerts *service.ConcertService
}

func NewConcertHandler(concerts *service.ConcertService) *ConcertHandler {
	if concerts == nil {
		panic("nil concert service passed to NewConcertHandler")
	}
	return &ConcertHandler{Concerts: concerts}
}

// Schedules handles GET /v1/concerts/:id/schedules.
func (h *ConcertHandler) Schedules(c echo.Context) error {
	concertID := c.Param("id")
	schedules, err := h.Concerts.GetAvailableSchedules(c.Request().Context(), concertID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, echo.Map{
			"schedule_id":  s.ScheduleID,
			"concert_id":   s.ConcertID,
			"concert_date": s.ConcertDate,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": out})
}

// Seats handles GET /v1/schedules/:id/seats.
func (h *ConcertHandler) Seats(c echo.Context) error {
	scheduleID := c.Param("id")
	seats, err := h.Concerts.GetAvailableSeats(c.Request().Context(), scheduleID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(seats))
	for _, s := range seats {
		out = append(out, echo.Map{
			"seat_id": s.SeatID,
			"seat_no": s.SeatNo,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"schedule_id": scheduleID, "seats": out})
}
