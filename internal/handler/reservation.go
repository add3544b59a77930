package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// ReservationHandler exposes seat hold endpoints. All routes sit
// behind the queue token middleware.
type ReservationHandler struct {
	Reservations *service.ReservationService
}

func NewReservationHandler(reservations *service.ReservationService) *ReservationHandler {
	if reservations == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	return &ReservationHandler{Reservations: reservations}
}

// HoldSeat handles POST /v1/reservations. The winner of a contended
// seat gets 201 with the hold deadline; losers get 409.
func (h *ReservationHandler) HoldSeat(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ScheduleID string `json:"schedule_id"`
		SeatNo     int    `json:"seat_no"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ScheduleID == "" || body.SeatNo <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id and seat_no are required"})
	}
	res, err := h.Reservations.HoldSeat(c.Request().Context(), userID, body.ScheduleID, body.SeatNo)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ReservationID,
		"seat_id":        res.SeatID,
		"status":         res.Status,
		"expires_at":     res.ExpiresAt,
	})
}

// GetReservation handles GET /v1/reservations/:id for the owner.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Reservations.GetReservation(c.Request().Context(), userID, reservationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": res.ReservationID,
		"seat_id":        res.SeatID,
		"status":         res.Status,
		"held_at":        res.HeldAt,
		"expires_at":     res.ExpiresAt,
	})
}
