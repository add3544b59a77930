package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// PaymentHandler exposes payment endpoints behind the queue token
// middleware.
type PaymentHandler struct {
	Payments *service.PaymentService
	Queue    *service.QueueService
}

func NewPaymentHandler(payments *service.PaymentService, queue *service.QueueService) *PaymentHandler {
	if payments == nil {
		panic("nil payment service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments, Queue: queue}
}

// Pay handles POST /v1/payments. On success the caller's queue token
// is retired so the ACTIVE slot frees up immediately.
func (h *PaymentHandler) Pay(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ReservationID string `json:"reservation_id"`
		Amount        int64  `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	payment, err := h.Payments.ProcessPayment(c.Request().Context(), userID, body.ReservationID, body.Amount)
	if err != nil {
		return writeError(c, err)
	}
	if h.Queue != nil {
		if tokenValue, ok := c.Get("queue_token").(string); ok {
			_ = h.Queue.ExpireToken(c.Request().Context(), tokenValue)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payment_id":     payment.PaymentID,
		"reservation_id": payment.ReservationID,
		"amount":         payment.Amount,
		"status":         payment.Status,
		"paid_at":        payment.PaidAt,
	})
}

// GetPayment handles GET /v1/reservations/:id/payment for the owner.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	payment, err := h.Payments.GetPayment(c.Request().Context(), userID, reservationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payment_id":     payment.PaymentID,
		"reservation_id": payment.ReservationID,
		"amount":         payment.Amount,
		"status":         payment.Status,
		"paid_at":        payment.PaidAt,
	})
}
