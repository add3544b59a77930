package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// QueueHandler exposes the admission queue endpoints.
type QueueHandler struct {
	Queue *service.QueueService
}

func NewQueueHandler(queue *service.QueueService) *QueueHandler {
	if queue == nil {
		panic("nil queue service passed to NewQueueHandler")
	}
	return &QueueHandler{Queue: queue}
}

// IssueToken handles POST /v1/queue/token. The body carries the user
// ID; a live token for the same user is returned unchanged.
func (h *QueueHandler) IssueToken(c echo.Context) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	token, err := h.Queue.IssueToken(c.Request().Context(), body.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      token.TokenValue,
		"position":   token.QueuePosition,
		"status":     token.Status,
		"expires_at": token.ExpiresAt,
	})
}

// Status handles GET /v1/queue/status. The token rides in the
// X-Queue-Token header; admitted users see position 0.
func (h *QueueHandler) Status(c echo.Context) error {
	tokenValue := c.Request().Header.Get("X-Queue-Token")
	if tokenValue == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing X-Queue-Token header"})
	}
	status, err := h.Queue.Status(c.Request().Context(), tokenValue)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
