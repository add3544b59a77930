package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/repository"
	"github.com/ticketlab/concert-reservation/internal/service"
)

// QueueToken gates the purchase-path endpoints on an admitted queue
// token. The token rides in the X-Queue-Token header; on success the
// user ID and the raw token are placed in the request context for the
// handlers downstream.
func QueueToken(queue *service.QueueService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenValue := c.Request().Header.Get("X-Queue-Token")
			if tokenValue == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing X-Queue-Token header"})
			}
			token, err := queue.Validate(c.Request().Context(), tokenValue)
			if err != nil {
				switch {
				case errors.Is(err, repository.ErrNotFound):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid queue token"})
				case errors.Is(err, repository.ErrForbidden):
					return c.JSON(http.StatusForbidden, echo.Map{"error": "queue token is not active"})
				default:
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
			}
			c.Set("user_id", token.UserID)
			c.Set("queue_token", tokenValue)
			return next(c)
		}
	}
}
