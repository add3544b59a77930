// Package handler contains the HTTP handlers. Handlers bind and
// validate request bodies, delegate to the service layer and translate
// domain errors into status codes. Endpoints behind the admission
// middleware read the authenticated user from the echo context.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/repository"
)

// getUserID extracts the user placed in the context by the queue token
// middleware.
func getUserID(c echo.Context) (string, error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", errors.New("no user in context")
	}
	return userID, nil
}

// writeError maps domain errors onto HTTP responses. Unrecognized
// errors become an opaque 500 so internals never leak to clients.
func writeError(c echo.Context, err error) error {
	var notAcquired *lock.ErrNotAcquired
	switch {
	case errors.Is(err, repository.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat already held"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not payable"})
	case errors.Is(err, repository.ErrExpired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation expired"})
	case errors.Is(err, repository.ErrInsufficientFunds):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient point balance"})
	case errors.As(err, &notAcquired):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "busy, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
