package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// PointHandler exposes the balance endpoints. Charging and reading a
// balance do not require queue admission; only the purchase flow does.
type PointHandler struct {
	Points *service.PointService
}

func NewPointHandler(points *service.PointService) *PointHandler {
	if points == nil {
		panic("nil point service passed to NewPointHandler")
	}
	return &PointHandler{Points: points}
}

// Charge handles POST /v1/points/charge.
func (h *PointHandler) Charge(c echo.Context) error {
	var body struct {
		UserID string `json:"user_id"`
		Amount int64  `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	balance, err := h.Points.ChargePoints(c.Request().Context(), body.UserID, body.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": body.UserID,
		"balance": balance,
	})
}

// Balance handles GET /v1/points/balance/:userId.
func (h *PointHandler) Balance(c echo.Context) error {
	userID := c.Param("userId")
	balance, err := h.Points.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    balance.UserID,
		"balance":    balance.Balance,
		"updated_at": balance.UpdatedAt,
	})
}

// Transactions handles GET /v1/points/transactions/:userId with an
// optional limit query parameter.
func (h *PointHandler) Transactions(c echo.Context) error {
	userID := c.Param("userId")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	txs, err := h.Points.ListTransactions(c.Request().Context(), userID, limit)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(txs))
	for _, t := range txs {
		out = append(out, echo.Map{
			"tx_id":         t.TxID,
			"tx_type":       t.TxType,
			"amount":        t.Amount,
			"balance_after": t.BalanceAfter,
			"created_at":    t.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "transactions": out})
}
