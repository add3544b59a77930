package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/service"
)

// RankingHandler serves the public leaderboards.
type RankingHandler struct {
	Ranking *service.RankingService
}

func NewRankingHandler(ranking *service.RankingService) *RankingHandler {
	if ranking == nil {
		panic("nil ranking service passed to NewRankingHandler")
	}
	return &RankingHandler{Ranking: ranking}
}

// Popular handles GET /v1/rankings/popular.
func (h *RankingHandler) Popular(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.Ranking.GetPopularRanking(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ranking": entries})
}

// SoldOut handles GET /v1/rankings/sold-out.
func (h *RankingHandler) SoldOut(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.Ranking.GetSoldOutRanking(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ranking": entries})
}
