// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ticketlab/concert-reservation/internal/config"
	"github.com/ticketlab/concert-reservation/internal/handler"
	"github.com/ticketlab/concert-reservation/internal/middleware"
	"github.com/ticketlab/concert-reservation/internal/service"
)

// Handlers bundles everything RegisterRoutes needs.
type Handlers struct {
	Queue        *handler.QueueHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
	Points       *handler.PointHandler
	Rankings     *handler.RankingHandler
	Concerts     *handler.ConcertHandler
}

// RegisterRoutes mounts every endpoint. The purchase path (holds and
// payments) sits behind the queue token middleware; token issuance is
// rate limited; browse, balance and ranking reads are open.
func RegisterRoutes(e *echo.Echo, h Handlers, queueSvc *service.QueueService, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Admission queue. Issuance is the abuse target, so the limiter
	// guards it specifically.
	queue := e.Group("/v1/queue")
	queue.POST("/token", h.Queue.IssueToken, middleware.RateLimit(rlCfg, rdb))
	queue.GET("/status", h.Queue.Status)

	// Catalog browsing and leaderboards are public reads.
	e.GET("/v1/concerts/:id/schedules", h.Concerts.Schedules)
	e.GET("/v1/schedules/:id/seats", h.Concerts.Seats)
	e.GET("/v1/rankings/popular", h.Rankings.Popular)
	e.GET("/v1/rankings/sold-out", h.Rankings.SoldOut)

	// Balance management does not require queue admission.
	e.POST("/v1/points/charge", h.Points.Charge)
	e.GET("/v1/points/balance/:userId", h.Points.Balance)
	e.GET("/v1/points/transactions/:userId", h.Points.Transactions)

	// The purchase path requires an ACTIVE queue token.
	admitted := e.Group("/v1", middleware.QueueToken(queueSvc))
	admitted.POST("/reservations", h.Reservations.HoldSeat)
	admitted.GET("/reservations/:id", h.Reservations.GetReservation)
	admitted.POST("/payments", h.Payments.Pay)
	admitted.GET("/reservations/:id/payment", h.Payments.GetPayment)
}
