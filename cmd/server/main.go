package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ticketlab/concert-reservation/internal/cache"
	"github.com/ticketlab/concert-reservation/internal/config"
	"github.com/ticketlab/concert-reservation/internal/database"
	"github.com/ticketlab/concert-reservation/internal/event"
	"github.com/ticketlab/concert-reservation/internal/handler"
	"github.com/ticketlab/concert-reservation/internal/lock"
	"github.com/ticketlab/concert-reservation/internal/logger"
	"github.com/ticketlab/concert-reservation/internal/repository"
	"github.com/ticketlab/concert-reservation/internal/router"
	"github.com/ticketlab/concert-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logs := logger.NewFactory(cfg.Env)
	defer logs.Sync()
	mainLog := logs.Create("main")

	db, err := database.Open(database.Config{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locker := lock.New(rdb, lock.Options{
		TTL:           cfg.LockTTL,
		Wait:          cfg.LockWait,
		RetryInterval: cfg.LockRetry,
	})

	cacheCfg := config.LoadCacheConfig()
	var cc *cache.Cache
	if cacheCfg.Enabled {
		cc = cache.New(rdb, cacheCfg.Prefix)
	}

	tokenRepo := repository.NewQueueTokenRepo(rdb)
	reservationRepo := repository.NewReservationRepo(db)
	pointRepo := repository.NewPointRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	concertRepo := repository.NewConcertRepo(db, cc, cacheCfg)
	rankingRepo := repository.NewRankingRepo(rdb)

	publisher, err := event.NewPublisher(cfg.AMQPURL, logs.Create("publisher"))
	if err != nil {
		log.Fatalf("connect rabbitmq: %v", err)
	}
	defer publisher.Close()

	queueSvc := service.NewQueueService(tokenRepo, cfg.TokenSecret,
		cfg.QueueWaitTTL, cfg.QueueActiveTTL, cfg.QueueMaxActive, logs.Create("queue"))
	reservationSvc := service.NewReservationService(locker, reservationRepo, concertRepo,
		publisher, cfg.HoldDuration, logs.Create("reservation"))
	pointSvc := service.NewPointService(locker, pointRepo, logs.Create("point"))
	paymentSvc := service.NewPaymentService(locker, reservationRepo, paymentRepo,
		publisher, logs.Create("payment"))
	rankingSvc := service.NewRankingService(rankingRepo, concertRepo,
		cfg.ScheduleCap, cfg.RankingLimit, logs.Create("ranking"))
	concertSvc := service.NewConcertService(concertRepo)
	notificationSvc := service.NewNotificationService(logs.Create("notification"))
	dataPlatformSvc := service.NewDataPlatformService(logs.Create("data-platform"))

	consumers := []*event.Consumer{
		event.NewRankingConsumer(cfg.AMQPURL, rankingSvc, concertRepo, logs.Create("ranking-consumer")),
		event.NewDataPlatformConsumer(cfg.AMQPURL, dataPlatformSvc, logs.Create("data-platform-consumer")),
		event.NewNotificationConsumer(cfg.AMQPURL, notificationSvc, logs.Create("notification-consumer")),
		event.NewExpirationConsumer(cfg.AMQPURL, reservationSvc, publisher, logs.Create("expiration-consumer")),
	}
	for _, c := range consumers {
		go c.Run(ctx)
	}

	scheduler := service.NewScheduler(queueSvc, reservationSvc,
		cfg.ActivateInterval, cfg.CleanupInterval, cfg.SweepInterval, logs.Create("scheduler"))
	go scheduler.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, router.Handlers{
		Queue:        handler.NewQueueHandler(queueSvc),
		Reservations: handler.NewReservationHandler(reservationSvc),
		Payments:     handler.NewPaymentHandler(paymentSvc, queueSvc),
		Points:       handler.NewPointHandler(pointSvc),
		Rankings:     handler.NewRankingHandler(rankingSvc),
		Concerts:     handler.NewConcertHandler(concertSvc),
	}, queueSvc, config.LoadRateLimitConfig(), rdb)

	go func() {
		addr := ":" + cfg.Port
		mainLog.Infow("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil {
			mainLog.Infow("server stopped", "reason", err)
		}
	}()

	<-ctx.Done()
	mainLog.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		mainLog.Errorw("server shutdown failed", "error", err)
	}
}
