package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-booking/config"
	"ticket-booking/internal/api"
	"ticket-booking/internal/broker"
	"ticket-booking/internal/redisclient"
	"ticket-booking/internal/scheduler"
	"ticket-booking/internal/service"
	"ticket-booking/internal/store"
	"ticket-booking/internal/tasks"
	"ticket-booking/internal/util"
	"ticket-booking/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer("ticket-booking", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	st, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer st.Close()
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// The ledger degrades to database-only reservations without Redis.
		logger.Warn("Failed to connect to Redis, fast-path gate disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("Connected to Redis")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTasks)
	defer producer.Close()
	publisher := broker.NewTaskPublisher(producer)

	ledger := service.NewInventoryLedger(st, redisClient)
	payments := service.NewPaymentService(st, service.NewMockGateway())
	notifier := service.NewLogNotifier()
	bookings := service.NewBookingService(st, ledger, payments, publisher, cfg.Business.CheckoutTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ledger.Sync(ctx); err != nil {
		logger.Warn("Failed to seed inventory mirror", zap.Error(err))
	}

	orchestrator := tasks.NewOrchestrator(st, bookings, notifier)

	taskWorker := worker.NewTaskWorker(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicTasks,
		cfg.Kafka.ConsumerGroup,
		cfg.Worker.Consumers,
		orchestrator,
		st,
	)
	go taskWorker.Start(ctx)

	dispatcher := worker.NewRetryDispatcher(st, publisher, cfg.Worker.RetryInterval)
	go dispatcher.Start(ctx)

	sched := scheduler.NewScheduler(st, publisher, cfg.Business)
	sched.Start(ctx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handler := api.NewHandler(bookings, st)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	cancel()
	taskWorker.Stop()
	sched.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Info("Server stopped")
}
