package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/wa-booking-assistant/cmd/mainconfig"
	"github.com/wolfman30/wa-booking-assistant/internal/api/router"
	"github.com/wolfman30/wa-booking-assistant/internal/app/bootstrap"
	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	appconfig "github.com/wolfman30/wa-booking-assistant/internal/config"
	"github.com/wolfman30/wa-booking-assistant/internal/dialogue"
	"github.com/wolfman30/wa-booking-assistant/internal/events"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wa-booking-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	metricsHandler, bookingMetrics := setupMetrics()
	services, err := bootstrap.BuildServices(ctx, cfg, bootstrap.Deps{
		Redis:   redisClient,
		DB:      pool,
		AWS:     awsCfg,
		Metrics: bookingMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to build booking services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	publisher, memoryQueue := setupTurnQueue(cfg, awsCfg, logger)
	inlineWorker := setupInlineWorker(ctx, cfg, services.Engine, memoryQueue, logger)
	deliverer := setupOutboxDeliverer(ctx, cfg, pool, awsCfg, logger)

	r := router.New(&router.Config{
		Logger:           logger,
		Conversations:    dialogue.NewHandler(services.Engine, publisher, logger),
		Bookings:         bookings.NewHandler(services.Catalog, services.Finder, services.Committer, logger),
		MetricsHandler:   metricsHandler,
		ServiceJWTSecret: cfg.ServiceJWTSecret,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		HealthChecks:     bootstrap.HealthChecks(redisClient, pool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if inlineWorker != nil {
		waitForInlineWorker(inlineWorker, logger)
	}
	if deliverer != nil {
		deliverer.Drain(shutdownCtx)
	}
	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// setupTurnQueue returns the publisher for async turns. The memory queue is only
// returned when USE_MEMORY_QUEUE is set, in which case an inline worker consumes it.
func setupTurnQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*dialogue.Publisher, *dialogue.MemoryQueue) {
	if cfg.UseMemoryQueue {
		queue := dialogue.NewMemoryQueue(256)
		return dialogue.NewPublisher(queue, logger), queue
	}
	if cfg.TurnQueueURL == "" {
		logger.Warn("TURN_QUEUE_URL not set; async turn endpoint disabled")
		return nil, nil
	}
	queue := dialogue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL)
	return dialogue.NewPublisher(queue, logger), nil
}

func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, engine dialogue.TurnProcessor, queue *dialogue.MemoryQueue, logger *logging.Logger) *dialogue.Worker {
	if !cfg.UseMemoryQueue || queue == nil {
		return nil
	}
	worker := dialogue.NewWorker(engine, queue, logger,
		dialogue.WithWorkerCount(cfg.WorkerCount),
		dialogue.WithReceiveWaitSeconds(1),
	)
	worker.Start(ctx)
	logger.Info("inline dialogue worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *dialogue.Worker, logger *logging.Logger) {
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline dialogue worker stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("inline dialogue worker shutdown timed out")
	}
}

// setupOutboxDeliverer publishes committed appointment events to EVENTS_QUEUE_URL.
func setupOutboxDeliverer(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, awsCfg aws.Config, logger *logging.Logger) *events.Deliverer {
	if pool == nil || cfg.EventsQueueURL == "" {
		return nil
	}
	handler := events.NewSQSHandler(sqs.NewFromConfig(awsCfg), cfg.EventsQueueURL)
	deliverer := events.NewDeliverer(events.NewOutboxStore(pool), handler, logger)
	go deliverer.Start(ctx)
	logger.Info("outbox deliverer started", "queue_url", cfg.EventsQueueURL)
	return deliverer
}
