package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/wa-booking-assistant/cmd/mainconfig"
	"github.com/wolfman30/wa-booking-assistant/internal/app/bootstrap"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if cfg.TurnQueueURL == "" {
		logger.Error("TURN_QUEUE_URL is required")
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

	services, err := bootstrap.BuildServices(ctx, cfg, bootstrap.Deps{
		Redis:   redisClient,
		DB:      pool,
		AWS:     awsConfig,
		Metrics: metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
	}, logger)
	if err != nil {
		logger.Error("failed to build booking services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	sqsClient := sqs.NewFromConfig(awsConfig)
	opts := []dialogue.WorkerOption{dialogue.WithWorkerCount(cfg.WorkerCount)}
	if cfg.OutcomeQueueURL != "" {
		opts = append(opts, dialogue.WithOutcomeSink(dialogue.NewQueueOutcomeSink(dialogue.NewSQSQueue(sqsClient, cfg.OutcomeQueueURL))))
	} else {
		logger.Warn("OUTCOME_QUEUE_URL not set; turn outcomes are only logged")
	}
	if pool != nil {
		opts = append(opts, dialogue.WithProcessedStore(events.NewProcessedStore(pool)))
	}

	worker := dialogue.NewWorker(
		services.Engine,
		dialogue.NewSQSQueue(sqsClient, cfg.TurnQueueURL),
		logger,
		opts...,
	)
	worker.Start(ctx)
	logger.Info("booking worker started", "workers", cfg.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down booking worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("booking worker stopped")
	case <-doneCtx.Done():
		logger.Error("booking worker shutdown timed out", "error", doneCtx.Err())
	}
}
