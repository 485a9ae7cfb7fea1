package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rollbook/internal/config"
	"rollbook/internal/logging"
	"rollbook/internal/queue"
	"rollbook/internal/report"
	"rollbook/internal/store"
)

// Worker consumes change events and drops the cached reports they make stale.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis client", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()
	if !rdb.Healthy(ctx) {
		logger.Warn("redis not reachable, consumer will retry", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(rdb.Client, queue.DefaultKey).WithLogger(logger.Named("queue"))
	cache := report.NewRedisCache(rdb.Client, cfg.ReportCacheTTL)
	reports := report.NewService(nil, nil, cache, logger.Named("report"))

	logger.Info("worker started, waiting for messages", zap.String("queue", queue.DefaultKey))
	if err := queue.Process(ctx, q, reports.HandleChange, logger.Named("consumer")); err != nil {
		logger.Fatal("consumer failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}
