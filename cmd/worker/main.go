// Package main runs the standalone visit summary worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Priyankas007/appointment-recorder/config"
	"github.com/Priyankas007/appointment-recorder/internal/summarize"
	"github.com/Priyankas007/appointment-recorder/internal/visits"
	"github.com/Priyankas007/appointment-recorder/internal/worker"
	"github.com/Priyankas007/appointment-recorder/pkg/database"
	"github.com/Priyankas007/appointment-recorder/pkg/queue"
	"github.com/Priyankas007/appointment-recorder/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Database.URL == "" || cfg.Redis.Addr == "" {
		logger.Fatal("worker requires DATABASE_URL and REDIS_ADDR")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	visitRepo := visits.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	client := summarize.NewClient(cfg.Summary.BaseURL, cfg.Summary.APIKey, cfg.Summary.Model, logger)
	processor := worker.NewSummaryProcessor(visitRepo, client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
