// Package main runs the background email worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/manav-trails/backend/config"
	"github.com/manav-trails/backend/internal/emaillogs"
	"github.com/manav-trails/backend/internal/mailer"
	"github.com/manav-trails/backend/internal/worker"
	"github.com/manav-trails/backend/pkg/database"
	"github.com/manav-trails/backend/pkg/logger"
	"github.com/manav-trails/backend/pkg/queue"
	"github.com/manav-trails/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sender, err := mailer.NewSMTPSender(cfg.Email)
	if err != nil {
		log.Fatal("smtp", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := worker.NewEmailProcessor(sender, emaillogs.NewRepository(pool), jobQueue, cfg.Email.SendsPerSec, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	log.Info("email worker started", zap.Float64("sends_per_sec", cfg.Email.SendsPerSec))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("worker did not stop in time")
	}
	log.Info("worker stopped")
}
