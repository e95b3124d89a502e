// Package main runs the answer video compression worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oneshhh/hirexpert-worker/config"
	"github.com/oneshhh/hirexpert-worker/internal/answers"
	"github.com/oneshhh/hirexpert-worker/internal/transcoder"
	"github.com/oneshhh/hirexpert-worker/internal/worker"
	"github.com/oneshhh/hirexpert-worker/pkg/database"
	"github.com/oneshhh/hirexpert-worker/pkg/redis"
	"github.com/oneshhh/hirexpert-worker/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	s3Client, err := storage.NewS3(ctx, storage.Config{
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		RawBucket:       cfg.Storage.RawBucket,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	engine, err := transcoder.NewEngine(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath, logger)
	if err != nil {
		logger.Fatal("transcoding engine", zap.Error(err))
	}

	var status *worker.StatusReporter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		status = worker.NewStatusReporter(rdb.Client, logger)
	}

	repo := answers.NewRepository(pool)
	planner := worker.NewPlanner(engine,
		cfg.Compression.RetentionFraction,
		cfg.Compression.MinBitrateKbps,
		cfg.Compression.FallbackBitrateKbps,
		cfg.Compression.ProbeTimeout,
		logger)
	processor := worker.NewProcessor(repo, s3Client, engine, planner, worker.ProcessorConfig{
		RawBucket:        cfg.Storage.RawBucket,
		ScratchDir:       cfg.Compression.ScratchDir,
		AudioBitrateKbps: cfg.Compression.AudioBitrateKbps,
		DownloadTimeout:  cfg.Compression.DownloadTimeout,
		UploadTimeout:    cfg.Compression.UploadTimeout,
		TranscodeTimeout: cfg.Compression.TranscodeTimeout,
	}, logger)
	scheduler := worker.NewScheduler(processor, status, cfg.Compression.PollInterval, cfg.Compression.BatchLimit, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Start(workerCtx)
	logger.Info("worker started")

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
