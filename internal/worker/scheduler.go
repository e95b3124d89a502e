package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the compression pipeline on a fixed interval with at
// most one pass in flight. A tick that lands while a pass is still running
// is skipped, not queued.
type Scheduler struct {
	processor  *Processor
	status     *StatusReporter // nil disables the heartbeat
	interval   time.Duration
	batchLimit int
	logger     *zap.Logger
	running    atomic.Bool
}

// NewScheduler creates a scheduler for the compression pipeline.
func NewScheduler(processor *Processor, status *StatusReporter, interval time.Duration, batchLimit int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if batchLimit <= 0 {
		batchLimit = 30
	}
	return &Scheduler{
		processor:  processor,
		status:     status,
		interval:   interval,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// Start runs one pass immediately, then one per tick until ctx is
// cancelled. It blocks; run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("compression worker started",
		zap.Duration("interval", s.interval), zap.Int("batch_limit", s.batchLimit))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("compression worker stopping")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single pipeline pass. It returns immediately when a
// previous pass is still in flight. This is the top-level failure
// boundary: batch errors and panics are logged, never propagated.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("previous pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pipeline pass panicked", zap.Any("panic", r))
		}
	}()

	stats, err := s.processor.RunBatch(ctx, s.batchLimit)
	if err != nil {
		s.logger.Error("pipeline pass failed", zap.Error(err))
	} else if stats != (Stats{}) {
		s.logger.Info("pipeline pass finished",
			zap.Int("compressed", stats.Compressed), zap.Int("no_ops", stats.NoOps), zap.Int("failed", stats.Failed))
	}

	if s.status != nil {
		s.status.Publish(ctx, stats, err)
	}
}
