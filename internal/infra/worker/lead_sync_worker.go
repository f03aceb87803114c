package worker

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// BatchRunner is satisfied by *usecase.BatchProcessor.
type BatchRunner interface {
	ProcessPendingLeads(ctx context.Context, limit int) (entity.BatchSummary, error)
	RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error)
}

// LeadSyncWorker runs the pending-lead batch on a cron schedule.
type LeadSyncWorker struct {
	runner        BatchRunner
	schedule      string
	batchLimit    int
	requeueFailed bool
	maxRetryCount int
}

type Option func(*LeadSyncWorker)

// WithRequeue makes every run move failed leads below maxRetryCount back to
// pending before the batch starts.
func WithRequeue(maxRetryCount int) Option {
	return func(w *LeadSyncWorker) {
		w.requeueFailed = true
		w.maxRetryCount = maxRetryCount
	}
}

func NewLeadSyncWorker(runner BatchRunner, schedule string, batchLimit int, opts ...Option) *LeadSyncWorker {
	w := &LeadSyncWorker{
		runner:     runner,
		schedule:   schedule,
		batchLimit: batchLimit,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs one batch immediately, then on every schedule tick until ctx is
// done. Overlapping ticks are skipped.
func (w *LeadSyncWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(ctx) }); err != nil {
		return eris.Wrapf(err, "worker: invalid schedule %q", w.schedule)
	}

	zap.L().Info("lead sync worker started", zap.String("schedule", w.schedule), zap.Int("batch_limit", w.batchLimit))

	w.RunOnce(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	zap.L().Info("lead sync worker stopped")
	return nil
}

// RunOnce executes a single scheduled run.
func (w *LeadSyncWorker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()

	if w.requeueFailed {
		if _, err := w.runner.RequeueFailed(ctx, w.maxRetryCount); err != nil {
			zap.L().Error("requeue failed leads", zap.Error(err))
		}
	}

	summary, err := w.runner.ProcessPendingLeads(ctx, w.batchLimit)
	switch {
	case errors.Is(err, usecase.ErrBatchInProgress):
		zap.L().Info("batch already running elsewhere, skipping tick")
		return
	case err != nil:
		zap.L().Error("scheduled batch failed", zap.Error(err))
		return
	}

	if summary.Processed > 0 {
		zap.L().Info("scheduled batch done",
			zap.Int("processed", summary.Processed),
			zap.Int("successful", summary.Successful),
			zap.Int("failed", summary.Failed),
			zap.Duration("took", time.Since(start)),
		)
	}
}
