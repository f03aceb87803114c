package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/leadsync/internal/entity"
)

const (
	batchLockKey = "leadsync:batch"
	batchLockTTL = 15 * time.Minute

	// statusWriteTimeout bounds the final status update of a claimed lead,
	// which runs even after the caller's context is cancelled.
	statusWriteTimeout = 5 * time.Second
)

// LeadSendRetrier is satisfied by *LeadForwarder.
type LeadSendRetrier interface {
	SendLeadWithRetry(ctx context.Context, lead entity.Lead) (entity.ProcessingResult, error)
}

// LeadOutcome reports what happened to a single lead.
type LeadOutcome struct {
	LeadID  string                  `json:"lead_id"`
	Skipped bool                    `json:"skipped"`
	Status  entity.LeadStatus       `json:"status"`
	Result  entity.ProcessingResult `json:"result"`
}

// BatchProcessor forwards pending leads and records each outcome on the lead.
type BatchProcessor struct {
	leads       entity.LeadRepositoryInterface
	forwarder   LeadSendRetrier
	locker      Locker
	notifier    FailureNotifier
	concurrency int
	metrics     Recorder
}

type BatchOption func(*BatchProcessor)

// WithConcurrency sets how many leads are forwarded at once. 1 processes the
// batch sequentially.
func WithConcurrency(n int) BatchOption {
	return func(p *BatchProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithFailureNotifier(n FailureNotifier) BatchOption {
	return func(p *BatchProcessor) { p.notifier = n }
}

func WithBatchRecorder(r Recorder) BatchOption {
	return func(p *BatchProcessor) {
		if r != nil {
			p.metrics = r
		}
	}
}

func NewBatchProcessor(leads entity.LeadRepositoryInterface, forwarder LeadSendRetrier, locker Locker, opts ...BatchOption) *BatchProcessor {
	p := &BatchProcessor{
		leads:       leads,
		forwarder:   forwarder,
		locker:      locker,
		concurrency: 1,
		metrics:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessPendingLeads forwards up to limit pending leads, oldest first.
// Individual lead failures are collected in the summary; only infrastructure
// failures are returned as errors. After the first infrastructure failure no
// further leads are started, and the affected lead is left pending.
func (p *BatchProcessor) ProcessPendingLeads(ctx context.Context, limit int) (entity.BatchSummary, error) {
	summary := entity.BatchSummary{Errors: []string{}}
	if limit < 1 {
		return summary, &DomainError{Code: "INVALID_LIMIT", Message: "limit must be at least 1"}
	}

	release, ok, err := p.locker.TryAcquire(ctx, batchLockKey, batchLockTTL)
	if err != nil {
		return summary, &TechnicalError{Code: "LOCK_ERROR", Message: "could not acquire batch lock", Err: err}
	}
	if !ok {
		return summary, ErrBatchInProgress
	}
	defer release()

	leads, err := p.leads.FindPending(ctx, limit)
	if err != nil {
		return summary, &TechnicalError{Code: "DATABASE_ERROR", Message: "could not fetch pending leads", Err: err}
	}

	zap.L().Info("batch started", zap.Int("pending", len(leads)), zap.Int("limit", limit), zap.Int("concurrency", p.concurrency))

	var (
		mu       sync.Mutex
		firstErr error
		g        errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for _, lead := range leads {
		lead := lead
		g.Go(func() error {
			mu.Lock()
			aborted := firstErr != nil
			mu.Unlock()
			if aborted {
				return nil
			}

			outcome, err := p.process(ctx, lead)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			if outcome.Skipped {
				return nil
			}
			summary.Processed++
			if outcome.Result.Success {
				summary.Successful++
			} else {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s (%s): %s", lead.Name, lead.Email, outcome.Result.Error))
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
	)

	if summary.Failed > 0 && p.notifier != nil {
		if err := p.notifier.SendFailureReport(ctx, summary); err != nil {
			zap.L().Warn("failure report not sent", zap.Error(err))
		}
	}

	if firstErr != nil {
		return summary, &TechnicalError{Code: "FORWARD_ERROR", Message: "batch interrupted", Err: firstErr}
	}
	return summary, nil
}

// ProcessLead forwards a single lead right away. Leads that are no longer
// pending are skipped.
func (p *BatchProcessor) ProcessLead(ctx context.Context, id string) (LeadOutcome, error) {
	lead, err := p.leads.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrLeadNotFound) {
			return LeadOutcome{}, &DomainError{Code: "LEAD_NOT_FOUND", Message: "lead not found"}
		}
		return LeadOutcome{}, &TechnicalError{Code: "DATABASE_ERROR", Message: "could not load lead", Err: err}
	}

	if lead.Status != entity.LeadStatusPending {
		return LeadOutcome{LeadID: lead.ID, Skipped: true, Status: lead.Status}, nil
	}
	outcome, err := p.process(ctx, *lead)
	if err != nil {
		return outcome, &TechnicalError{Code: "FORWARD_ERROR", Message: "could not forward lead", Err: err}
	}
	return outcome, nil
}

// process claims and forwards one lead. Once claimed, the lead always leaves
// processing: sent, failed, or back to pending when an error is returned.
func (p *BatchProcessor) process(ctx context.Context, lead entity.Lead) (LeadOutcome, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID))
	outcome := LeadOutcome{LeadID: lead.ID, Status: lead.Status}

	if ctx.Err() != nil {
		outcome.Skipped = true
		return outcome, nil
	}

	claimed, err := p.leads.ClaimForProcessing(ctx, lead.ID)
	if err != nil {
		p.metrics.LeadProcessed("error")
		return outcome, eris.Wrapf(err, "claim lead %s", lead.ID)
	}
	if !claimed {
		log.Debug("lead already taken by another run")
		outcome.Skipped = true
		outcome.Status = entity.LeadStatusProcessing
		return outcome, nil
	}

	result, sendErr := p.forwarder.SendLeadWithRetry(ctx, lead)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if sendErr != nil {
		p.metrics.LeadProcessed("error")
		outcome.Status = entity.LeadStatusPending
		if err := p.leads.ReleaseClaim(writeCtx, lead.ID); err != nil {
			log.Error("could not return lead to pending", zap.Error(err))
			outcome.Status = entity.LeadStatusProcessing
		}
		return outcome, sendErr
	}
	outcome.Result = result

	if result.Success {
		outcome.Status = entity.LeadStatusSent
		if err := p.leads.MarkSent(writeCtx, lead.ID, result.ExternalID); err != nil {
			log.Error("lead sent but status update failed", zap.String("external_id", result.ExternalID), zap.Error(err))
			outcome.Status = entity.LeadStatusProcessing
			outcome.Result = entity.Failed(entity.FailureTerminal, 0,
				fmt.Sprintf("sent as %s but status update failed: %v", result.ExternalID, eris.Cause(err)))
			p.metrics.LeadProcessed("error")
			return outcome, nil
		}
		p.metrics.LeadProcessed("sent")
		return outcome, nil
	}

	outcome.Status = entity.LeadStatusFailed
	if err := p.leads.MarkFailed(writeCtx, lead.ID, result.Error); err != nil {
		log.Error("could not mark lead as failed", zap.Error(err))
	}
	p.metrics.LeadProcessed("failed")
	return outcome, nil
}

// RequeueFailed returns failed leads below maxRetryCount to the pending pool.
func (p *BatchProcessor) RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error) {
	n, err := p.leads.RequeueFailed(ctx, maxRetryCount)
	if err != nil {
		return 0, &TechnicalError{Code: "DATABASE_ERROR", Message: "could not requeue failed leads", Err: err}
	}
	if n > 0 {
		zap.L().Info("failed leads requeued", zap.Int64("count", n), zap.Int("max_retry_count", maxRetryCount))
	}
	return n, nil
}
