package usecase

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/entity"
)

// RetryPolicy bounds the send attempts for one lead. The delay before attempt
// n+1 is BaseDelay * Multiplier^(n-1), capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// Delay returns how long to wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LeadForwarder sends one lead to the CRM with bounded exponential backoff.
type LeadForwarder struct {
	tokens  AccessTokenSource
	sender  LeadSender
	policy  RetryPolicy
	sleep   Sleeper
	metrics Recorder
}

type ForwarderOption func(*LeadForwarder)

func WithSleeper(s Sleeper) ForwarderOption {
	return func(f *LeadForwarder) { f.sleep = s }
}

func WithForwarderRecorder(r Recorder) ForwarderOption {
	return func(f *LeadForwarder) {
		if r != nil {
			f.metrics = r
		}
	}
}

func NewLeadForwarder(tokens AccessTokenSource, sender LeadSender, policy RetryPolicy, opts ...ForwarderOption) *LeadForwarder {
	f := &LeadForwarder{
		tokens:  tokens,
		sender:  sender,
		policy:  policy.withDefaults(),
		sleep:   sleepContext,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SendLeadWithRetry runs the attempt loop for one lead. It never returns a
// retryable result: exhausted transient failures come back as terminal.
// A missing or unrefreshable token is a precondition failure; any other
// token error, including a cancelled ctx, is returned as an error.
func (f *LeadForwarder) SendLeadWithRetry(ctx context.Context, lead entity.Lead) (entity.ProcessingResult, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID))

	var last entity.ProcessingResult
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		token, err := f.tokens.AccessToken(ctx)
		if err != nil {
			if ctx.Err() != nil || !errors.Is(err, ErrNoValidToken) {
				return entity.ProcessingResult{Attempts: attempt - 1}, eris.Wrap(err, "forward: obtain access token")
			}
			log.Error("no valid access token, giving up", zap.Int("attempt", attempt), zap.Error(err))
			f.metrics.CRMAttempt("precondition")
			result := entity.Failed(entity.FailurePrecondition, 0, ErrNoValidToken.Error())
			result.Attempts = attempt - 1
			return result, nil
		}

		result := f.sender.CreateLead(ctx, ToExternalLead(lead), token)
		result.Attempts = attempt

		if result.Success {
			f.metrics.CRMAttempt("success")
			log.Info("lead created in CRM", zap.String("external_id", result.ExternalID), zap.Int("attempt", attempt))
			return result, nil
		}

		if result.StatusCode == http.StatusUnauthorized {
			if err := f.tokens.InvalidateAccessToken(ctx); err != nil {
				log.Warn("could not invalidate rejected access token", zap.Error(err))
			}
		}

		if !result.Retryable() {
			f.metrics.CRMAttempt("terminal")
			log.Warn("CRM rejected lead",
				zap.Int("attempt", attempt),
				zap.Int("status_code", result.StatusCode),
				zap.String("error", result.Error),
			)
			return result, nil
		}

		f.metrics.CRMAttempt("transient")
		last = result
		if attempt == f.policy.MaxAttempts {
			break
		}

		delay := f.policy.Delay(attempt)
		log.Warn("transient CRM failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("status_code", result.StatusCode),
			zap.Duration("delay", delay),
			zap.String("error", result.Error),
		)
		if err := f.sleep(ctx, delay); err != nil {
			log.Warn("retry wait interrupted", zap.Error(err))
			break
		}
	}

	last.Failure = entity.FailureTerminal
	return last, nil
}
