package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// OAuthClient talks to the OAuth provider's token endpoint.
type OAuthClient interface {
	Refresh(ctx context.Context, refreshToken string) (*entity.TokenGrant, error)
	Exchange(ctx context.Context, code string) (*entity.TokenGrant, error)
	AuthCodeURL(state string) string
}

// LeadSender posts a transformed lead to the CRM. Expected failures are
// reported in the result, never as errors.
type LeadSender interface {
	CreateLead(ctx context.Context, lead entity.ExternalLead, accessToken string) entity.ProcessingResult
}

// AccessTokenSource yields an access token that is valid right now.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	InvalidateAccessToken(ctx context.Context) error
}

// Locker provides mutual exclusion across processes. The returned release
// func must be called once the critical section ends.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// LeadPublisher announces freshly captured leads for immediate forwarding.
type LeadPublisher interface {
	PublishLeadCaptured(ctx context.Context, leadID string) error
}

// FailureNotifier reports failed batch leads to operations.
type FailureNotifier interface {
	SendFailureReport(ctx context.Context, summary entity.BatchSummary) error
}

// Recorder receives processing metrics.
type Recorder interface {
	LeadProcessed(outcome string)
	CRMAttempt(result string)
	TokenRefresh(result string)
}

type nopRecorder struct{}

func (nopRecorder) LeadProcessed(string) {}
func (nopRecorder) CRMAttempt(string)    {}
func (nopRecorder) TokenRefresh(string)  {}
