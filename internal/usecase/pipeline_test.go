package usecase_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/lock"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// stubCRM accepts every lead except those whose email it was told to reject.
type stubCRM struct {
	mu     sync.Mutex
	reject map[string]bool
	sent   []entity.ExternalLead
}

func (s *stubCRM) CreateLead(_ context.Context, lead entity.ExternalLead, accessToken string) entity.ProcessingResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken != "live-token" {
		return entity.Failed(entity.FailureTerminal, 401, "unexpected token")
	}
	if s.reject[lead.Email] {
		return entity.Failed(entity.FailureTerminal, 400, "INVALID_DATA")
	}
	s.sent = append(s.sent, lead)
	return entity.Succeeded("crm-" + lead.Email)
}

type noOAuth struct{}

func (noOAuth) Refresh(context.Context, string) (*entity.TokenGrant, error) {
	panic("refresh not expected")
}
func (noOAuth) Exchange(context.Context, string) (*entity.TokenGrant, error) {
	panic("exchange not expected")
}
func (noOAuth) AuthCodeURL(string) string { return "" }

// cancellingCRM cancels the caller's context mid-request, the way a client
// disconnect or SIGTERM would, and reports the transport failure.
type cancellingCRM struct {
	cancel context.CancelFunc
}

func (c *cancellingCRM) CreateLead(context.Context, entity.ExternalLead, string) entity.ProcessingResult {
	c.cancel()
	return entity.Failed(entity.FailureTransient, 0, "zoho request failed: context canceled")
}

type pipeline struct {
	leads  *database.LeadRepository
	tokens *usecase.TokenService
	locker *lock.LocalLocker
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	locker := lock.NewLocalLocker()
	tokens := usecase.NewTokenService(database.NewTokenRepository(db, database.DriverSQLite), noOAuth{}, locker)
	require.NoError(t, tokens.UpdateToken(ctx, "live-token", "refresh-token", time.Hour))

	return pipeline{
		leads:  database.NewLeadRepository(db, database.DriverSQLite),
		tokens: tokens,
		locker: locker,
	}
}

func TestPipeline_CaptureThenBatch(t *testing.T) {
	ctx := context.Background()
	pl := newPipeline(t)
	leads, tokens, locker := pl.leads, pl.tokens, pl.locker

	crm := &stubCRM{reject: map[string]bool{"bad@example.com": true}}
	forwarder := usecase.NewLeadForwarder(tokens, crm, usecase.RetryPolicy{MaxAttempts: 1})
	processor := usecase.NewBatchProcessor(leads, forwarder, locker)
	capture := usecase.NewCaptureLeadUseCase(leads, nil)

	good, err := capture.Execute(ctx, usecase.CaptureLeadInput{
		Name: "Jane Doe", Email: "jane@example.com", Message: "Quote for a filler",
	})
	require.NoError(t, err)
	bad, err := capture.Execute(ctx, usecase.CaptureLeadInput{
		Name: "Bob", Email: "bad@example.com", Message: "Hello", Source: "chatbot",
	})
	require.NoError(t, err)

	summary, err := processor.ProcessPendingLeads(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Bob (bad@example.com)")

	sent, err := leads.FindByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusSent, sent.Status)
	require.NotNil(t, sent.ExternalID)
	assert.Equal(t, "crm-jane@example.com", *sent.ExternalID)
	assert.Nil(t, sent.ErrorMessage)
	assert.NotNil(t, sent.ProcessedAt)

	failed, err := leads.FindByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "INVALID_DATA")

	require.Len(t, crm.sent, 1)
	assert.Equal(t, "Jane", crm.sent[0].FirstName)
	assert.Equal(t, "Website Form", crm.sent[0].LeadSource)

	again, err := processor.ProcessPendingLeads(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Len(t, crm.sent, 1)

	requeued, err := processor.RequeueFailed(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	back, err := leads.FindByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusPending, back.Status)
}

func TestPipeline_CancelledMidSendStillRecordsOutcome(t *testing.T) {
	pl := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captured, err := usecase.NewCaptureLeadUseCase(pl.leads, nil).Execute(context.Background(), usecase.CaptureLeadInput{
		Name: "A B", Email: "a@example.com", Message: "Quote please",
	})
	require.NoError(t, err)

	forwarder := usecase.NewLeadForwarder(pl.tokens, &cancellingCRM{cancel: cancel}, usecase.RetryPolicy{MaxAttempts: 3})
	processor := usecase.NewBatchProcessor(pl.leads, forwarder, pl.locker)

	summary, err := processor.ProcessPendingLeads(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	got, err := pl.leads.FindByID(context.Background(), captured.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.LeadStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "context canceled")

	requeued, err := processor.RequeueFailed(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)
}
