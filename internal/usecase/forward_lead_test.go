package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
)

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func sampleLead() entity.Lead {
	return entity.Lead{
		ID:      "lead-1",
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Message: "Need a capper",
		Source:  entity.LeadSourceWebForm,
		Status:  entity.LeadStatusPending,
	}
}

func newForwarder(tokens *MockTokenSource, sender *MockLeadSender, policy RetryPolicy, sleeper *recordingSleeper, metrics Recorder) *LeadForwarder {
	return NewLeadForwarder(tokens, sender, policy, WithSleeper(sleeper.sleep), WithForwarderRecorder(metrics))
}

func TestSendLeadWithRetry_SuccessFirstAttempt(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	sleeper := &recordingSleeper{}
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)
	sender.On("CreateLead", mock.Anything, ToExternalLead(sampleLead()), "tok").Return(entity.Succeeded("z-1"))

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), sleeper, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "z-1", result.ExternalID)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, sleeper.delays)
}

func TestSendLeadWithRetry_RetryBoundAndBackoff(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	sleeper := &recordingSleeper{}
	metrics := newCountingRecorder()
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)
	sender.On("CreateLead", mock.Anything, mock.Anything, "tok").
		Return(entity.Failed(entity.FailureTransient, 503, "zoho api error 503: unavailable"))

	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
	result, err := newForwarder(tokens, sender, policy, sleeper, metrics).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Retryable())
	assert.Equal(t, entity.FailureTerminal, result.Failure)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, "zoho api error 503: unavailable", result.Error)
	sender.AssertNumberOfCalls(t, "CreateLead", 4)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
	assert.Equal(t, 4, metrics.get("crm:transient"))
}

func TestSendLeadWithRetry_TransientThenSuccess(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	sleeper := &recordingSleeper{}
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)
	sender.On("CreateLead", mock.Anything, mock.Anything, "tok").
		Return(entity.Failed(entity.FailureTransient, 0, "zoho request failed: EOF")).Once()
	sender.On("CreateLead", mock.Anything, mock.Anything, "tok").Return(entity.Succeeded("z-2")).Once()

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), sleeper, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
}

func TestSendLeadWithRetry_TerminalShortCircuits(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	sleeper := &recordingSleeper{}
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)
	sender.On("CreateLead", mock.Anything, mock.Anything, "tok").
		Return(entity.Failed(entity.FailureTerminal, 400, "zoho api error 400: INVALID_DATA"))

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), sleeper, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 400, result.StatusCode)
	sender.AssertNumberOfCalls(t, "CreateLead", 1)
	assert.Empty(t, sleeper.delays)
}

func TestSendLeadWithRetry_NoTokenIsPrecondition(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	tokens.On("AccessToken", mock.Anything).Return("", ErrNoValidToken)

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, entity.FailurePrecondition, result.Failure)
	assert.Equal(t, "no valid access token", result.Error)
	assert.Zero(t, result.Attempts)
	sender.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendLeadWithRetry_RefreshFailureIsPrecondition(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	tokens.On("AccessToken", mock.Anything).Return("", fmt.Errorf("%w: %w", ErrNoValidToken, ErrRefreshFailed))

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.Equal(t, entity.FailurePrecondition, result.Failure)
}

func TestSendLeadWithRetry_TokenStoreErrorIsReturned(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	storeErr := errors.New("connection refused")
	tokens.On("AccessToken", mock.Anything).Return("", storeErr)

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(context.Background(), sampleLead())

	require.ErrorIs(t, err, storeErr)
	assert.False(t, result.Success)
	assert.Zero(t, result.Attempts)
	sender.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendLeadWithRetry_CancelledBeforeTokenIsReturned(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tokens.On("AccessToken", mock.Anything).Return("", fmt.Errorf("%w: %w", ErrNoValidToken, context.Canceled))

	_, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(ctx, sampleLead())

	require.ErrorIs(t, err, context.Canceled)
	sender.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendLeadWithRetry_UnauthorizedInvalidatesToken(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	tokens.On("AccessToken", mock.Anything).Return("stale", nil)
	tokens.On("InvalidateAccessToken", mock.Anything).Return(nil)
	sender.On("CreateLead", mock.Anything, mock.Anything, "stale").
		Return(entity.Failed(entity.FailureTerminal, 401, "zoho api error 401: INVALID_TOKEN"))

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(context.Background(), sampleLead())
	require.NoError(t, err)

	assert.Equal(t, 401, result.StatusCode)
	tokens.AssertCalled(t, "InvalidateAccessToken", mock.Anything)
}

func TestSendLeadWithRetry_CancelledDuringBackoff(t *testing.T) {
	tokens := new(MockTokenSource)
	sender := new(MockLeadSender)
	tokens.On("AccessToken", mock.Anything).Return("tok", nil)
	sender.On("CreateLead", mock.Anything, mock.Anything, "tok").
		Return(entity.Failed(entity.FailureTransient, 502, "zoho api error 502: bad gateway"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newForwarder(tokens, sender, DefaultRetryPolicy(), &recordingSleeper{}, nil).SendLeadWithRetry(ctx, sampleLead())
	require.NoError(t, err)

	assert.Equal(t, entity.FailureTerminal, result.Failure)
	assert.Equal(t, 1, result.Attempts)
	sender.AssertNumberOfCalls(t, "CreateLead", 1)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5), "capped")

	def := RetryPolicy{}.withDefaults()
	require.Equal(t, DefaultRetryPolicy().MaxAttempts, def.MaxAttempts)
	assert.Equal(t, 2.0, def.Multiplier)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}
