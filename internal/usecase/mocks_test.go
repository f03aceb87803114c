package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/leadsync/internal/entity"
)

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Get(ctx context.Context) (*entity.TokenRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TokenRecord), args.Error(1)
}

func (m *MockTokenRepository) Save(ctx context.Context, record *entity.TokenRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockTokenRepository) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTokenRepository) ExpireAccessToken(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockOAuthClient struct {
	mock.Mock
}

func (m *MockOAuthClient) Refresh(ctx context.Context, refreshToken string) (*entity.TokenGrant, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TokenGrant), args.Error(1)
}

func (m *MockOAuthClient) Exchange(ctx context.Context, code string) (*entity.TokenGrant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TokenGrant), args.Error(1)
}

func (m *MockOAuthClient) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTokenSource) InvalidateAccessToken(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockLeadSender struct {
	mock.Mock
}

func (m *MockLeadSender) CreateLead(ctx context.Context, lead entity.ExternalLead, accessToken string) entity.ProcessingResult {
	args := m.Called(ctx, lead, accessToken)
	return args.Get(0).(entity.ProcessingResult)
}

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	return m.Called(ctx, lead).Error(0)
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) List(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindPending(ctx context.Context, limit int) ([]entity.Lead, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadRepository) MarkSent(ctx context.Context, id, externalID string) error {
	return m.Called(ctx, id, externalID).Error(0)
}

func (m *MockLeadRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

func (m *MockLeadRepository) ReleaseClaim(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLeadRepository) RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error) {
	args := m.Called(ctx, maxRetryCount)
	return args.Get(0).(int64), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLeadCaptured(ctx context.Context, leadID string) error {
	return m.Called(ctx, leadID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendFailureReport(ctx context.Context, summary entity.BatchSummary) error {
	return m.Called(ctx, summary).Error(0)
}

type MockRetrier struct {
	mock.Mock
}

func (m *MockRetrier) SendLeadWithRetry(ctx context.Context, lead entity.Lead) (entity.ProcessingResult, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(entity.ProcessingResult), args.Error(1)
}

// memLocker is an in-process Locker for tests.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

func (l *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// countingRecorder counts metric calls by label.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()
}

func (r *countingRecorder) LeadProcessed(outcome string) { r.inc("lead:" + outcome) }
func (r *countingRecorder) CRMAttempt(result string)     { r.inc("crm:" + result) }
func (r *countingRecorder) TokenRefresh(result string)   { r.inc("token:" + result) }

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}
