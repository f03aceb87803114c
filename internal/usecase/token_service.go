package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/entity"
)

const (
	tokenLockKey = "leadsync:token-refresh"
	tokenLockTTL = 30 * time.Second
)

// TokenService owns the stored CRM token pair: reads, refreshes and clears it.
type TokenService struct {
	repo    entity.TokenRepositoryInterface
	oauth   OAuthClient
	locker  Locker
	skew    time.Duration
	metrics Recorder
	now     func() time.Time
}

type TokenServiceOption func(*TokenService)

// WithClockSkew treats access tokens as expired skew before their real expiry.
func WithClockSkew(skew time.Duration) TokenServiceOption {
	return func(s *TokenService) { s.skew = skew }
}

func WithTokenRecorder(r Recorder) TokenServiceOption {
	return func(s *TokenService) {
		if r != nil {
			s.metrics = r
		}
	}
}

func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(repo entity.TokenRepositoryInterface, oauth OAuthClient, locker Locker, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		repo:    repo,
		oauth:   oauth,
		locker:  locker,
		metrics: nopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStoredTokens returns nil, nil when no token pair has been stored yet.
func (s *TokenService) GetStoredTokens(ctx context.Context) (*entity.TokenRecord, error) {
	rec, err := s.repo.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "token: read stored tokens")
	}
	return rec, nil
}

func (s *TokenService) UpdateToken(ctx context.Context, accessToken, refreshToken string, expiresIn time.Duration) error {
	return s.SaveGrant(ctx, entity.TokenGrant{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// SaveGrant persists a grant. An empty refresh token or API domain keeps the stored one.
func (s *TokenService) SaveGrant(ctx context.Context, grant entity.TokenGrant) error {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return eris.Wrap(err, "token: read before update")
	}

	now := s.now()
	rec := &entity.TokenRecord{
		AccessToken:          grant.AccessToken,
		RefreshToken:         grant.RefreshToken,
		AccessTokenExpiresAt: now.Add(grant.ExpiresIn),
		APIDomain:            grant.APIDomain,
		UpdatedAt:            now,
	}
	if current != nil {
		if rec.RefreshToken == "" {
			rec.RefreshToken = current.RefreshToken
		}
		if rec.APIDomain == "" {
			rec.APIDomain = current.APIDomain
		}
	}

	if err := s.repo.Save(ctx, rec); err != nil {
		return eris.Wrap(err, "token: save")
	}
	return nil
}

func (s *TokenService) ClearStoredTokens(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return eris.Wrap(err, "token: clear")
	}
	zap.L().Info("stored CRM tokens cleared")
	return nil
}

func (s *TokenService) GetTokenStatus(ctx context.Context) (entity.TokenStatus, error) {
	rec, err := s.GetStoredTokens(ctx)
	if err != nil {
		return entity.TokenStatus{}, err
	}
	if rec == nil {
		return entity.TokenStatus{}, nil
	}

	expiresAt := rec.AccessTokenExpiresAt
	return entity.TokenStatus{
		HasAccessToken:   rec.AccessToken != "",
		HasRefreshToken:  rec.RefreshToken != "",
		AccessTokenValid: s.valid(rec),
		ExpiresAt:        &expiresAt,
	}, nil
}

func (s *TokenService) valid(rec *entity.TokenRecord) bool {
	return rec != nil && rec.AccessToken != "" && s.now().Add(s.skew).Before(rec.AccessTokenExpiresAt)
}

// RefreshAccessToken exchanges refreshToken for a new access token and stores
// it. On failure the store is left untouched. It never retries.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	grant, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		s.metrics.TokenRefresh("failure")
		zap.L().Warn("access token refresh rejected", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	if err := s.SaveGrant(ctx, *grant); err != nil {
		s.metrics.TokenRefresh("failure")
		return "", err
	}

	s.metrics.TokenRefresh("success")
	zap.L().Info("access token refreshed", zap.Duration("expires_in", grant.ExpiresIn))
	return grant.AccessToken, nil
}

// AccessToken returns a currently valid access token, refreshing it when
// needed. Refreshes are serialized through the locker so concurrent callers
// do not refresh the same token twice.
func (s *TokenService) AccessToken(ctx context.Context) (string, error) {
	rec, err := s.GetStoredTokens(ctx)
	if err != nil {
		return "", err
	}
	if s.valid(rec) {
		return rec.AccessToken, nil
	}

	release, err := s.locker.Acquire(ctx, tokenLockKey, tokenLockTTL)
	if err != nil {
		return "", eris.Wrap(err, "token: acquire refresh lock")
	}
	defer release()

	// Another holder of the lock may have refreshed already.
	rec, err = s.GetStoredTokens(ctx)
	if err != nil {
		return "", err
	}
	if s.valid(rec) {
		return rec.AccessToken, nil
	}
	if rec == nil || rec.RefreshToken == "" {
		return "", ErrNoValidToken
	}

	token, err := s.RefreshAccessToken(ctx, rec.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoValidToken, err)
	}
	return token, nil
}

// ForceRefresh refreshes the access token now, whatever its expiry, and
// returns the resulting status.
func (s *TokenService) ForceRefresh(ctx context.Context) (entity.TokenStatus, error) {
	release, err := s.locker.Acquire(ctx, tokenLockKey, tokenLockTTL)
	if err != nil {
		return entity.TokenStatus{}, eris.Wrap(err, "token: acquire refresh lock")
	}
	defer release()

	rec, err := s.GetStoredTokens(ctx)
	if err != nil {
		return entity.TokenStatus{}, err
	}
	if rec == nil || rec.RefreshToken == "" {
		return entity.TokenStatus{}, &DomainError{Code: "NO_REFRESH_TOKEN", Message: "no refresh token stored; authorize first"}
	}

	if _, err := s.RefreshAccessToken(ctx, rec.RefreshToken); err != nil {
		return entity.TokenStatus{}, &TechnicalError{Code: "REFRESH_FAILED", Message: "token refresh rejected", Err: err}
	}
	return s.GetTokenStatus(ctx)
}

// InvalidateAccessToken forces the next AccessToken call to refresh.
func (s *TokenService) InvalidateAccessToken(ctx context.Context) error {
	if err := s.repo.ExpireAccessToken(ctx); err != nil {
		return eris.Wrap(err, "token: expire access token")
	}
	return nil
}

func (s *TokenService) AuthorizationURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// ExchangeCode completes the authorization-code grant and stores the pair.
func (s *TokenService) ExchangeCode(ctx context.Context, code string) (entity.TokenStatus, error) {
	if code == "" {
		return entity.TokenStatus{}, &DomainError{Code: "MISSING_CODE", Message: "authorization code is required"}
	}

	grant, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return entity.TokenStatus{}, &DomainError{Code: "EXCHANGE_FAILED", Message: "authorization code exchange failed: " + err.Error()}
	}
	if err := s.SaveGrant(ctx, *grant); err != nil {
		return entity.TokenStatus{}, err
	}

	zap.L().Info("CRM authorization completed", zap.Bool("has_refresh_token", grant.RefreshToken != ""))
	return s.GetTokenStatus(ctx)
}
