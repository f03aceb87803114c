package entity

import (
	"context"
	"time"
)

// TokenRecordID is the sentinel key of the single stored token pair.
const TokenRecordID = "zoho"

// TokenRecord holds the OAuth2 token pair of the CRM account. There is at most
// one record, keyed by TokenRecordID.
type TokenRecord struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	APIDomain            string
	UpdatedAt            time.Time
}

// TokenGrant is what the OAuth provider hands back on a code exchange or refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	APIDomain    string
}

type TokenStatus struct {
	HasAccessToken   bool       `json:"has_access_token"`
	HasRefreshToken  bool       `json:"has_refresh_token"`
	AccessTokenValid bool       `json:"access_token_valid"`
	ExpiresAt        *time.Time `json:"expires_at"`
}

type TokenRepositoryInterface interface {
	// Get returns nil, nil when no token has been stored yet.
	Get(ctx context.Context) (*TokenRecord, error)
	Save(ctx context.Context, record *TokenRecord) error
	Clear(ctx context.Context) error
	// ExpireAccessToken sets the access token expiry to now without touching the refresh token.
	ExpireAccessToken(ctx context.Context) error
}
