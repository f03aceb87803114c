package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierca1/leadsync/internal/entity"
)

// TokenRepository keeps the single OAuth token row keyed by entity.TokenRecordID.
type TokenRepository struct {
	DB      *sql.DB
	dialect dialect
	now     func() time.Time
}

func NewTokenRepository(db *sql.DB, driver string) *TokenRepository {
	return &TokenRepository{
		DB:      db,
		dialect: newDialect(driver),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *TokenRepository) Get(ctx context.Context) (*entity.TokenRecord, error) {
	var rec entity.TokenRecord
	err := r.DB.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT access_token, refresh_token, access_token_expires_at, api_domain, updated_at
		FROM oauth_tokens WHERE id = ?`), entity.TokenRecordID,
	).Scan(&rec.AccessToken, &rec.RefreshToken, &rec.AccessTokenExpiresAt, &rec.APIDomain, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "tokens: get")
	}
	return &rec, nil
}

// Save upserts the token row.
func (r *TokenRepository) Save(ctx context.Context, rec *entity.TokenRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO oauth_tokens (id, access_token, refresh_token, access_token_expires_at, api_domain, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			access_token_expires_at = EXCLUDED.access_token_expires_at,
			api_domain = EXCLUDED.api_domain,
			updated_at = EXCLUDED.updated_at`),
		entity.TokenRecordID, rec.AccessToken, rec.RefreshToken, rec.AccessTokenExpiresAt.UTC(),
		rec.APIDomain, rec.UpdatedAt.UTC(),
	)
	return eris.Wrap(err, "tokens: save")
}

func (r *TokenRepository) Clear(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, r.dialect.rebind(`DELETE FROM oauth_tokens WHERE id = ?`), entity.TokenRecordID)
	return eris.Wrap(err, "tokens: clear")
}

func (r *TokenRepository) ExpireAccessToken(ctx context.Context) error {
	now := r.now()
	_, err := r.DB.ExecContext(ctx, r.dialect.rebind(
		`UPDATE oauth_tokens SET access_token_expires_at = ?, updated_at = ? WHERE id = ?`),
		now, now, entity.TokenRecordID,
	)
	return eris.Wrap(err, "tokens: expire access token")
}
