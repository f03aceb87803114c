package zoho

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"

	"github.com/xavierca1/leadsync/internal/entity"
)

// defaultTokenLifetime is assumed when the token response carries no expiry.
const defaultTokenLifetime = time.Hour

// OAuthClient performs the authorization-code and refresh-token grants against
// the Zoho accounts server. Client credentials travel in the form body.
type OAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewOAuthClient(accountsURL, clientID, clientSecret, redirectURL string, scopes []string, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   accountsURL + "/oauth/v2/auth",
				TokenURL:  accountsURL + "/oauth/v2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// Refresh posts grant_type=refresh_token once. It does not retry.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*entity.TokenGrant, error) {
	if refreshToken == "" {
		return nil, eris.New("zoho oauth: empty refresh token")
	}

	src := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, eris.Wrap(err, "zoho oauth: refresh")
	}
	return toGrant(tok), nil
}

// Exchange trades an authorization code for a token pair.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*entity.TokenGrant, error) {
	tok, err := c.config.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, eris.Wrap(err, "zoho oauth: exchange code")
	}
	return toGrant(tok), nil
}

// AuthCodeURL asks for offline access so the grant includes a refresh token.
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func toGrant(tok *oauth2.Token) *entity.TokenGrant {
	grant := &entity.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    defaultTokenLifetime,
	}
	switch {
	case tok.ExpiresIn > 0:
		grant.ExpiresIn = time.Duration(tok.ExpiresIn) * time.Second
	case !tok.Expiry.IsZero():
		grant.ExpiresIn = time.Until(tok.Expiry)
	}
	if domain, ok := tok.Extra("api_domain").(string); ok {
		grant.APIDomain = domain
	}
	return grant
}
