// Package kerliix wraps the relying-party side of the Kerliix identity
// service. Everything protocol-shaped lives behind this boundary: endpoint
// discovery, authorization URL construction, the code exchange, userinfo
// and token revocation. The rest of the backend treats tokens as opaque.
package kerliix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"golang.org/x/oauth2"

	"github.com/kerliix/oauth-backend/internal/config"
	"github.com/kerliix/oauth-backend/internal/serviceerr"
)

// TokenSet is the stored outcome of a code exchange. The backend never
// inspects the tokens beyond carrying them; validation is the provider's
// business.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

type Client struct {
	relyingParty rp.RelyingParty
	httpClient   *http.Client
}

// NewClient discovers the provider endpoints under cfg.BaseURL and builds
// the relying-party client. The client secret is optional; public clients
// run the PKCE-only flow.
func NewClient(ctx context.Context, cfg *config.OAuth, httpClient *http.Client) (*Client, error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client id from source ref: %w", err)
	}
	if len(clientID) == 0 {
		return nil, errors.New("client id must not be empty")
	}

	var clientSecret []byte
	if cfg.ClientSecret.Source != "" {
		clientSecret, err = commoncfg.LoadValueFromSourceRef(cfg.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("loading client secret from source ref: %w", err)
		}
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(
		ctx,
		cfg.BaseURL,
		string(clientID),
		string(clientSecret),
		cfg.RedirectURI,
		scopes,
		rp.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("discovering provider configuration: %w", err)
	}

	return &Client{
		relyingParty: relyingParty,
		httpClient:   httpClient,
	}, nil
}

// AuthURL builds the authorization URL carrying the state and the PKCE
// challenge (S256). A non-empty scopes slice overrides the configured ones
// for this login attempt.
func (c *Client) AuthURL(state, codeChallenge string, scopes []string) string {
	opts := []rp.AuthURLOpt{rp.WithCodeChallenge(codeChallenge)}
	if len(scopes) > 0 {
		opts = append(opts, rp.AuthURLOpt(rp.WithURLParam("scope", strings.Join(scopes, " "))))
	}

	return rp.AuthURL(state, c.relyingParty, opts...)
}

// Exchange swaps the authorization code plus PKCE verifier for tokens.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.relyingParty.OAuthConfig().Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		// surface the provider's own error code and description when the
		// token endpoint answered with a structured rejection
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
			return TokenSet{}, &serviceerr.Error{
				Err:         serviceerr.Code(retrieveErr.ErrorCode),
				Description: retrieveErr.ErrorDescription,
			}
		}

		return TokenSet{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	scope, _ := token.Extra("scope").(string)

	return TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		Scope:        scope,
		Expiry:       token.Expiry,
	}, nil
}

// Userinfo fetches the provider's userinfo document for the access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	endpoint := c.relyingParty.UserinfoEndpoint()
	if endpoint == "" {
		return nil, errors.New("provider does not advertise a userinfo endpoint")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status: %d", resp.StatusCode)
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}

	return claims, nil
}

// Revoke invalidates the access token at the provider.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	return rp.RevokeToken(ctx, c.relyingParty, accessToken, "access_token")
}
