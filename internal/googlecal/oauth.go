package googlecal

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"agendacerto/pkg/config"
)

// Bundle is a Google OAuth token bundle as persisted per empresa
type Bundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope,omitempty"`
}

// Expired reports whether the access token's expiry has passed
func (b Bundle) Expired(now time.Time) bool {
	return !b.Expiry.IsZero() && !now.Before(b.Expiry)
}

// ExpiresWithin reports whether the access token expires within d
func (b Bundle) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !b.Expiry.IsZero() && b.Expiry.Before(now.Add(d))
}

// OAuth wraps the oauth2 authorization-code flow against Google's token
// endpoint. It is constructed once and injected wherever tokens are
// exchanged or refreshed.
type OAuth struct {
	cfg oauth2.Config
}

// OAuthOption tweaks the oauth2 configuration, mainly for tests
type OAuthOption func(*oauth2.Config)

// WithAuthEndpoint points the flow at a different authorization server
func WithAuthEndpoint(authURL, tokenURL string) OAuthOption {
	return func(c *oauth2.Config) {
		c.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	}
}

// NewOAuth builds the flow from service configuration
func NewOAuth(gc *config.GoogleConfig, opts ...OAuthOption) *OAuth {
	cfg := oauth2.Config{
		ClientID:     gc.ClientID,
		ClientSecret: gc.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  gc.RedirectURL,
		Scopes:       []string{gc.Scope},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OAuth{cfg: cfg}
}

// AuthCodeURL returns the Google consent URL for the given state nonce and
// PKCE verifier. Offline access and the consent prompt are forced so a
// refresh token is always issued.
func (o *OAuth) AuthCodeURL(state, verifier string) string {
	return o.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token bundle. verifier must
// be the one whose challenge was sent on the consent URL.
func (o *OAuth) Exchange(ctx context.Context, code, verifier string) (Bundle, error) {
	tok, err := o.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Bundle{}, err
	}
	return bundleFromToken(tok, ""), nil
}

// Refresh trades a refresh token for a fresh access token. Google omits the
// refresh token from refresh responses, so the caller's token is carried
// over when the response has none.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (Bundle, error) {
	ts := o.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return Bundle{}, err
	}
	return bundleFromToken(tok, refreshToken), nil
}

func bundleFromToken(tok *oauth2.Token, fallbackRefresh string) Bundle {
	b := Bundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if b.RefreshToken == "" {
		b.RefreshToken = fallbackRefresh
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		b.Scope = scope
	}
	return b
}

// NewState creates a random URL-safe state nonce for the consent redirect
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVerifier creates a PKCE code verifier for one consent roundtrip
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}
