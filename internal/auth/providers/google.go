package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

const (
	googleIssuer  = "https://accounts.google.com"
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// GoogleOptions tweaks the Google provider, mostly for tests.
type GoogleOptions struct {
	HTTPClient *http.Client
	KeySet     oidc.KeySet
	Endpoint   *oauth2.Endpoint
	Now        func() time.Time
	Timeout    time.Duration
}

// Google verifies Google ID tokens and runs the Google authorization code flow.
type Google struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	httpClient  *http.Client
	timeout     time.Duration
}

// NewGoogle builds the provider. The signing keys are fetched lazily on the
// first verification.
func NewGoogle(cfg ClientConfig, opts GoogleOptions) (*Google, error) {
	if err := cfg.validate("google"); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	endpoint := endpoints.Google
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}

	keySet := opts.KeySet
	if keySet == nil {
		ctx := context.Background()
		if opts.HTTPClient != nil {
			ctx = oidc.ClientContext(ctx, opts.HTTPClient)
		}
		keySet = oidc.NewRemoteKeySet(ctx, googleJWKSURL)
	}

	// Google issues tokens under two issuer spellings; checked by hand below.
	verifier := oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: true,
		Now:             opts.Now,
	})

	return &Google{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		verifier:   verifier,
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
	}, nil
}

// Name implements Provider.
func (g *Google) Name() string { return GoogleName }

// AuthCodeURL implements Provider.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// VerifyIDToken validates a Google Sign-In credential and extracts the profile.
func (g *Google) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrInvalidCredential)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	token, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if token.Issuer != googleIssuer && token.Issuer != "accounts.google.com" {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCredential, token.Issuer)
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google provider: decode claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidCredential)
	}

	return &Identity{
		Provider:   models.ProviderGoogle,
		ProviderID: token.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		AvatarURL:  claims.Picture,
	}, nil
}

// Exchange implements Provider.
func (g *Google) Exchange(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code missing", ErrInvalidCredential)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}

	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange failed: %v", ErrInvalidCredential, err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("google provider: id token missing")
	}
	return g.VerifyIDToken(ctx, rawIDToken)
}

func (g *Google) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, g.timeout)
}
