package app

import (
	"strings"

	"github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	accessTTL := c.JWT.AccessTTL
	if accessTTL <= 0 {
		accessTTL = auth.DefaultAccessTokenTTL
	}
	refreshTTL := c.JWT.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = auth.DefaultRefreshTokenTTL
	}

	return auth.JWTConfig{
		AccessSecret:    c.JWT.AccessSecret,
		RefreshSecret:   c.JWT.RefreshSecret,
		Issuer:          c.JWT.Issuer,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}
}

// StateKey returns the OAuth state signing key, falling back to the refresh
// secret so a single-secret deployment still gets a stable key.
func (c AuthConfig) StateKey() []byte {
	if key := strings.TrimSpace(c.OAuth.StateSecret); key != "" {
		return []byte(key)
	}
	return []byte("oauth-state:" + c.JWT.RefreshSecret)
}

// GoogleClientConfig returns the Google registration and whether it is enabled.
func (c AuthConfig) GoogleClientConfig() (providers.ClientConfig, bool) {
	return c.OAuth.Google.clientConfig()
}

// GitHubClientConfig returns the GitHub registration and whether it is enabled.
func (c AuthConfig) GitHubClientConfig() (providers.ClientConfig, bool) {
	return c.OAuth.GitHub.clientConfig()
}

func (p OAuthProviderConfig) clientConfig() (providers.ClientConfig, bool) {
	cfg := providers.ClientConfig{
		ClientID:     strings.TrimSpace(p.ClientID),
		ClientSecret: strings.TrimSpace(p.ClientSecret),
		RedirectURL:  strings.TrimSpace(p.RedirectURL),
		Scopes:       p.Scopes,
	}
	return cfg, p.Enabled && cfg.ClientID != ""
}
