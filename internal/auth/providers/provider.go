// Package providers adapts external OAuth identity providers to the login
// flow. Each provider turns an authorization code (or, for Google, a signed
// ID token) into an Identity.
package providers

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

// Registered provider names.
const (
	GoogleName = "google"
	GitHubName = "github"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	// ErrInvalidCredential marks tokens or codes the provider rejected.
	ErrInvalidCredential = errors.New("oauth: invalid credential")
)

// Identity is the normalised profile returned by a provider.
type Identity struct {
	Provider   models.AuthProvider
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Provider implements the authorization code flow for one identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// ClientConfig carries the OAuth client registration for a provider.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

func (c ClientConfig) validate(name string) error {
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New(name + " provider: client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New(name + " provider: client secret is required")
	}
	return nil
}

// Registry holds the configured providers keyed by lower-case name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes the supplied providers, skipping nils.
func NewRegistry(list ...Provider) *Registry {
	reg := &Registry{providers: make(map[string]Provider, len(list))}
	for _, p := range list {
		if p == nil {
			continue
		}
		reg.providers[strings.ToLower(p.Name())] = p
	}
	return reg
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	if r == nil {
		return nil, ErrUnknownProvider
	}
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
