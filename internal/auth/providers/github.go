package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/MarcosLauremiro/miKan-api/internal/models"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubOptions tweaks the GitHub provider, mostly for tests.
type GitHubOptions struct {
	HTTPClient *http.Client
	Endpoint   *oauth2.Endpoint
	APIBaseURL string
	Timeout    time.Duration
}

// GitHub runs the GitHub OAuth App flow and reads the user's profile.
type GitHub struct {
	oauthConfig *oauth2.Config
	httpClient  *http.Client
	apiBase     string
	timeout     time.Duration
}

// NewGitHub builds the provider.
func NewGitHub(cfg ClientConfig, opts GitHubOptions) (*GitHub, error) {
	if err := cfg.validate("github"); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	endpoint := endpoints.GitHub
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	apiBase := strings.TrimRight(opts.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultGitHubAPI
	}

	return &GitHub{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		httpClient: opts.HTTPClient,
		apiBase:    apiBase,
		timeout:    opts.Timeout,
	}, nil
}

// Name implements Provider.
func (g *GitHub) Name() string { return GitHubName }

// AuthCodeURL implements Provider.
func (g *GitHub) AuthCodeURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange implements Provider. Users with a private profile email fall back
// to their primary verified address.
func (g *GitHub) Exchange(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code missing", ErrInvalidCredential)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}

	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange failed: %v", ErrInvalidCredential, err)
	}
	client := g.oauthConfig.Client(ctx, token)

	var user githubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		email = primaryEmail(emails)
	}
	if email == "" {
		return nil, errors.New("github provider: account has no verified email")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Identity{
		Provider:   models.ProviderGitHub,
		ProviderID: strconv.FormatInt(user.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  user.AvatarURL,
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("github provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github provider: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github provider: GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github provider: decode %s: %w", path, err)
	}
	return nil
}

func primaryEmail(emails []githubEmail) string {
	var fallback string
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback
}
