package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Identity is what the OAuth provider tells us about who signed in.
type Identity struct {
	Provider   string
	ProviderID string
	Login      string
}

// Provider runs the authorization-code flow against a GitHub-style
// OAuth provider.
type Provider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
}

// ProviderOptions configures a Provider. URLs default to GitHub in
// the config layer; any provider with a compatible userinfo payload
// ({"id": ..., "login": ...}) works.
type ProviderOptions struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
}

func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{
		name: opts.Name,
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  opts.AuthURL,
				TokenURL: opts.TokenURL,
			},
			RedirectURL: opts.RedirectURL,
			Scopes:      opts.Scopes,
		},
		userInfoURL: opts.UserInfoURL,
	}
}

// LoginURL returns the provider page to redirect the browser to.
func (p *Provider) LoginURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a provider token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}

// FetchIdentity asks the provider who the token belongs to.
func (p *Provider) FetchIdentity(ctx context.Context, tok *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: %s", resp.Status)
	}

	var payload struct {
		ID    json.Number `json:"id"`
		Login string      `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if payload.ID.String() == "" || payload.Login == "" {
		return nil, fmt.Errorf("userinfo payload missing id or login")
	}

	return &Identity{
		Provider:   p.name,
		ProviderID: payload.ID.String(),
		Login:      payload.Login,
	}, nil
}
