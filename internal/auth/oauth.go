package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"projectron-api/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var ErrNoEmail = errors.New("oauth provider did not return a verified email")

// Profile is the identity returned by an OAuth provider.
type Profile struct {
	Provider string
	ID       string
	Email    string
	Name     string
}

// Provider runs the authorization code flow against one identity provider.
type Provider struct {
	Name        string
	oauth       *oauth2.Config
	userInfoURL string
}

func NewProvider(name string, oauth *oauth2.Config, userInfoURL string) *Provider {
	return &Provider{Name: name, oauth: oauth, userInfoURL: userInfoURL}
}

// NewProviders returns the providers that have client credentials configured.
func NewProviders(cfg config.OAuthConfig) map[string]*Provider {
	out := map[string]*Provider{}
	if cfg.Google.ClientID != "" {
		out["google"] = NewProvider("google", &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		}, "https://www.googleapis.com/oauth2/v2/userinfo")
	}
	if cfg.GitHub.ClientID != "" {
		out["github"] = NewProvider("github", &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		}, "https://api.github.com/user")
	}
	return out
}

// AuthCodeURL is where the user is sent to consent.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and loads the user profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: exchange code: %w", p.Name, err)
	}
	client := p.oauth.Client(ctx, tok)

	var info struct {
		ID    json.Number `json:"id"`
		Email string      `json:"email"`
		Name  string      `json:"name"`
		Login string      `json:"login"`
	}
	if err := getJSON(ctx, client, p.userInfoURL, &info); err != nil {
		return nil, fmt.Errorf("%s: load profile: %w", p.Name, err)
	}

	profile := &Profile{Provider: p.Name, ID: info.ID.String(), Email: info.Email, Name: info.Name}
	if profile.Name == "" {
		profile.Name = info.Login
	}
	if profile.Email == "" && p.Name == "github" {
		// private GitHub addresses are only listed on /user/emails
		profile.Email, err = primaryEmail(ctx, client, p.userInfoURL+"/emails")
		if err != nil {
			return nil, fmt.Errorf("%s: load emails: %w", p.Name, err)
		}
	}
	if profile.Email == "" {
		return nil, ErrNoEmail
	}
	return profile, nil
}

func primaryEmail(ctx context.Context, client *http.Client, url string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, url, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrNoEmail
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
