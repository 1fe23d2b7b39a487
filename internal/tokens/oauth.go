package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint is an OAuth2 provider's authorize and token URLs.
type Endpoint struct {
	AuthURL  string
	TokenURL string
}

// IntuitEndpoint is Intuit's OAuth2 endpoint, shared by sandbox and production.
var IntuitEndpoint = Endpoint{
	AuthURL:  "https://appcenter.intuit.com/connect/oauth2",
	TokenURL: "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
}

// Grant is a token endpoint response.
type Grant struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"x_refresh_token_expires_in"`
}

// GrantError is a non-2xx token endpoint response.
type GrantError struct {
	Status      int
	Code        string
	Description string
}

func (e *GrantError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("token endpoint status %d: %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("token endpoint status %d: %s", e.Status, e.Code)
}

// Is makes invalid_grant responses match ErrUpstreamRejected.
func (e *GrantError) Is(target error) bool {
	return target == ErrUpstreamRejected && e.Code == "invalid_grant"
}

// Grants is the subset of the OAuth2 protocol the manager drives.
type Grants interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Grant, error)
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
}

// OAuthConfig configures an OAuthClient.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoint     Endpoint
	HTTPClient   *http.Client
}

// OAuthClient talks to the authorization-code and refresh-token grants using
// HTTP basic client authentication.
type OAuthClient struct {
	cfg  OAuthConfig
	http *http.Client
}

// NewOAuthClient constructs an OAuthClient.
func NewOAuthClient(cfg OAuthConfig) *OAuthClient {
	if cfg.Endpoint == (Endpoint{}) {
		cfg.Endpoint = IntuitEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &OAuthClient{cfg: cfg, http: httpClient}
}

// AuthCodeURL builds the consent URL for state.
func (c *OAuthClient) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	sep := "?"
	if strings.Contains(c.cfg.Endpoint.AuthURL, "?") {
		sep = "&"
	}
	return c.cfg.Endpoint.AuthURL + sep + q.Encode()
}

// Exchange redeems an authorization code.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (Grant, error) {
	return c.token(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	})
}

// Refresh redeems a refresh token.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (c *OAuthClient) token(ctx context.Context, form url.Values) (Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Grant{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Grant{}, fmt.Errorf("token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &payload)
		code := payload.Error
		if code == "" {
			code = http.StatusText(resp.StatusCode)
		}
		return Grant{}, &GrantError{Status: resp.StatusCode, Code: code, Description: payload.Description}
	}

	var grant Grant
	if err := json.Unmarshal(body, &grant); err != nil {
		return Grant{}, fmt.Errorf("decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		return Grant{}, errors.New("token response without access_token")
	}
	return grant, nil
}
