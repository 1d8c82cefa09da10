// Package identity talks to the external auth provider. The provider's token
// protocol is consumed as an opaque service: we build the hosted-OAuth start
// URL, exchange authorization codes and refresh tokens, and best-effort revoke
// on logout.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrProvider marks any failed or incomplete provider exchange. Grants are
// all-or-nothing: a response missing the refresh token or expiry is an error,
// never a partial grant.
var ErrProvider = errors.New("identity: provider exchange failed")

// Grant is a validated credential set from the provider.
type Grant struct {
	UserID       string
	Email        string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthorizeURL returns the hosted GitHub OAuth entry point. redirectTo is
// where the provider sends the browser after consent.
func (c *Client) AuthorizeURL(redirectTo string) string {
	q := url.Values{}
	q.Set("provider", "github")
	q.Set("redirect_to", redirectTo)
	q.Set("scopes", "user:email")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

func (c *Client) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	return c.tokenExchange(ctx, "authorization_code", map[string]string{"auth_code": code})
}

func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*Grant, error) {
	return c.tokenExchange(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// Revoke invalidates an access credential upstream. Callers treat failures as
// non-fatal; the local session is already gone by the time this runs.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: logout returned %d", ErrProvider, resp.StatusCode)
	}
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			AvatarURL string `json:"avatar_url"`
		} `json:"user_metadata"`
	} `json:"user"`
}

func (c *Client) tokenExchange(ctx context.Context, grantType string, payload map[string]string) (*Grant, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/auth/v1/token?grant_type=" + url.QueryEscape(grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrProvider, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return grantFromResponse(&tr)
}

func grantFromResponse(tr *tokenResponse) (*Grant, error) {
	if tr.User.ID == "" || tr.RefreshToken == "" || tr.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: incomplete grant", ErrProvider)
	}
	return &Grant{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AvatarURL:    tr.User.UserMetadata.AvatarURL,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
	}, nil
}
