// Package directory looks users up in Azure AD Graph and resets their
// passwords with an application (client credentials) token.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

const (
	defaultLoginURL   = "https://login.microsoftonline.com"
	defaultGraphURL   = "https://graph.windows.net"
	defaultAPIVersion = "1.6"
	graphResource     = "https://graph.windows.net"

	// tokenSkew renews the application token shortly before it expires.
	tokenSkew = time.Minute
)

// Config identifies the directory tenant and the application used to call it.
type Config struct {
	TenantID   string
	ClientID   string
	LoginURL   string
	GraphURL   string
	APIVersion string
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type graphUser struct {
	ObjectID          string `json:"objectId"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	Mobile            string `json:"mobile"`
	UsageLocation     string `json:"usageLocation"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type usersResponse struct {
	Value []graphUser `json:"value"`
}

type passwordProfile struct {
	Password                     string `json:"password"`
	ForceChangePasswordNextLogin bool   `json:"forceChangePasswordNextLogin"`
}

type changePasswordRequest struct {
	PasswordProfile passwordProfile `json:"passwordProfile"`
}

// Client is a user directory backed by Azure AD Graph.
type Client struct {
	http   *httpclient.Client
	cfg    Config
	secret func(ctx context.Context) (string, error)
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Client. secret resolves the application secret lazily.
func NewClient(hc *httpclient.Client, cfg Config, secret func(ctx context.Context) (string, error)) (*Client, error) {
	if hc == nil {
		return nil, errors.New("directory: http client must not be nil")
	}
	if secret == nil {
		return nil, errors.New("directory: secret source must not be nil")
	}
	cfg.TenantID = strings.TrimSpace(cfg.TenantID)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	if cfg.TenantID == "" || cfg.ClientID == "" {
		return nil, errors.New("directory: tenant id and client id are required")
	}
	cfg.LoginURL = strings.TrimRight(strings.TrimSpace(cfg.LoginURL), "/")
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLoginURL
	}
	cfg.GraphURL = strings.TrimRight(strings.TrimSpace(cfg.GraphURL), "/")
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Client{http: hc, cfg: cfg, secret: secret, now: time.Now}, nil
}

// GetUserByID finds a user by principal name, then by mail. It returns nil
// when neither matches.
func (c *Client) GetUserByID(ctx context.Context, userID string) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	for _, attr := range []string{"userPrincipalName", "mail"} {
		user, err := c.findUser(ctx, attr, userID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}

// ChangePassword sets a new password that must be changed at next login.
func (c *Client) ChangePassword(ctx context.Context, profile domain.UserProfile, password string) error {
	if profile.ObjectID == "" {
		return errors.New("directory: change password: profile has no object id")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	_, err = c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodPatch,
		URL:     c.graphURL("users/"+url.PathEscape(profile.ObjectID), nil),
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Body: changePasswordRequest{PasswordProfile: passwordProfile{
			Password:                     password,
			ForceChangePasswordNextLogin: true,
		}},
	}, nil)
	if err != nil {
		return fmt.Errorf("directory: change password: %w", err)
	}
	return nil
}

func (c *Client) findUser(ctx context.Context, attr, value string) (*domain.UserProfile, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("%s eq '%s'", attr, strings.ReplaceAll(value, "'", "''"))

	var resp usersResponse
	_, err = c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.graphURL("users", url.Values{"$filter": {filter}}),
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("directory: find user by %s: %w", attr, err)
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	u := resp.Value[0]
	return &domain.UserProfile{
		UserID:            value,
		ObjectID:          u.ObjectID,
		GivenName:         u.GivenName,
		Surname:           u.Surname,
		DisplayName:       u.DisplayName,
		Mail:              u.Mail,
		MobilePhone:       u.Mobile,
		UsageLocation:     u.UsageLocation,
		UserPrincipalName: u.UserPrincipalName,
	}, nil
}

func (c *Client) graphURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api-version", c.cfg.APIVersion)
	return c.cfg.GraphURL + "/" + url.PathEscape(c.cfg.TenantID) + "/" + path + "?" + q.Encode()
}

// accessToken returns the cached application token, fetching a new one
// when it is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	secret, err := c.secret(ctx)
	if err != nil {
		return "", fmt.Errorf("directory: resolve client secret: %w", err)
	}
	var resp tokenResponse
	_, err = c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.cfg.LoginURL + "/" + url.PathEscape(c.cfg.TenantID) + "/oauth2/token",
		Form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {c.cfg.ClientID},
			"client_secret": {secret},
			"resource":      {graphResource},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("directory: acquire token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("directory: acquire token: empty access token")
	}

	ttl := time.Hour
	if secs, err := resp.ExpiresIn.Int64(); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.token = resp.AccessToken
	c.expires = c.now().Add(ttl - tokenSkew)
	return c.token, nil
}
