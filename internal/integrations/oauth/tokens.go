// Package oauth talks to the bot token service that brokers user sign-in,
// and to Microsoft Graph on behalf of the signed-in user.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"service-desk-bot/internal/dialog"
	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

const defaultTokenServiceURL = "https://api.botframework.com"

type tokenResponse struct {
	ChannelID      string `json:"channelId"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
	Expiration     string `json:"expiration"`
}

type signInState struct {
	ConnectionName string                `json:"ConnectionName"`
	Conversation   conversationReference `json:"Conversation"`
	MsAppID        string                `json:"MsAppId"`
}

type conversationReference struct {
	ActivityID   string                     `json:"activityId,omitempty"`
	User         domain.ChannelAccount      `json:"user"`
	Bot          domain.ChannelAccount      `json:"bot"`
	Conversation domain.ConversationAccount `json:"conversation"`
	ChannelID    string                     `json:"channelId"`
}

// TokenServiceConfig identifies the OAuth connection used for sign-in.
type TokenServiceConfig struct {
	BaseURL        string
	ConnectionName string
	AppID          string
}

// TokenService implements dialog.TokenProvider against the bot token
// service REST API.
type TokenService struct {
	http *httpclient.Client
	cfg  TokenServiceConfig
	// credentials resolves the bearer token the bot authenticates with.
	credentials func(ctx context.Context) (string, error)
}

var _ dialog.TokenProvider = (*TokenService)(nil)

func NewTokenService(hc *httpclient.Client, cfg TokenServiceConfig, credentials func(ctx context.Context) (string, error)) (*TokenService, error) {
	if hc == nil {
		return nil, errors.New("oauth: http client must not be nil")
	}
	if credentials == nil {
		return nil, errors.New("oauth: credentials source must not be nil")
	}
	cfg.ConnectionName = strings.TrimSpace(cfg.ConnectionName)
	if cfg.ConnectionName == "" {
		return nil, errors.New("oauth: connection name must not be empty")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTokenServiceURL
	}
	return &TokenService{http: hc, cfg: cfg, credentials: credentials}, nil
}

// GetUserToken returns the cached token of the activity sender, redeeming
// magicCode when given. It returns nil, nil when there is no token.
func (s *TokenService) GetUserToken(ctx context.Context, activity domain.Activity, magicCode string) (*dialog.Token, error) {
	if activity.From.ID == "" {
		return nil, errors.New("oauth: get user token: activity has no sender")
	}
	q := url.Values{
		"userId":         {activity.From.ID},
		"connectionName": {s.cfg.ConnectionName},
		"channelId":      {activity.ChannelID},
	}
	if magicCode != "" {
		q.Set("code", magicCode)
	}

	var resp tokenResponse
	if _, err := s.do(ctx, "/api/usertoken/GetToken?"+q.Encode(), &resp); err != nil {
		if status, ok := httpclient.StatusCode(err); ok && status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("oauth: get user token: %w", err)
	}
	if resp.Token == "" {
		return nil, nil
	}
	token := &dialog.Token{ConnectionName: resp.ConnectionName, Token: resp.Token}
	if exp, err := time.Parse(time.RFC3339, resp.Expiration); err == nil {
		token.Expiration = exp
	}
	return token, nil
}

// SignInLink returns the URL the user opens to sign in.
func (s *TokenService) SignInLink(ctx context.Context, activity domain.Activity) (string, error) {
	state, err := json.Marshal(signInState{
		ConnectionName: s.cfg.ConnectionName,
		MsAppID:        s.cfg.AppID,
		Conversation: conversationReference{
			ActivityID:   activity.ID,
			User:         activity.From,
			Bot:          activity.Recipient,
			Conversation: activity.Conversation,
			ChannelID:    activity.ChannelID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("oauth: encode sign-in state: %w", err)
	}
	q := url.Values{"state": {base64.StdEncoding.EncodeToString(state)}}

	raw, err := s.do(ctx, "/api/botsignin/GetSignInUrl?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("oauth: get sign-in link: %w", err)
	}
	link := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if link == "" {
		return "", errors.New("oauth: get sign-in link: empty response")
	}
	return link, nil
}

func (s *TokenService) do(ctx context.Context, pathAndQuery string, out any) ([]byte, error) {
	bearer, err := s.credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve bot credentials: %w", err)
	}
	return s.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     s.cfg.BaseURL + pathAndQuery,
		Headers: map[string]string{"Authorization": "Bearer " + bearer},
	}, out)
}
