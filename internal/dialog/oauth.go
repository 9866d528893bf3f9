package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"service-desk-bot/internal/domain"
)

const (
	// OAuthCardContentType is the attachment content type of sign-in cards.
	OAuthCardContentType = "application/vnd.microsoft.card.oauth"
	// TokenResponseEventName is the event a channel sends once sign-in completes.
	TokenResponseEventName = "tokens/response"

	defaultLoginTimeout = 30 * time.Second
	expiresValue        = "expires"
)

var magicCodePattern = regexp.MustCompile(`^\d{6}$`)

// Token is a user token issued by the token service.
type Token struct {
	ConnectionName string    `json:"connectionName"`
	Token          string    `json:"token"`
	Expiration     time.Time `json:"expiration,omitempty"`
}

// TokenProvider is the bot token service used by OAuthPrompt.
type TokenProvider interface {
	// GetUserToken returns nil, nil when the sender of activity has no token
	// yet. A non-empty magicCode is redeemed for a token.
	GetUserToken(ctx context.Context, activity domain.Activity, magicCode string) (*Token, error)
	SignInLink(ctx context.Context, activity domain.Activity) (string, error)
}

// OAuthSettings configures the sign-in card.
type OAuthSettings struct {
	ConnectionName string
	Title          string
	Text           string
	// Timeout is how long the sign-in stays valid. Zero means 30 seconds.
	Timeout time.Duration
}

// OAuthPrompt asks the user to sign in and ends with a *Token, or with nil
// once the sign-in window expired.
type OAuthPrompt struct {
	id       string
	tokens   TokenProvider
	settings OAuthSettings
	now      func() time.Time
}

func NewOAuthPrompt(id string, tokens TokenProvider, settings OAuthSettings) *OAuthPrompt {
	if settings.Timeout <= 0 {
		settings.Timeout = defaultLoginTimeout
	}
	return &OAuthPrompt{id: id, tokens: tokens, settings: settings, now: time.Now}
}

func (p *OAuthPrompt) ID() string {
	return p.id
}

func (p *OAuthPrompt) Begin(ctx context.Context, dc *Context, _ any) (Result, error) {
	if err := dc.Active().SetValue(expiresValue, p.now().Add(p.settings.Timeout)); err != nil {
		return Result{}, err
	}

	token, err := p.tokens.GetUserToken(ctx, dc.Turn.Activity, "")
	if err != nil {
		return Result{}, fmt.Errorf("dialog: get user token: %w", err)
	}
	if token != nil {
		return dc.End(ctx, token)
	}

	link, err := p.tokens.SignInLink(ctx, dc.Turn.Activity)
	if err != nil {
		return Result{}, fmt.Errorf("dialog: get sign-in link: %w", err)
	}
	dc.Turn.Send(domain.Activity{
		Type: domain.ActivityMessage,
		Attachments: []domain.Attachment{{
			ContentType: OAuthCardContentType,
			Content: map[string]any{
				"text":           p.settings.Text,
				"connectionName": p.settings.ConnectionName,
				"buttons": []map[string]string{
					{"type": "signin", "title": p.settings.Title, "value": link},
				},
			},
		}},
	})
	return Result{Status: StatusWaiting}, nil
}

func (p *OAuthPrompt) Continue(ctx context.Context, dc *Context) (Result, error) {
	var expires time.Time
	if _, err := dc.Active().Value(expiresValue, &expires); err != nil {
		return Result{}, err
	}
	if !expires.IsZero() && p.now().After(expires) {
		return dc.End(ctx, (*Token)(nil))
	}

	token, err := p.recognizeToken(ctx, dc.Turn)
	if err != nil {
		return Result{}, err
	}
	if token != nil {
		return dc.End(ctx, token)
	}
	return Result{Status: StatusWaiting}, nil
}

func (p *OAuthPrompt) Resume(context.Context, *Context, any) (Result, error) {
	return Result{Status: StatusWaiting}, nil
}

func (p *OAuthPrompt) recognizeToken(ctx context.Context, turn *TurnContext) (*Token, error) {
	a := turn.Activity
	switch {
	case a.Type == domain.ActivityEvent && a.Name == TokenResponseEventName:
		var token Token
		if err := json.Unmarshal(a.Value, &token); err != nil {
			return nil, fmt.Errorf("dialog: decode token response: %w", err)
		}
		if token.Token == "" {
			return nil, nil
		}
		return &token, nil
	case a.IsMessage():
		code := strings.TrimSpace(a.Text)
		if !magicCodePattern.MatchString(code) {
			return nil, nil
		}
		token, err := p.tokens.GetUserToken(ctx, a, code)
		if err != nil {
			return nil, fmt.Errorf("dialog: redeem magic code: %w", err)
		}
		return token, nil
	default:
		return nil, nil
	}
}
