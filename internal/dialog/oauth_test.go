package dialog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/domain"
)

type fakeTokens struct {
	token      *Token
	codeTokens map[string]*Token
	codes      []string
}

func (f *fakeTokens) GetUserToken(_ context.Context, _ domain.Activity, code string) (*Token, error) {
	if code == "" {
		return f.token, nil
	}
	f.codes = append(f.codes, code)
	return f.codeTokens[code], nil
}

func (f *fakeTokens) SignInLink(context.Context, domain.Activity) (string, error) {
	return "https://signin.example/abc", nil
}

func loginFlow(result *any) *Waterfall {
	return NewWaterfall("login",
		func(ctx context.Context, s *Step) (Result, error) {
			return s.Begin(ctx, "oauth", nil)
		},
		func(ctx context.Context, s *Step) (Result, error) {
			*result = s.Result
			return s.End(ctx, nil)
		},
	)
}

func newOAuthConversation(t *testing.T, tokens *fakeTokens, now *time.Time, result *any) *conversation {
	prompt := NewOAuthPrompt("oauth", tokens, OAuthSettings{ConnectionName: "aad", Title: "Login", Text: "Por favor efetue se autentique"})
	prompt.now = func() time.Time { return *now }
	return newConversation(t, loginFlow(result), prompt)
}

func beginLogin(c *conversation) (Result, []domain.Activity) {
	return c.turn(messageActivity("abrir chamado"), func(ctx context.Context, dc *Context) (Result, error) {
		return dc.Begin(ctx, "login", nil)
	})
}

func TestOAuthPrompt_ExistingTokenEndsImmediately(t *testing.T) {
	now := time.Now()
	var result any
	tokens := &fakeTokens{token: &Token{Token: "jwt"}}
	c := newOAuthConversation(t, tokens, &now, &result)

	res, replies := beginLogin(c)
	require.Equal(t, StatusComplete, res.Status)
	require.Empty(t, replies)
	require.Equal(t, "jwt", result.(*Token).Token)
}

func TestOAuthPrompt_SendsCardAndRedeemsMagicCode(t *testing.T) {
	now := time.Now()
	var result any
	tokens := &fakeTokens{codeTokens: map[string]*Token{"123456": {Token: "jwt-2"}}}
	c := newOAuthConversation(t, tokens, &now, &result)

	res, replies := beginLogin(c)
	require.Equal(t, StatusWaiting, res.Status)
	require.Len(t, replies, 1)
	require.Equal(t, OAuthCardContentType, replies[0].Attachments[0].ContentType)

	res, replies = c.say("não é um código")
	require.Equal(t, StatusWaiting, res.Status)
	require.Empty(t, replies)
	require.Empty(t, tokens.codes)

	now = now.Add(10 * time.Second)
	res, _ = c.say("123456")
	require.Equal(t, StatusComplete, res.Status)
	require.Equal(t, "jwt-2", result.(*Token).Token)
}

func TestOAuthPrompt_TokenResponseEvent(t *testing.T) {
	now := time.Now()
	var result any
	c := newOAuthConversation(t, &fakeTokens{}, &now, &result)
	beginLogin(c)

	event := messageActivity("")
	event.Type = domain.ActivityEvent
	event.Name = TokenResponseEventName
	event.Value = json.RawMessage(`{"connectionName":"aad","token":"jwt-3"}`)
	res, _ := c.turn(event, func(ctx context.Context, dc *Context) (Result, error) {
		return dc.Continue(ctx)
	})
	require.Equal(t, StatusComplete, res.Status)
	require.Equal(t, "jwt-3", result.(*Token).Token)
}

func TestOAuthPrompt_ExpiresAfterTimeout(t *testing.T) {
	now := time.Now()
	var result any
	tokens := &fakeTokens{codeTokens: map[string]*Token{"123456": {Token: "late"}}}
	c := newOAuthConversation(t, tokens, &now, &result)
	beginLogin(c)

	now = now.Add(31 * time.Second)
	res, _ := c.say("123456")
	require.Equal(t, StatusComplete, res.Status)
	require.Nil(t, result.(*Token))
	require.Empty(t, tokens.codes)
}
