package recognizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

func staticKey(key string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return key, nil }
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(httpclient.New(nil), AppConfig{AppID: "app-1", Endpoint: url, IncludeAllIntents: true, Verbose: true}, staticKey("luis-key"))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(nil, AppConfig{AppID: "a"}, staticKey("k"))
	require.Error(t, err)
	_, err = NewClient(httpclient.New(nil), AppConfig{AppID: "a"}, nil)
	require.Error(t, err)
	_, err = NewClient(httpclient.New(nil), AppConfig{AppID: " "}, staticKey("k"))
	require.Error(t, err)
}

func TestRecognize_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/luis/v2.0/apps/app-1", r.URL.Path)
		require.Equal(t, "esqueci minha senha", r.URL.Query().Get("q"))
		require.Equal(t, "true", r.URL.Query().Get("verbose"))
		require.Equal(t, "false", r.URL.Query().Get("spellCheck"))
		require.Equal(t, "luis-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		require.Contains(t, r.Header.Get("User-Agent"), "ServiceDeskBot")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "esqueci minha senha",
			"intents": [{"intent": "l_service_desk_account_password", "score": 0.93}],
			"entities": [{"entity": "senha", "type": "Subject", "startIndex": 14, "endIndex": 18, "score": 0.6}]
		}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL).RecognizeTurn(context.Background(), domain.Activity{Text: "esqueci minha senha"})
	require.NoError(t, err)
	require.Equal(t, "esqueci minha senha", res.Text)
	require.Equal(t, "l_service_desk_account_password", TopIntent(&res, "None", 0))
	require.Equal(t, []any{"senha"}, res.Entities.Values["Subject"])
	require.Equal(t, 19, res.Entities.Instance["Subject"][0].EndIndex)
}

func TestRecognize_StatusCauses(t *testing.T) {
	cases := []struct {
		status int
		cause  string
	}{
		{status: http.StatusBadRequest, cause: "Response 400: The request's body or parameters are incorrect"},
		{status: http.StatusUnauthorized, cause: "Response 401: The key used is invalid"},
		{status: http.StatusForbidden, cause: "Response 403: Total monthly key quota limit exceeded."},
		{status: http.StatusConflict, cause: "Response 409: Application loading in progress"},
		{status: http.StatusGone, cause: "Response 410: Please retrain and republish"},
		{status: http.StatusRequestURITooLong, cause: "Response 414: The query is too long"},
		{status: http.StatusTooManyRequests, cause: "Response 429: Too many requests."},
		{status: http.StatusBadGateway, cause: "Response 502: Unexpected status code received."},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"code":"x","message":"upstream says no"}}`))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).Recognize(context.Background(), "oi")
			require.Error(t, err)
			var svcErr *ServiceError
			require.True(t, errors.As(err, &svcErr))
			require.Equal(t, tc.status, svcErr.StatusCode)
			require.Contains(t, svcErr.Cause, tc.cause)
			require.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestRecognize_KeyError(t *testing.T) {
	c, err := NewClient(httpclient.New(nil), AppConfig{AppID: "app-1"}, func(context.Context) (string, error) {
		return "", errors.New("ssm down")
	})
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), "oi")
	require.ErrorContains(t, err, "ssm down")
}

type fixedRecognizer struct{}

func (fixedRecognizer) Recognize(context.Context, string) (RecognizerResult, error) {
	return RecognizerResult{}, nil
}

func TestNewRegistry_RequiresEveryApp(t *testing.T) {
	_, err := NewRegistry(map[App]Recognizer{AppDispatch: fixedRecognizer{}})
	require.ErrorContains(t, err, "account_password")

	reg, err := NewRegistry(map[App]Recognizer{
		AppDispatch:          fixedRecognizer{},
		AppAccountPassword:   fixedRecognizer{},
		AppSupportTicket:     fixedRecognizer{},
		AppSupportKBDispatch: fixedRecognizer{},
	})
	require.NoError(t, err)
	require.NotNil(t, reg.Get(AppSupportTicket))
}
