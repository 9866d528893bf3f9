package qnamaker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"service-desk-bot/internal/integrations/httpclient"
)

func staticKey(key string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return key, nil }
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(httpclient.New(srv.Client()), KnowledgeBase{ID: "kb-1", Host: srv.URL + "/qnamaker/"}, staticKey("ek"))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	hc := httpclient.New(nil)
	_, err := NewClient(nil, KnowledgeBase{ID: "kb", Host: "h"}, staticKey("k"))
	require.Error(t, err)
	_, err = NewClient(hc, KnowledgeBase{ID: "kb", Host: "h"}, nil)
	require.Error(t, err)
	_, err = NewClient(hc, KnowledgeBase{ID: " ", Host: "h"}, staticKey("k"))
	require.Error(t, err)
}

func TestGenerateAnswer_NormalizesSortsAndFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/qnamaker/knowledgebases/kb-1/generateAnswer", r.URL.Path)
		require.Equal(t, "EndpointKey ek", r.Header.Get("Authorization"))

		var in generateAnswerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "impressora não imprime", in.Question)
		require.Equal(t, 3, in.Top)

		_, _ = io.WriteString(w, `{"answers":[
			{"id":2,"answer":"Reinicie o spooler","score":55.5,"source":"printer.tsv"},
			{"id":7,"answer":"Verifique o cabo","score":91,"source":"printer.tsv"},
			{"id":-1,"answer":"No good match found in KB.","score":0}
		]}`)
	})

	answers, err := c.GenerateAnswer(context.Background(), "impressora não imprime", 3)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	require.Equal(t, 7, answers[0].ID)
	require.InDelta(t, 0.91, answers[0].Score, 1e-9)
	require.Equal(t, "Reinicie o spooler", answers[1].Text)
	require.InDelta(t, 0.555, answers[1].Score, 1e-9)
}

func TestGenerateAnswer_TruncatesToTop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"answers":[{"id":1,"answer":"a","score":80},{"id":2,"answer":"b","score":90}]}`)
	})

	answers, err := c.GenerateAnswer(context.Background(), "senha", 1)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	require.Equal(t, 2, answers[0].ID)
}

func TestGenerateAnswer_EmptyQuestionSkipsCall(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})

	answers, err := c.GenerateAnswer(context.Background(), "  ", 1)
	require.NoError(t, err)
	require.Empty(t, answers)
}

func TestGenerateAnswer_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"Unauthorized","message":"bad key"}}`)
	})

	_, err := c.GenerateAnswer(context.Background(), "senha", 1)
	require.Error(t, err)
	status, ok := httpclient.StatusCode(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Contains(t, err.Error(), "bad key")
}

func TestGenerateAnswer_KeyError(t *testing.T) {
	c, err := NewClient(httpclient.New(nil), KnowledgeBase{ID: "kb", Host: "http://unused"}, func(context.Context) (string, error) {
		return "", errors.New("ssm down")
	})
	require.NoError(t, err)

	_, err = c.GenerateAnswer(context.Background(), "senha", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm down")
}
