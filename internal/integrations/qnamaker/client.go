// Package qnamaker queries QnA Maker knowledge bases.
package qnamaker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"service-desk-bot/internal/integrations/httpclient"
)

// DefaultThreshold is the minimum normalized score an answer needs.
const DefaultThreshold = 0.3

// Answer is one knowledge base match. Score is normalized to [0,1].
type Answer struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Score     float64  `json:"score"`
	Source    string   `json:"source,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// KnowledgeBase identifies one published knowledge base.
type KnowledgeBase struct {
	ID   string
	Host string
}

type generateAnswerRequest struct {
	Question string `json:"question"`
	Top      int    `json:"top"`
}

type generateAnswerResponse struct {
	Answers []struct {
		ID        int      `json:"id"`
		Answer    string   `json:"answer"`
		Score     float64  `json:"score"`
		Source    string   `json:"source"`
		Questions []string `json:"questions"`
	} `json:"answers"`
}

// Client answers questions from one knowledge base.
type Client struct {
	http      *httpclient.Client
	kb        KnowledgeBase
	key       func(ctx context.Context) (string, error)
	threshold float64
}

type Option func(*Client)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(c *Client) {
		c.threshold = threshold
	}
}

// NewClient creates a Client. key resolves the endpoint key lazily.
func NewClient(hc *httpclient.Client, kb KnowledgeBase, key func(ctx context.Context) (string, error), opts ...Option) (*Client, error) {
	if hc == nil {
		return nil, errors.New("qnamaker: http client must not be nil")
	}
	if key == nil {
		return nil, errors.New("qnamaker: key source must not be nil")
	}
	kb.ID = strings.TrimSpace(kb.ID)
	kb.Host = strings.TrimRight(strings.TrimSpace(kb.Host), "/")
	if kb.ID == "" || kb.Host == "" {
		return nil, errors.New("qnamaker: knowledge base id and host are required")
	}
	c := &Client{http: hc, kb: kb, key: key, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateAnswer returns at most top answers for question, best first.
// Answers below the threshold are dropped, so the result may be empty.
func (c *Client) GenerateAnswer(ctx context.Context, question string, top int) ([]Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil
	}
	if top <= 0 {
		top = 1
	}
	key, err := c.key(ctx)
	if err != nil {
		return nil, fmt.Errorf("qnamaker: resolve endpoint key: %w", err)
	}

	var resp generateAnswerResponse
	_, err = c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.kb.Host + "/knowledgebases/" + url.PathEscape(c.kb.ID) + "/generateAnswer",
		Headers: map[string]string{"Authorization": "EndpointKey " + key},
		Body:    generateAnswerRequest{Question: question, Top: top},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("qnamaker: generate answer: %w", err)
	}

	answers := make([]Answer, 0, len(resp.Answers))
	for _, a := range resp.Answers {
		score := a.Score / 100
		if score < c.threshold || a.Answer == "" {
			continue
		}
		answers = append(answers, Answer{
			ID:        a.ID,
			Text:      a.Answer,
			Score:     score,
			Source:    a.Source,
			Questions: a.Questions,
		})
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].Score > answers[j].Score
	})
	if len(answers) > top {
		answers = answers[:top]
	}
	return answers, nil
}
