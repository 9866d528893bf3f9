// Package httpclient holds the JSON-over-HTTP plumbing shared by the
// integrations (LUIS, QnA Maker, directory, OAuth token service, ticket
// service).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxErrorBodySize = 4096
	maxBodySize      = 1 << 20
)

// StatusError captures non-2xx upstream responses with status-aware context.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
	// Message is the upstream error message when the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// StatusCode extracts the upstream HTTP status from err, if any.
func StatusCode(err error) (int, bool) {
	var statusErr interface{ HTTPStatusCode() int }
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// Client performs JSON requests and decodes JSON responses.
type Client struct {
	http *http.Client
}

// New returns a Client. A nil httpClient gets a default with a 10s timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{http: httpClient}
}

// NewKeepAlive returns a Client whose transport reuses connections across
// calls for the process lifetime.
func NewKeepAlive(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	transport.IdleConnTimeout = 90 * time.Second
	return &Client{http: &http.Client{Timeout: timeout, Transport: transport}}
}

// Request describes one JSON call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Body is marshalled as JSON when non-nil.
	Body any
	// Form is sent url-encoded when non-empty; it takes precedence over Body.
	Form url.Values
}

// Do sends req and, on a 2xx response, decodes the body into out (when out
// is non-nil). It returns the raw body.
func (c *Client) Do(ctx context.Context, req Request, out any) ([]byte, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL,
			Body:       string(buf),
			Message:    errorMessage(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if out != nil && len(bytes.TrimSpace(buf)) > 0 {
		if err := json.Unmarshal(buf, out); err != nil {
			return buf, fmt.Errorf("decode response: %w", err)
		}
	}
	return buf, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case len(req.Form) > 0:
		body = bytes.NewBufferString(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// errorMessage pulls a human readable message out of common error bodies:
// {"error":"..."}, {"error":{"message":"..."}} and {"message":"..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return payload.Message
}
