// Package recognizer turns LUIS v2 predictions into RecognizerResult values.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

const defaultEndpoint = "https://westus.api.cognitive.microsoft.com"

var userAgent = fmt.Sprintf("ServiceDeskBot/1.0.0 (%s-%s; Go,Version=%s)", runtime.GOARCH, runtime.GOOS, runtime.Version())

// Recognizer classifies an utterance.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (RecognizerResult, error)
}

// AppConfig identifies one LUIS application and its prediction options.
type AppConfig struct {
	AppID    string
	Endpoint string
	// Staging queries the staging slot instead of production.
	Staging bool
	// Verbose attaches $instance metadata to entities.
	Verbose bool
	// IncludeAllIntents asks for the score of every intent, not only the top one.
	IncludeAllIntents bool
	Log               bool
}

// Client calls the LUIS v2 prediction endpoint for one application.
type Client struct {
	http *httpclient.Client
	app  AppConfig
	key  func(ctx context.Context) (string, error)
}

// NewClient creates a Client. key resolves the subscription key lazily.
func NewClient(hc *httpclient.Client, app AppConfig, key func(ctx context.Context) (string, error)) (*Client, error) {
	if hc == nil {
		return nil, errors.New("recognizer: http client must not be nil")
	}
	if key == nil {
		return nil, errors.New("recognizer: key source must not be nil")
	}
	app.AppID = strings.TrimSpace(app.AppID)
	if app.AppID == "" {
		return nil, errors.New("recognizer: app id must not be empty")
	}
	app.Endpoint = strings.TrimRight(strings.TrimSpace(app.Endpoint), "/")
	if app.Endpoint == "" {
		app.Endpoint = defaultEndpoint
	}
	return &Client{http: hc, app: app, key: key}, nil
}

// Recognize classifies text. Upstream failures are returned as *ServiceError.
func (c *Client) Recognize(ctx context.Context, text string) (RecognizerResult, error) {
	key, err := c.key(ctx)
	if err != nil {
		return RecognizerResult{}, fmt.Errorf("recognizer: resolve subscription key: %w", err)
	}

	var resp Response
	_, err = c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.predictionURL(text),
		Headers: map[string]string{
			"Ocp-Apim-Subscription-Key": key,
			"User-Agent":                userAgent,
		},
	}, &resp)
	if err != nil {
		if status, ok := httpclient.StatusCode(err); ok {
			return RecognizerResult{}, newServiceError(status, err)
		}
		return RecognizerResult{}, fmt.Errorf("recognizer: predict: %w", err)
	}
	return Shape(resp, c.app.Verbose), nil
}

// RecognizeTurn classifies the text of an inbound activity.
func (c *Client) RecognizeTurn(ctx context.Context, activity domain.Activity) (RecognizerResult, error) {
	return c.Recognize(ctx, activity.Text)
}

func (c *Client) predictionURL(text string) string {
	q := url.Values{}
	q.Set("q", text)
	q.Set("verbose", strconv.FormatBool(c.app.IncludeAllIntents))
	q.Set("staging", strconv.FormatBool(c.app.Staging))
	q.Set("log", strconv.FormatBool(c.app.Log))
	q.Set("spellCheck", "false")
	return c.app.Endpoint + "/luis/v2.0/apps/" + url.PathEscape(c.app.AppID) + "?" + q.Encode()
}
