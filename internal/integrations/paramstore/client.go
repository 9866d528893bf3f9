package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Integrations depend on this interface rather than the concrete *Client so
// they remain testable without real AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// tokenPayload is the JSON shape stored in SSM for every service secret.
type tokenPayload struct {
	Token string `json:"token"`
}

// Secrets resolves `{"token":"..."}` secrets stored under a parameter prefix.
// A secret is fetched on first use and reused for the lifetime of the
// process; a failed fetch is retried on the next call.
type Secrets struct {
	getter Getter
	prefix string

	mu    sync.Mutex
	cache map[string]string
}

// NewSecrets creates a Secrets resolver rooted at prefix.
func NewSecrets(getter Getter, prefix string) (*Secrets, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &Secrets{getter: getter, prefix: prefix, cache: make(map[string]string)}, nil
}

// Secret returns the token stored at <prefix>/<name>.
func (s *Secrets) Secret(ctx context.Context, name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", errors.New("paramstore: secret name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[name]; ok {
		return v, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.prefix+"/"+name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret %q: %w", name, err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret %q as JSON: %w", name, err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("paramstore: secret %q is empty", name)
	}
	s.cache[name] = tp.Token
	return tp.Token, nil
}

// Func adapts one named secret into a lazily resolved key source.
func (s *Secrets) Func(name string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return s.Secret(ctx, name)
	}
}
