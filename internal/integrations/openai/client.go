// Package openai is a focused client for the OpenAI surfaces this
// backend consumes: the Files and Vector Stores APIs that act as the
// document indexing service, and the Responses API that acts as the
// agent runtime.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"docchat-agent/internal/integrations/paramstore"
)

const defaultBaseURL = "https://api.openai.com/v1"

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the OpenAI API. The API key and model name are
// fetched from SSM on first use and reused for the process lifetime.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error

	modelOnce sync.Once
	model     string
	modelErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore.Getter for
// API key and model retrieval.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the API key from SSM on the first call and
// returns the cached result on every subsequent call.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.getter.GetSecret(ctx, c.paramPrefix+"/open-ai-token")
		if c.keyErr != nil {
			c.keyErr = fmt.Errorf("openai: fetch token from paramstore: %w", c.keyErr)
		}
	})
	return c.apiKey, c.keyErr
}

// resolveModel fetches the configured model name from SSM on first use.
func (c *Client) resolveModel(ctx context.Context) (string, error) {
	c.modelOnce.Do(func() {
		c.model, c.modelErr = c.getter.GetParameter(ctx, c.paramPrefix+"/config/openai_model")
		if c.modelErr != nil {
			c.modelErr = fmt.Errorf("openai: fetch model from paramstore: %w", c.modelErr)
		}
	})
	return c.model, c.modelErr
}

// endpointURL joins the configured base URL with an API path like
// "/files" or "/vector_stores/vs_1/files".
func (c *Client) endpointURL(apiPath string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + apiPath
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// do sends an authenticated request and returns the raw response body,
// converting non-2xx statuses into *HTTPStatusError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.String(),
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
