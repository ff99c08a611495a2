// Package jushuitan provides a client for the Jushuitan open API platform.
//
// A Client owns the app credentials and the current access token. It obtains
// tokens through the /auth/token endpoint and sends business calls as
// form-encoded envelopes signed with the app secret.
//
//	c, err := jushuitan.New(appKey, appSecret)
//	if err != nil {
//	    return err
//	}
//	if _, err := c.ExchangeToken(ctx, code); err != nil {
//	    return err
//	}
//	res, err := c.Request(ctx, http.MethodPost, "/open/orders/single/query", map[string]any{
//	    "page_index": 1,
//	    "page_size":  50,
//	})
package jushuitan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL is the production open API host.
	DefaultBaseURL = "https://openapi.jushuitan.com"
	// DefaultTimeout is the HTTP timeout used when no client is supplied.
	DefaultTimeout = 30 * time.Second

	tokenPath          = "/auth/token"
	tracerName         = "github.com/donaldgifford/jushuitan-go/pkg/jushuitan"
	formContentType    = "application/x-www-form-urlencoded"
	bizContentType     = "application/x-www-form-urlencoded;charset=UTF-8"
	maxErrorBodyLength = 512
)

// Client is a Jushuitan open API client. It is safe for concurrent use, but
// overlapping token updates are last-writer-wins.
type Client struct {
	appKey    string
	appSecret string

	baseURL  string
	timeout  time.Duration
	client   *http.Client
	headers  map[string]string
	nowFunc  func() time.Time
	provider trace.TracerProvider
	tracer   trace.Tracer

	mu          sync.RWMutex
	accessToken string
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the default API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout overrides the default HTTP timeout. Ignored when
// WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithHeaders adds headers to every outgoing request. Content-Type is always
// set by the client.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = f
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.provider = tp
	}
}

// New creates a new client for the given app credentials.
func New(appKey, appSecret string, opts ...Option) (*Client, error) {
	if appKey == "" {
		return nil, newConfigurationError("app key must be set")
	}
	if appSecret == "" {
		return nil, newConfigurationError("app secret must be set")
	}

	c := &Client{
		appKey:    appKey,
		appSecret: appSecret,
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		headers:   make(map[string]string),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	if c.provider == nil {
		c.provider = otel.GetTracerProvider()
	}
	c.tracer = c.provider.Tracer(tracerName)

	return c, nil
}

// AppKey returns the app key the client was created with.
func (c *Client) AppKey() string {
	return c.appKey
}

// SetAccessToken replaces the current access token. The token is not
// validated; an invalid token surfaces as an API error on the next request.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the current access token and whether one is set.
func (c *Client) AccessToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.accessToken != ""
}

// post sends a form-encoded request and validates the response envelope.
func (c *Client) post(
	ctx context.Context,
	method, path, contentType string,
	form url.Values,
) (Result, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.resolve(path),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, newTransportError(0, "creating request: "+err.Error(), err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, newTransportError(0, err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(0, "reading response body: "+err.Error(), err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newTransportError(
			resp.StatusCode,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), maxErrorBodyLength)),
			nil,
		)
	}

	return parseResult(body)
}

// resolve joins path onto the base URL. Absolute URLs are used unchanged.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
