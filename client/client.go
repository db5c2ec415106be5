package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/apiclient/adapters/store"
	"github.com/layer-3/apiclient/adapters/tokenizer"
	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/ports"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	DefaultRefreshPath = "/auth/token/refresh/"
	DefaultLoginPath   = "/auth/token/"
	DefaultTimeout     = 30 * time.Second
)

// Client is the gateway every backend call goes through
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       ports.CredentialStore
	inspector   ports.TokenInspector
	onExpired   ports.SessionExpiredHandler
	coordinator *Coordinator
	headers     http.Header
	logger      zerolog.Logger
	timeout     time.Duration

	refreshPath string
	loginPath   string
	logoutPath  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport. Its Timeout bounds every call unless
// WithTimeout is given. The client is copied, never modified.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSessionExpiredHandler sets the side effect fired once per failed renewal
func WithSessionExpiredHandler(handler ports.SessionExpiredHandler) Option {
	return func(c *Client) {
		c.onExpired = handler
	}
}

// WithDefaultHeader adds a header sent with every request unless overridden per call
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

func WithLoginPath(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

// WithLogoutPath enables the best-effort logout notification
func WithLogoutPath(path string) Option {
	return func(c *Client) {
		c.logoutPath = path
	}
}

func WithTokenInspector(inspector ports.TokenInspector) Option {
	return func(c *Client) {
		c.inspector = inspector
	}
}

// New creates a client for the backend at baseURL using credentials from s
func New(baseURL string, s ports.CredentialStore, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", baseURL)
	}
	if s == nil {
		return nil, errors.New("credential store is required")
	}

	c := &Client{
		baseURL:     strings.TrimRight(trimmed, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		store:       s,
		inspector:   tokenizer.NewInspector(),
		headers:     http.Header{"Accept": []string{"application/json"}},
		logger:      zerolog.Nop(),
		refreshPath: DefaultRefreshPath,
		loginPath:   DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		return nil, errors.New("http client is required")
	}
	httpClient := *c.httpClient
	if c.timeout > 0 {
		httpClient.Timeout = c.timeout
	}
	c.httpClient = &httpClient

	c.coordinator = NewCoordinator(s, RenewerFunc(c.renew), c.onExpired, c.logger)
	if c.httpClient.Timeout > 0 {
		c.coordinator.timeout = c.httpClient.Timeout
	}
	return c, nil
}

// Coordinator exposes the refresh coordinator, mostly for inspection
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// DoJSON performs req and decodes a successful JSON body into out
func (c *Client) DoJSON(ctx context.Context, req *core.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return core.Normalize(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: http.MethodPost, Path: path, JSON: body})
}

func (c *Client) Put(ctx context.Context, path string, body any) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: http.MethodPut, Path: path, JSON: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: http.MethodPatch, Path: path, JSON: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: http.MethodDelete, Path: path})
}

// Upload sends a multipart form. The boundary is negotiated by the encoder.
func (c *Client) Upload(ctx context.Context, method, path string, form *core.Multipart) (*core.Response, error) {
	return c.Do(ctx, &core.Request{Method: method, Path: path, Multipart: form})
}

// TokenSource exposes the current session to oauth2 based code
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return store.TokenSource(ctx, c.store, c.inspector)
}
