package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/manta"
	"github.com/sagarc03/manta/metrics"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultListLimit is the page size requested by List.
	DefaultListLimit = 1024

	// maxErrorBody bounds how much of an error response is buffered.
	maxErrorBody = 1 << 20
)

// Client performs operations against the storage and compute service.
// It is safe for concurrent use.
type Client struct {
	endpoint       *url.URL
	user           string
	sign           manta.SignFunc
	httpClient     *http.Client
	headers        http.Header
	log            *slog.Logger
	metrics        *metrics.Metrics
	strictTrailers bool
	concurrency    int
	now            func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithUser sets the account whose namespace relative paths resolve into.
func WithUser(user string) Option {
	return func(c *Client) {
		c.user = user
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger operations derive their request loggers from.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetrics records request, stream and delete accounting into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHeaders adds headers sent with every request. Per call headers win.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
}

// WithStrictTrailers treats an event stream that ends without a stream
// trailer as failed.
func WithStrictTrailers(strict bool) Option {
	return func(c *Client) {
		c.strictTrailers = strict
	}
}

// WithConcurrency bounds the number of requests RemoveAll keeps in flight.
// Zero means unbounded.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithClock sets the time source used for the date header.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Client for the service at endpoint. Every request is signed
// with sign over its date header.
func New(endpoint string, sign manta.SignFunc, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if sign == nil {
		return nil, ErrSignerRequired
	}

	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse endpoint %q: scheme and host are required", endpoint)
	}

	c := &Client{
		endpoint:   u,
		sign:       sign,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    http.Header{},
		log:        slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// User returns the namespace owner relative paths resolve into.
func (c *Client) User() string { return c.user }

func (c *Client) String() string {
	return fmt.Sprintf("MantaClient<url=%s, user=%s>", c.endpoint, c.user)
}

// resolve maps a logical path into the client's namespace.
func (c *Client) resolve(p string) manta.Path {
	return manta.ResolvePath(p, c.user)
}

func (c *Client) requestLogger(op string, env *envelope) *slog.Logger {
	return c.log.With("op", op, "path", env.path, "req_id", env.id)
}

// do signs and sends one request built from env. Non-2xx responses are
// drained, closed and returned as *manta.RemoteError. On success the caller
// owns the response body.
func (c *Client) do(ctx context.Context, op, method string, env *envelope, body io.Reader) (*http.Response, error) {
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(env), body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	for k, v := range env.header {
		req.Header[k] = append([]string(nil), v...)
	}
	if env.contentLength >= 0 {
		req.ContentLength = env.contentLength
		if env.contentLength == 0 {
			req.Body = http.NoBody
		}
	}

	if err := manta.SignRequest(ctx, req, c.sign); err != nil {
		return nil, err
	}

	done := c.metrics.StartRequest(op)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		done(0)
		return nil, &manta.TransportError{Op: op, Err: err}
	}
	done(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, readRemoteError(resp)
	}
	return resp, nil
}

func (c *Client) url(env *envelope) string {
	u := *c.endpoint
	u.Path = c.endpoint.Path + env.path
	u.RawPath = ""
	u.RawQuery = env.query.Encode()
	return u.String()
}

// errorBody is the JSON error document the service sends with non-2xx responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func readRemoteError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		raw = nil
	}

	var body errorBody
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return manta.NewRemoteError(resp.StatusCode, body.Code, body.Message, raw)
}

// discard drains and closes a response body the caller has no use for.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
