package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 64
	MaxIdleConnsPerHost int

	// HeaderTimeout bounds the wait for response headers. Bodies are not
	// bounded so slow large transfers are never cut off.
	// Default: 30s
	HeaderTimeout time.Duration

	// RetryAttempts is the maximum number of retry attempts for metadata
	// requests made through Get and GetJSON.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 15s
	RetryMaxBackoff time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// FileRoot enables file:// URLs for absolute paths under this
	// directory. Installer-embedded artifacts are served this way. Empty
	// disables the file scheme.
	FileRoot string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 64,
		HeaderTimeout:       30 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     15 * time.Second,
		UserAgent:           "miocore/1.0",
	}
}

// Response is an open response body.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
}

// Client is an HTTP client tuned for many concurrent artifact downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.HeaderTimeout,
	}
	if opts.FileRoot != "" {
		root, err := filepath.Abs(opts.FileRoot)
		if err != nil {
			root = filepath.Clean(opts.FileRoot)
		}
		transport.RegisterProtocol("file", &fileTransport{
			root: root,
			next: http.NewFileTransport(http.Dir(root)),
		})
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Open performs a single GET and returns the open body. It never retries;
// callers that walk candidate URLs own their retry policy.
func (c *Client) Open(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrServerError, resp.Status)
	}
	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &Response{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

// Get performs a GET with retry on transport and server errors.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.Open(ctx, url)
		if err == nil {
			return resp.Body, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("get request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetJSONFirst tries each URL in order and decodes the first success.
func (c *Client) GetJSONFirst(ctx context.Context, urls []string, v any) error {
	var errs []error
	for _, u := range urls {
		err := c.GetJSON(ctx, u, v)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// retryable reports whether a failed request is worth repeating.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return false
	default:
		return true
	}
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// fileTransport serves file:// URLs whose absolute path lies under root and
// refuses everything else with ErrForbidden.
type fileTransport struct {
	root string
	next http.RoundTripper
}

func (t *fileTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	p := filepath.Clean(filepath.FromSlash(req.URL.Path))
	rel, err := filepath.Rel(t.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrForbidden, req.URL.Path, t.root)
	}
	r := req.Clone(req.Context())
	r.URL.Path = "/" + filepath.ToSlash(rel)
	return t.next.RoundTrip(r)
}

// IsFileURL reports whether url uses the file scheme.
func IsFileURL(url string) bool {
	return strings.HasPrefix(url, "file://")
}
