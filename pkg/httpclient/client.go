// Package httpclient provides the retried HTTP client used for all traffic
// against the remote dataset service. JSON endpoints get typed decoding
// that rejects content-type mismatches; payload downloads get a separate
// streaming client with a long timeout.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"time"

	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/errors"
)

// Transport-level errors.
var (
	ErrNotFound     = stderrors.New("httpclient: resource not found")
	ErrForbidden    = stderrors.New("httpclient: access forbidden")
	ErrUnauthorized = stderrors.New("httpclient: unauthorized")
	ErrServerError  = stderrors.New("httpclient: server error")
)

// Options configures the HTTP client.
type Options struct {
	// Timeout for JSON API requests.
	// Default: 30s
	Timeout time.Duration

	// StreamTimeout bounds a whole payload download. Payloads can be
	// gigabytes, so this is deliberately long.
	// Default: 600s
	StreamTimeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// UserAgent sent with every request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		StreamTimeout:   600 * time.Second,
		RetryAttempts:   5,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
		UserAgent:       "clmsfetch/1.0",
	}
}

// Client performs retried, typed HTTP requests.
type Client struct {
	client *http.Client
	stream *http.Client
	opts   Options
}

// NewClient creates a new client with the given options. Zero-valued
// option fields fall back to defaults.
func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = defaults.StreamTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = defaults.RetryMaxBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		stream: &http.Client{Timeout: opts.StreamTimeout},
		opts:   opts,
	}
}

// GetJSON performs a retried GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, a auth.Authenticator, out any) error {
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, url, a, nil, "")
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeJSON(resp, out)
}

// PostJSON performs a retried POST with a JSON body and decodes the JSON
// response into out.
func (c *Client) PostJSON(ctx context.Context, url string, a auth.Authenticator, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}
	resp, err := c.doRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, a, bytes.NewReader(payload), "application/json")
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeJSON(resp, out)
}

// GetStream performs a single GET using the long-timeout streaming client
// and returns the response body. No retries happen here; the download
// layer owns retry policy for payload transfers.
func (c *Client) GetStream(ctx context.Context, url string, a auth.Authenticator) (io.ReadCloser, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, a, nil, "")
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if err := checkStatusCode(resp.StatusCode); err != nil {
		_ = resp.Body.Close()
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, a auth.Authenticator, body io.Reader, contentType string) (*http.Request, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a != nil {
		if err := a.Apply(req); err != nil {
			return nil, errors.Wrap(err, "failed to apply authentication")
		}
	}
	return req, nil
}

// doRetry runs the request, retrying transport failures and 5xx responses
// with exponential backoff and jitter.
func (c *Client) doRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// decodeJSON decodes a response body into out, rejecting non-JSON bodies.
// Requesting JSON decoding of a text/plain body is a hard error, never a
// silent coercion.
func decodeJSON(resp *http.Response, out any) error {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.Wrapf(errors.ErrProtocol, "expected application/json response, got %q", resp.Header.Get("Content-Type"))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.ErrProtocol, err.Error())
	}
	return nil
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
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
