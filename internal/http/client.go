package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrRateLimited  = errors.New("http: rate limited")
	ErrServerError  = errors.New("http: server error")
)

// UserAgent is sent with every request.
const UserAgent = "mapmaker"

// Options configures the HTTP client.
type Options struct {
	// Timeout for individual requests, including reading the body.
	// Zero means no timeout.
	Timeout time.Duration

	// RetryAttempts is the total number of attempts per request.
	// Values below 1 are treated as 1.
	RetryAttempts int

	// RetryBackoff is the delay before the second attempt. It doubles with
	// every further attempt.
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the delay between attempts, including delays
	// requested by the server with Retry-After.
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		RetryAttempts:   5,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
	}
}

// FileInfo contains metadata about a remote file.
type FileInfo struct {
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Client fetches source bundles over HTTP.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				// Bundles are zip files already.
				DisableCompression: true,
			},
			Timeout: opts.Timeout,
		},
		opts: opts,
	}
}

// Head returns metadata about the resource at url.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	info := &FileInfo{
		Size:        resp.ContentLength,
		ETag:        cleanETag(resp.Header.Get("ETag")),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		info.LastModified = t
	}
	return info, nil
}

// Get returns the body of the resource at url. The caller must close it.
// Only establishing the response is retried, not reading the body.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do sends the request until it gets a 2xx response, a non-retryable status,
// or runs out of attempts.
func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	var (
		lastErr error
		delay   time.Duration
	)

	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		delay = c.backoff(attempt)

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
			if d := retryAfter(resp.Header.Get("Retry-After")); d > 0 {
				delay = c.clamp(d)
			}
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %s", ErrServerError, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, url, c.opts.RetryAttempts, lastErr)
}

// backoff returns the jittered delay to wait after the given attempt.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBackoff << uint(attempt-1)
	// Jitter between 0.5x and 1.5x.
	return c.clamp(time.Duration(float64(d) * (0.5 + rand.Float64())))
}

func (c *Client) clamp(d time.Duration) time.Duration {
	if c.opts.RetryMaxBackoff > 0 && d > c.opts.RetryMaxBackoff {
		return c.opts.RetryMaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// checkStatusCode maps non-retryable status codes to errors.
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
		return fmt.Errorf("http: unexpected status code %d", code)
	}
}

func cleanETag(etag string) string {
	return strings.Trim(strings.TrimPrefix(etag, "W/"), `"`)
}
