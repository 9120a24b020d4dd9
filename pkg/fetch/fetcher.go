// Package fetch provides the capability used to retrieve remote pages and
// images. A Fetcher is shared by every concurrent download and must be safe
// for concurrent use.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; several manga hosts refuse
// requests from obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ErrStatus is matched by every *StatusError.
var ErrStatus = errors.New("unexpected HTTP status")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Fetcher retrieves the body of url. Timeouts are supplied by the caller
// through ctx. The caller must close the returned body.
type Fetcher interface {
	Fetch(ctx context.Context, url, referer string) (io.ReadCloser, error)
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client  *http.Client
	headers map[string]string
	limiter *rate.Limiter
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the underlying http.Client.
func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = client }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.headers["User-Agent"] = ua
		}
	}
}

// WithHeader sets an extra header sent with every request.
func WithHeader(key, value string) Option {
	return func(f *HTTPFetcher) { f.headers[key] = value }
}

// WithRateLimit caps the number of requests per second across all callers.
// A non-positive value disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(f *HTTPFetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewHTTPFetcher creates a fetcher with browser-like base headers.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			// per-request deadlines come from the context
			Timeout: 0,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) newRequest(ctx context.Context, url, referer string) (*http.Request, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return req, nil
}

// Fetch performs a GET request and returns the response body. Any non-2xx
// status is reported as a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, referer string) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, url, referer)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return resp.Body, nil
}

// GetJSON fetches url with f and decodes the JSON body into v.
func GetJSON(ctx context.Context, f Fetcher, url string, v any) error {
	body, err := f.Fetch(ctx, url, "")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// GetBytes fetches url with f and returns the whole body.
func GetBytes(ctx context.Context, f Fetcher, url, referer string) ([]byte, error) {
	body, err := f.Fetch(ctx, url, referer)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}
