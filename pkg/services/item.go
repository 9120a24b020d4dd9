package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kerbaras/mangadl/pkg/fetch"
)

var errEmptyBody = errors.New("empty response body")

const (
	DefaultRetryBaseDelay = time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// ItemFetcher downloads one remote resource to a local path.
type ItemFetcher interface {
	FetchItem(ctx context.Context, locator, destPath, referer string, maxAttempts int) (int, error)
}

// ItemDownloader fetches single files with retries and exponential backoff.
type ItemDownloader struct {
	fetcher   fetch.Fetcher
	baseDelay time.Duration
	timeout   time.Duration
	logger    *log.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// ItemOption configures an ItemDownloader.
type ItemOption func(*ItemDownloader)

// WithRetryBaseDelay sets the delay before the second attempt. Every
// following attempt waits twice as long as the previous one.
func WithRetryBaseDelay(d time.Duration) ItemOption {
	return func(i *ItemDownloader) { i.baseDelay = d }
}

// WithAttemptTimeout bounds a single attempt.
func WithAttemptTimeout(d time.Duration) ItemOption {
	return func(i *ItemDownloader) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithItemLogger(logger *log.Logger) ItemOption {
	return func(i *ItemDownloader) { i.logger = logger }
}

func NewItemDownloader(fetcher fetch.Fetcher, opts ...ItemOption) *ItemDownloader {
	d := &ItemDownloader{
		fetcher:   fetcher,
		baseDelay: DefaultRetryBaseDelay,
		timeout:   DefaultAttemptTimeout,
		logger:    log.Default(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the wait before attempt k (0-indexed).
func (d *ItemDownloader) backoff(k int) time.Duration {
	if k <= 0 {
		return 0
	}
	return d.baseDelay * time.Duration(1<<(k-1))
}

// FetchItem downloads locator into destPath, making up to maxAttempts
// attempts. It returns the number of attempts made. On error destPath does
// not exist, even if an earlier run left a file there.
func (d *ItemDownloader) FetchItem(ctx context.Context, locator, destPath, referer string, maxAttempts int) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for k := 0; k < maxAttempts; k++ {
		if k > 0 {
			if err := d.sleep(ctx, d.backoff(k)); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		err := d.attempt(ctx, locator, destPath, referer)
		if err == nil {
			return attempts, nil
		}
		lastErr = err
		d.logger.Warn("download attempt failed", "url", locator, "attempt", attempts, "max", maxAttempts, "err", err)

		if ctx.Err() != nil {
			break
		}
	}

	if err := os.Remove(destPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove stale page", "path", destPath, "err", err)
	}
	return attempts, fmt.Errorf("failed to download %s after %d attempts: %w", locator, attempts, lastErr)
}

func (d *ItemDownloader) attempt(ctx context.Context, locator, destPath, referer string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := d.fetcher.Fetch(ctx, locator, referer)
	if err != nil {
		return err
	}
	defer body.Close()

	part := destPath + ".part"
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = errEmptyBody
	}
	if err == nil {
		err = os.Rename(part, destPath)
	}
	if err != nil {
		os.Remove(part)
		return err
	}
	return nil
}
