package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangadl/pkg/fetch"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestItemDownloader(f fetch.Fetcher, sleeps *recordSleeps) *ItemDownloader {
	d := NewItemDownloader(f, WithRetryBaseDelay(100*time.Millisecond), WithItemLogger(quietLogger()))
	d.sleep = sleeps.sleep
	return d
}

func TestFetchItem_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.com/chapter-1", r.Header.Get("Referer"))
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	sleeps := &recordSleeps{}
	d := newTestItemDownloader(fetch.NewHTTPFetcher(), sleeps)
	dest := filepath.Join(t.TempDir(), "page_1.png")

	attempts, err := d.FetchItem(context.Background(), server.URL+"/1.png", dest, "https://example.com/chapter-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeps.delays, "no sleep before the first attempt")

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(content))
	assert.NoFileExists(t, dest+".part")
}

func TestFetchItem_RetriesWithBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	sleeps := &recordSleeps{}
	d := newTestItemDownloader(fetch.NewHTTPFetcher(), sleeps)
	dest := filepath.Join(t.TempDir(), "page_1.png")

	attempts, err := d.FetchItem(context.Background(), server.URL, dest, "", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeps.delays)
	assert.FileExists(t, dest)
}

func TestFetchItem_Exhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sleeps := &recordSleeps{}
	d := newTestItemDownloader(fetch.NewHTTPFetcher(), sleeps)
	dest := filepath.Join(t.TempDir(), "page_1.png")

	attempts, err := d.FetchItem(context.Background(), server.URL, dest, "", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrStatus)

	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	assert.Equal(t, 4, attempts)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, sleeps.delays)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestFetchItem_EmptyBodyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	d := newTestItemDownloader(fetch.NewHTTPFetcher(), &recordSleeps{})
	dest := filepath.Join(t.TempDir(), "page_1.png")

	attempts, err := d.FetchItem(context.Background(), server.URL, dest, "", 2)
	assert.ErrorIs(t, err, errEmptyBody)
	assert.Equal(t, 2, attempts)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestFetchItem_FailureRemovesStalePage(t *testing.T) {
	f := &mockFetcher{fetchFunc: func(context.Context, string, string) (io.ReadCloser, error) {
		return nil, errors.New("connection refused")
	}}
	d := newTestItemDownloader(f, &recordSleeps{})
	dest := filepath.Join(t.TempDir(), "page_2.png")
	require.NoError(t, os.WriteFile(dest, []byte("from an earlier run"), 0644))

	attempts, err := d.FetchItem(context.Background(), "https://example.com/2.png", dest, "", 2)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoFileExists(t, dest)
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestFetchItem_BrokenStreamRemovesPartial(t *testing.T) {
	f := &mockFetcher{fetchFunc: func(ctx context.Context, url, referer string) (io.ReadCloser, error) {
		return io.NopCloser(&failingReader{}), nil
	}}
	d := newTestItemDownloader(f, &recordSleeps{})
	dest := filepath.Join(t.TempDir(), "page_1.png")

	attempts, err := d.FetchItem(context.Background(), "https://example.com/1.png", dest, "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 1, attempts)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestFetchItem_AttemptTimeout(t *testing.T) {
	f := &mockFetcher{fetchFunc: func(ctx context.Context, url, referer string) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	d := NewItemDownloader(f, WithAttemptTimeout(20*time.Millisecond), WithRetryBaseDelay(0), WithItemLogger(quietLogger()))

	start := time.Now()
	attempts, err := d.FetchItem(context.Background(), "https://example.com/slow.png", filepath.Join(t.TempDir(), "x.png"), "", 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, attempts)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchItem_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	f := &mockFetcher{fetchFunc: func(context.Context, string, string) (io.ReadCloser, error) {
		cancel()
		return nil, errors.New("boom")
	}}
	d := NewItemDownloader(f, WithRetryBaseDelay(time.Hour), WithItemLogger(quietLogger()))

	attempts, err := d.FetchItem(ctx, "https://example.com/1.png", filepath.Join(t.TempDir(), "x.png"), "", 5)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestFetchItem_AtLeastOneAttempt(t *testing.T) {
	f := &mockFetcher{fetchFunc: func(context.Context, string, string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("x"))), nil
	}}
	d := newTestItemDownloader(f, &recordSleeps{})

	attempts, err := d.FetchItem(context.Background(), "https://example.com/1.png", filepath.Join(t.TempDir(), "x.png"), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestBackoff(t *testing.T) {
	d := NewItemDownloader(nil, WithRetryBaseDelay(time.Second))
	assert.Equal(t, time.Duration(0), d.backoff(0))
	assert.Equal(t, time.Second, d.backoff(1))
	assert.Equal(t, 2*time.Second, d.backoff(2))
	assert.Equal(t, 4*time.Second, d.backoff(3))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
