package services

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kerbaras/mangadl/pkg/data"
)

// Mock implementations for testing

type mockFetcher struct {
	fetchFunc func(ctx context.Context, url, referer string) (io.ReadCloser, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url, referer string) (io.ReadCloser, error) {
	return m.fetchFunc(ctx, url, referer)
}

type mockItemFetcher struct {
	fetchItemFunc func(ctx context.Context, locator, destPath, referer string, maxAttempts int) (int, error)
}

func (m *mockItemFetcher) FetchItem(ctx context.Context, locator, destPath, referer string, maxAttempts int) (int, error) {
	return m.fetchItemFunc(ctx, locator, destPath, referer, maxAttempts)
}

// writingItemFetcher writes the locator into destPath, failing for the
// listed URLs.
func writingItemFetcher(fail map[string]bool) *mockItemFetcher {
	return &mockItemFetcher{
		fetchItemFunc: func(ctx context.Context, locator, destPath, referer string, maxAttempts int) (int, error) {
			if fail[locator] {
				return maxAttempts, io.ErrUnexpectedEOF
			}
			return 1, os.WriteFile(destPath, []byte(locator), 0644)
		},
	}
}

type mockSource struct {
	discoverFunc       func(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error)
	discoverImagesFunc func(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error)
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) DiscoverTitleAndChapters(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error) {
	if m.discoverFunc != nil {
		return m.discoverFunc(ctx, sourceURL)
	}
	return "", nil, nil
}

func (m *mockSource) DiscoverImages(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error) {
	if m.discoverImagesFunc != nil {
		return m.discoverImagesFunc(ctx, chapterURL)
	}
	return nil, nil
}

type mockPackager struct {
	mu          sync.Mutex
	calls       [][]string
	outputs     []string
	packageFunc func(pages []string, outputPath string, format data.Format) error
}

func (m *mockPackager) Package(pages []string, outputPath string, format data.Format) error {
	m.mu.Lock()
	m.calls = append(m.calls, pages)
	m.outputs = append(m.outputs, outputPath)
	m.mu.Unlock()

	if m.packageFunc != nil {
		return m.packageFunc(pages, outputPath, format)
	}
	return nil
}

type mockRepository struct {
	mu       sync.Mutex
	mangas   []data.Manga
	outcomes map[int]data.DownloadOutcome

	recordOutcomeFunc func(mangaID string, position int, outcome data.DownloadOutcome) error
}

func (m *mockRepository) SaveManga(manga *data.Manga) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mangas = append(m.mangas, *manga)
	return nil
}

func (m *mockRepository) RecordOutcome(mangaID string, position int, outcome data.DownloadOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[int]data.DownloadOutcome{}
	}
	m.outcomes[position] = outcome
	if m.recordOutcomeFunc != nil {
		return m.recordOutcomeFunc(mangaID, position, outcome)
	}
	return nil
}

// highWater tracks the maximum number of concurrent holders.
type highWater struct {
	current atomic.Int64
	max     atomic.Int64
}

func (h *highWater) enter() {
	n := h.current.Add(1)
	for {
		m := h.max.Load()
		if n <= m || h.max.CompareAndSwap(m, n) {
			return
		}
	}
}

func (h *highWater) leave() {
	h.current.Add(-1)
}

func (h *highWater) peak() int {
	return int(h.max.Load())
}

// recordSleeps replaces real backoff sleeps and records the durations.
type recordSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

// events collects progress events from concurrent goroutines.
type events struct {
	mu   sync.Mutex
	list []data.ProgressEvent
}

func (e *events) record(event data.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, event)
}

func (e *events) scope(s data.Scope) []data.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []data.ProgressEvent
	for _, ev := range e.list {
		if ev.Scope == s {
			out = append(out, ev)
		}
	}
	return out
}
