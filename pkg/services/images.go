package services

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/utils"
)

// ImageSetDownloader downloads the pages of one chapter with bounded
// concurrency.
type ImageSetDownloader struct {
	items       ItemFetcher
	maxAttempts int
}

func NewImageSetDownloader(items ItemFetcher, maxAttempts int) *ImageSetDownloader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ImageSetDownloader{items: items, maxAttempts: maxAttempts}
}

// DownloadImages fetches every image into chapterDir as page_<ordinal>.<ext>
// running at most limit downloads at once. A failed image never stops the
// others. Results are in the order of images. onItem, when set, is called
// once per finished image with the running count.
//
// A panic in a download is raised again on the calling goroutine once all
// downloads have stopped.
func (s *ImageSetDownloader) DownloadImages(ctx context.Context, images []data.ImageDescriptor, chapterDir, referer string, limit int, onItem func(done, total int)) []data.ItemResult {
	if limit < 1 {
		limit = 1
	}

	results := make([]data.ItemResult, len(images))
	progress := newCounter(len(images))

	var (
		g         errgroup.Group
		panicOnce sync.Once
		panicked  any
	)
	g.SetLimit(limit)

	for i, img := range images {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicked = r })
				}
			}()

			dest := filepath.Join(chapterDir, utils.PageFileName(img.Ordinal, utils.ImageExt(img.URL)))
			attempts, err := s.items.FetchItem(ctx, img.URL, dest, referer, s.maxAttempts)

			results[i] = data.ItemResult{
				Ordinal:   img.Ordinal,
				URL:       img.URL,
				Path:      dest,
				Success:   err == nil,
				Attempts:  attempts,
				LastError: err,
			}

			done := progress.inc()
			if onItem != nil {
				onItem(done, progress.total)
			}
			return nil
		})
	}

	g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	return results
}
