package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/integrations"
	"github.com/kerbaras/mangadl/pkg/utils"
)

var (
	ErrNoImages         = errors.New("no images found")
	ErrAllImagesFailed  = errors.New("all images failed to download")
	ErrDuplicateOrdinal = errors.New("duplicate or invalid image ordinal")
)

// ImageDiscoverer lists the pages of a chapter.
type ImageDiscoverer interface {
	DiscoverImages(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error)
}

// ImageDownloader downloads a set of pages into a directory.
type ImageDownloader interface {
	DownloadImages(ctx context.Context, images []data.ImageDescriptor, chapterDir, referer string, limit int, onItem func(done, total int)) []data.ItemResult
}

// Pipeline takes one chapter from image discovery to a packaged archive.
// A Pipeline is stateless and may run many jobs concurrently.
type Pipeline struct {
	discoverer ImageDiscoverer
	images     ImageDownloader
	packager   integrations.Packager
	imageLimit int
	progress   ProgressFunc
	batchID    string
	logger     *log.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithImageConcurrency caps concurrent page downloads within a chapter.
func WithImageConcurrency(n int) PipelineOption {
	return func(p *Pipeline) { p.imageLimit = n }
}

// WithProgress sets the receiver of per-chapter progress events.
func WithProgress(fn ProgressFunc, batchID string) PipelineOption {
	return func(p *Pipeline) {
		p.progress = fn
		p.batchID = batchID
	}
}

func WithPipelineLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

func NewPipeline(discoverer ImageDiscoverer, images ImageDownloader, packager integrations.Packager, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		discoverer: discoverer,
		images:     images,
		packager:   packager,
		imageLimit: 10,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the state of a single job through the pipeline.
type run struct {
	p       *Pipeline
	job     data.DownloadJob
	logger  *log.Logger
	outcome data.DownloadOutcome
}

func (r *run) transition(state data.State) {
	r.logger.Debug("state", "from", r.outcome.State, "to", state)
	r.outcome.State = state
}

func (r *run) fail(err error) data.DownloadOutcome {
	r.outcome.Err = err
	r.transition(data.StateFailed)
	r.logger.Error("chapter failed", "err", err)
	return r.outcome
}

func (r *run) warn(msg string) {
	r.outcome.Warnings = append(r.outcome.Warnings, msg)
	r.logger.Warn(msg)
}

// Run processes job and returns its outcome. Failures are reported in the
// outcome, never as a panic or error return.
func (p *Pipeline) Run(ctx context.Context, job data.DownloadJob) data.DownloadOutcome {
	r := &run{
		p:      p,
		job:    job,
		logger: p.logger.With("chapter", job.Chapter.Name),
		outcome: data.DownloadOutcome{
			ChapterName: job.Chapter.Name,
			ChapterURL:  job.Chapter.URL,
			LocalDir:    job.LocalDir,
			State:       data.StatePending,
		},
	}

	if err := os.MkdirAll(job.LocalDir, 0755); err != nil {
		return r.fail(fmt.Errorf("failed to create chapter directory: %w", err))
	}

	r.transition(data.StateFetchingImages)
	images, err := p.discoverer.DiscoverImages(ctx, job.Chapter.URL)
	if err != nil {
		return r.fail(fmt.Errorf("failed to discover images: %w", err))
	}
	if len(images) == 0 {
		return r.fail(ErrNoImages)
	}
	if err := checkOrdinals(images); err != nil {
		return r.fail(err)
	}

	r.transition(data.StateDownloading)
	p.progress.emit(data.ProgressEvent{
		BatchID: p.batchID,
		Scope:   data.ScopeChapter,
		Chapter: job.Chapter.Name,
		Total:   len(images),
	})
	r.outcome.Items = p.images.DownloadImages(ctx, images, job.LocalDir, job.Chapter.URL, p.imageLimit, func(done, total int) {
		p.progress.emit(data.ProgressEvent{
			BatchID:   p.batchID,
			Scope:     data.ScopeChapter,
			Chapter:   job.Chapter.Name,
			Completed: done,
			Total:     total,
		})
	})

	succeeded := len(r.outcome.SuccessfulItems())
	if succeeded == 0 {
		return r.fail(fmt.Errorf("%w (%d images)", ErrAllImagesFailed, len(images)))
	}
	if failed := len(images) - succeeded; failed > 0 {
		r.warn(fmt.Sprintf("%d of %d images failed to download", failed, len(images)))
	}

	if job.Format != data.FormatNone && job.Format != "" {
		r.transition(data.StatePackaging)
		r.outcome.Packaging = r.pack()

		if r.outcome.Packaging.Err == nil && job.DeleteSourcesOnSuccess {
			r.transition(data.StateCleanup)
			r.outcome.Cleanup = r.cleanup()
		}
	}

	r.transition(data.StateDone)
	r.logger.Info("chapter done", "images", succeeded, "total", len(images))
	return r.outcome
}

func (r *run) pack() *data.PackagingResult {
	output := filepath.Join(r.job.LocalDir, utils.SanitizeFilename(r.job.Chapter.Name)+"."+r.job.Format.Ext())
	result := &data.PackagingResult{Format: r.job.Format, Path: output}

	var paths []string
	for _, item := range r.outcome.SuccessfulItems() {
		paths = append(paths, item.Path)
	}
	pages := utils.SortPages(paths)

	if err := r.p.packager.Package(pages, output, r.job.Format); err != nil {
		result.Err = fmt.Errorf("failed to package %s: %w", r.job.Format, err)
		r.logger.Error("packaging failed", "format", r.job.Format, "err", err)
		return result
	}

	r.logger.Info("packaged", "format", r.job.Format, "path", output, "pages", len(pages))
	return result
}

func (r *run) cleanup() *data.CleanupResult {
	result := &data.CleanupResult{}
	for _, item := range r.outcome.SuccessfulItems() {
		if err := os.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result.Failures = append(result.Failures, item.Path)
			r.logger.Warn("failed to remove image", "path", item.Path, "err", err)
			continue
		}
		result.Removed++
	}
	return result
}

func checkOrdinals(images []data.ImageDescriptor) error {
	seen := make(map[int]bool, len(images))
	for _, img := range images {
		if img.Ordinal < 1 || seen[img.Ordinal] {
			return fmt.Errorf("%w: %d", ErrDuplicateOrdinal, img.Ordinal)
		}
		seen[img.Ordinal] = true
	}
	return nil
}
