package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/kerbaras/mangadl/pkg/config"
	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
	"github.com/kerbaras/mangadl/pkg/integrations"
	"github.com/kerbaras/mangadl/pkg/sources"
	"github.com/kerbaras/mangadl/pkg/utils"
)

// Repository is the part of the library the controller writes to.
type Repository interface {
	SaveManga(manga *data.Manga) error
	RecordOutcome(mangaID string, position int, outcome data.DownloadOutcome) error
}

// BatchRequest describes one download batch.
type BatchRequest struct {
	SourceURL string
	Title     data.Title
	Chapters  []data.ChapterDescriptor
	// Positions are the 1-based positions of Chapters in the full chapter
	// list. When empty, chapters are numbered 1..n.
	Positions []int

	Format           data.Format
	DeleteSources    bool
	MaxConcurrency   int // chapters in flight; 0 uses settings
	ImageConcurrency int // images in flight per chapter; 0 uses settings
	MaxAttempts      int // per image; 0 uses settings
}

// BatchReport is the result of DownloadChapters.
type BatchReport struct {
	BatchID  string
	Title    data.Title
	Outcomes []data.DownloadOutcome
	Elapsed  time.Duration
}

// BatchSummary counts outcomes by result.
type BatchSummary struct {
	Total           int
	Done            int // reached Done
	Failed          int
	Partial         int // Done with some images missing
	Packaged        int
	PackagingFailed int
}

func (r *BatchReport) Summary() BatchSummary {
	s := BatchSummary{Total: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		if !o.Downloaded() {
			s.Failed++
			continue
		}
		s.Done++
		if len(o.FailedItems()) > 0 {
			s.Partial++
		}
		if o.Packaging != nil {
			if o.Packaging.Err == nil {
				s.Packaged++
			} else {
				s.PackagingFailed++
			}
		}
	}
	return s
}

// MangaController ties sources, the download engine and the library
// together.
type MangaController struct {
	settings *config.Settings
	fetcher  fetch.Fetcher
	resolve  func(sourceURL string) (sources.Source, error)
	packager integrations.Packager
	repo     Repository
	progress ProgressFunc
	logger   *log.Logger
}

// ControllerOption configures a MangaController.
type ControllerOption func(*MangaController)

func WithFetcher(f fetch.Fetcher) ControllerOption {
	return func(c *MangaController) { c.fetcher = f }
}

// WithSourceResolver replaces the host based source lookup.
func WithSourceResolver(resolve func(sourceURL string) (sources.Source, error)) ControllerOption {
	return func(c *MangaController) { c.resolve = resolve }
}

func WithPackager(p integrations.Packager) ControllerOption {
	return func(c *MangaController) { c.packager = p }
}

// WithRepository records batch outcomes in the library.
func WithRepository(repo Repository) ControllerOption {
	return func(c *MangaController) { c.repo = repo }
}

func WithProgressFunc(fn ProgressFunc) ControllerOption {
	return func(c *MangaController) { c.progress = fn }
}

func WithLogger(logger *log.Logger) ControllerOption {
	return func(c *MangaController) { c.logger = logger }
}

func NewMangaController(settings *config.Settings, opts ...ControllerOption) *MangaController {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	c := &MangaController{settings: settings, logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		c.fetcher = fetch.NewHTTPFetcher(
			fetch.WithUserAgent(settings.UserAgent),
			fetch.WithRateLimit(settings.RequestsPerSecond),
		)
	}
	if c.resolve == nil {
		c.resolve = func(sourceURL string) (sources.Source, error) {
			return sources.ForURL(sourceURL, c.fetcher, sources.Options{Language: settings.MangaDexLang})
		}
	}
	if c.packager == nil {
		c.packager = integrations.NewArchiver(integrations.ArchiverOptions{PDFMaxPageWidth: settings.PDFMaxPageWidth})
	}
	return c
}

// Discover returns the title and chapters behind sourceURL.
func (c *MangaController) Discover(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error) {
	source, err := c.resolve(sourceURL)
	if err != nil {
		return "", nil, err
	}

	title, chapters, err := source.DiscoverTitleAndChapters(ctx, sourceURL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to discover %s: %w", sourceURL, err)
	}
	c.logger.Info("discovered", "source", source.Name(), "title", title, "chapters", len(chapters))
	return title, chapters, nil
}

// DownloadChapters runs one batch. Per-chapter failures are reported in the
// returned outcomes; the error is only set when the batch could not start.
func (c *MangaController) DownloadChapters(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	if req.Positions != nil && len(req.Positions) != len(req.Chapters) {
		return nil, fmt.Errorf("got %d positions for %d chapters", len(req.Positions), len(req.Chapters))
	}
	source, err := c.resolve(req.SourceURL)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{BatchID: uuid.NewString(), Title: req.Title}
	logger := c.logger.With("batch", report.BatchID[:8])

	chapterThreads := firstPositive(req.MaxConcurrency, c.settings.MaxChapterThreads)
	imageThreads := firstPositive(req.ImageConcurrency, c.settings.ImageThreads())
	attempts := firstPositive(req.MaxAttempts, c.settings.RetryAttempts)

	jobs := c.buildJobs(req)

	mangaID := data.MangaID(req.SourceURL)
	c.saveManga(logger, mangaID, req, "downloading")

	items := NewItemDownloader(c.fetcher,
		WithRetryBaseDelay(time.Duration(c.settings.RetryBaseDelay)),
		WithAttemptTimeout(time.Duration(c.settings.RequestTimeout)),
		WithItemLogger(logger),
	)
	pipeline := NewPipeline(source, NewImageSetDownloader(items, attempts), c.packager,
		WithImageConcurrency(imageThreads),
		WithProgress(c.progress, report.BatchID),
		WithPipelineLogger(logger),
	)

	logger.Info("starting batch", "title", req.Title, "chapters", len(jobs), "chapter_threads", chapterThreads, "image_threads", imageThreads)
	start := time.Now()
	report.Outcomes = NewOrchestrator(pipeline, c.progress, report.BatchID, logger).RunBatch(ctx, jobs, chapterThreads)
	report.Elapsed = time.Since(start)

	c.recordOutcomes(logger, mangaID, req, report)

	summary := report.Summary()
	logger.Info("batch finished", "done", summary.Done, "failed", summary.Failed, "partial", summary.Partial, "elapsed", report.Elapsed.Round(time.Millisecond))
	return report, nil
}

func (c *MangaController) buildJobs(req BatchRequest) []data.DownloadJob {
	root := filepath.Join(c.settings.DownloadPath, utils.SanitizeFilename(string(req.Title)))

	jobs := make([]data.DownloadJob, len(req.Chapters))
	used := make(map[string]bool, len(req.Chapters))
	for i, chapter := range req.Chapters {
		dir := utils.SanitizeFilename(chapter.Name)
		// chapters without a name would otherwise share a directory
		for n := 0; used[dir]; n++ {
			dir = fmt.Sprintf("%s_%d", utils.SanitizeFilename(chapter.Name), position(req, i)+n)
		}
		used[dir] = true

		jobs[i] = data.DownloadJob{
			Chapter:                chapter,
			LocalDir:               filepath.Join(root, dir),
			Format:                 req.Format,
			DeleteSourcesOnSuccess: req.DeleteSources,
		}
	}
	return jobs
}

func (c *MangaController) saveManga(logger *log.Logger, mangaID string, req BatchRequest, status string) {
	if c.repo == nil {
		return
	}
	manga := &data.Manga{ID: mangaID, Name: string(req.Title), SourceURL: req.SourceURL, Status: status}
	if err := c.repo.SaveManga(manga); err != nil {
		logger.Warn("failed to save manga", "err", err)
	}
}

func (c *MangaController) recordOutcomes(logger *log.Logger, mangaID string, req BatchRequest, report *BatchReport) {
	if c.repo == nil {
		return
	}

	status := "completed"
	for i, outcome := range report.Outcomes {
		if !outcome.Succeeded() {
			status = "partial"
		}
		if err := c.repo.RecordOutcome(mangaID, position(req, i), outcome); err != nil {
			logger.Warn("failed to record chapter", "chapter", outcome.ChapterName, "err", err)
		}
	}
	c.saveManga(logger, mangaID, req, status)
}

func position(req BatchRequest, i int) int {
	if len(req.Positions) > i {
		return req.Positions[i]
	}
	return i + 1
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 1
}
