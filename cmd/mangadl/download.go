package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangadl/pkg/app"
	"github.com/kerbaras/mangadl/pkg/app/components"
	"github.com/kerbaras/mangadl/pkg/app/styles"
	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/services"
)

var downloadCmd = &cobra.Command{
	Use:   "download <manga-url>",
	Short: "Download manga chapters",
	Long: `Download chapters of a manga and optionally package each one as a PDF, CBZ or EPUB.

Chapters are numbered from 1 in reading order. Select them with --chapters:
  all        every chapter (default)
  5          a single chapter
  3-7        an inclusive range
  1,4,10-12  any combination`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sourceURL := args[0]
		flags := cmd.Flags()

		chaptersFlag, _ := flags.GetString("chapters")
		formatFlag, _ := flags.GetString("format")
		useTUI, _ := flags.GetBool("tui")

		if !flags.Changed("format") {
			formatFlag = settings.DefaultFormat
		}
		format, err := data.ParseFormat(formatFlag)
		cobra.CheckErr(err)

		deleteSources := settings.DeleteImagesAfterConversion
		if flags.Changed("delete") {
			deleteSources, _ = flags.GetBool("delete")
		}
		if flags.Changed("output") {
			settings.DownloadPath, _ = flags.GetString("output")
		}
		if flags.Changed("retries") {
			settings.RetryAttempts, _ = flags.GetInt("retries")
		}
		chapterThreads, _ := flags.GetInt("chapter-threads")
		imageThreads, _ := flags.GetInt("image-threads")
		cobra.CheckErr(settings.Validate())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if useTUI {
			logFile, err := logToFile()
			cobra.CheckErr(err)
			defer logFile.Close()
		}

		repo := openLibrary()
		if repo != nil {
			defer repo.Close()
		}

		progress := &progressSink{}
		opts := []services.ControllerOption{
			services.WithLogger(logger),
			services.WithProgressFunc(progress.emit),
		}
		if repo != nil {
			opts = append(opts, services.WithRepository(repo))
		}
		controller := services.NewMangaController(settings, opts...)

		fmt.Printf("🔍 Fetching %s\n", sourceURL)
		title, chapters, err := controller.Discover(ctx, sourceURL)
		cobra.CheckErr(err)
		if len(chapters) == 0 {
			cobra.CheckErr(fmt.Errorf("no chapters found for %s", sourceURL))
		}

		indexes, err := services.SelectChapterIndexes(len(chapters), chaptersFlag)
		cobra.CheckErr(err)

		req := services.BatchRequest{
			SourceURL:        sourceURL,
			Title:            title,
			Format:           format,
			DeleteSources:    deleteSources,
			MaxConcurrency:   chapterThreads,
			ImageConcurrency: imageThreads,
		}
		for _, i := range indexes {
			req.Chapters = append(req.Chapters, chapters[i])
			req.Positions = append(req.Positions, i+1)
		}

		fmt.Printf("📚 %s: downloading %d of %d chapters\n", title, len(req.Chapters), len(chapters))

		var report *services.BatchReport
		if useTUI {
			ui := app.NewApp(title, len(req.Chapters))
			progress.set(ui.Progress())
			report, err = ui.Run(ctx, func(ctx context.Context) (*services.BatchReport, error) {
				return controller.DownloadChapters(ctx, req)
			})
		} else {
			bar := newBatchBar(len(req.Chapters))
			progress.set(bar.emit)
			report, err = controller.DownloadChapters(ctx, req)
			bar.Finish()
			fmt.Println()
		}
		cobra.CheckErr(err)

		printReport(report)

		if failed := report.Summary().Failed; failed > 0 {
			cobra.CheckErr(fmt.Errorf("%d of %d chapters failed", failed, len(report.Outcomes)))
		}
	},
}

func init() {
	flags := downloadCmd.Flags()
	flags.StringP("chapters", "c", "all", "chapters to download (e.g. 1-10 or 1,3,5)")
	flags.StringP("format", "f", "", "archive format: pdf, cbz, epub or none (default from settings)")
	flags.BoolP("delete", "d", false, "delete images after packaging")
	flags.Int("chapter-threads", 0, "chapters downloaded at once (default from settings)")
	flags.Int("image-threads", 0, "images downloaded at once per chapter (default from settings)")
	flags.Int("retries", 0, "attempts per image (default from settings)")
	flags.StringP("output", "o", "", "download directory (default from settings)")
	flags.Bool("tui", false, "show the interactive progress screen")
}

// progressSink lets the progress receiver be chosen after the controller
// is built.
type progressSink struct {
	fn services.ProgressFunc
}

func (p *progressSink) set(fn services.ProgressFunc) { p.fn = fn }

func (p *progressSink) emit(event data.ProgressEvent) {
	if p.fn != nil {
		p.fn(event)
	}
}

type batchBar struct {
	*progressbar.ProgressBar
}

func newBatchBar(chapters int) *batchBar {
	return &batchBar{progressbar.NewOptions(chapters,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("chapters"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *batchBar) emit(event data.ProgressEvent) {
	switch event.Scope {
	case data.ScopeBatch:
		if event.Completed > 0 {
			b.Set(event.Completed)
		}
	case data.ScopeChapter:
		if event.Total > 0 {
			b.Describe(fmt.Sprintf("%s %d/%d", event.Chapter, event.Completed, event.Total))
		}
	}
}

func printReport(report *services.BatchReport) {
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("%-30s %s", o.ChapterName, components.OutcomeLabel(o))
		if o.Packaging != nil && o.Packaging.Err == nil {
			line += "  → " + o.Packaging.Path
		}
		fmt.Println(styles.OutcomeStyle(o).Render(line))
		if msg := components.OutcomeError(o); msg != "" {
			fmt.Println(styles.MutedStyle.Render("    " + msg))
		}
		for _, w := range o.Warnings {
			fmt.Println(styles.MutedStyle.Render("    " + w))
		}
	}

	s := report.Summary()
	fmt.Printf("\n✅ %d done, %d partial, %d failed, %d packaged in %s\n",
		s.Done, s.Partial, s.Failed, s.Packaged, report.Elapsed.Round(time.Millisecond))
}
