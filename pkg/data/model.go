package data

import (
	"fmt"
	"strings"
)

// Title is the display name of a manga as reported by its source.
type Title string

// ChapterDescriptor identifies one chapter of a manga. Sources return them
// oldest first and nothing downstream reorders them.
type ChapterDescriptor struct {
	Name string
	URL  string
}

// ImageDescriptor is one page of a chapter. Ordinal is the 1-based position
// in the reading order returned by the source.
type ImageDescriptor struct {
	URL     string
	Ordinal int
}

// NewImageDescriptors numbers page URLs in the order given, starting at 1.
func NewImageDescriptors(urls []string) []ImageDescriptor {
	images := make([]ImageDescriptor, len(urls))
	for i, u := range urls {
		images[i] = ImageDescriptor{URL: u, Ordinal: i + 1}
	}
	return images
}

// Format is the archive format a chapter is packaged into.
type Format string

const (
	FormatNone Format = "none"
	FormatPDF  Format = "pdf"
	FormatCBZ  Format = "cbz"
	FormatEPUB Format = "epub"
)

// ParseFormat maps user input to a Format. An empty string means none.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatNone:
		return FormatNone, nil
	case FormatPDF, FormatCBZ, FormatEPUB:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want pdf, cbz, epub or none)", s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatNone {
		return ""
	}
	return string(f)
}

// DownloadJob is the unit of work for one chapter.
type DownloadJob struct {
	Chapter                ChapterDescriptor
	LocalDir               string
	Format                 Format
	DeleteSourcesOnSuccess bool
}

// State is a chapter pipeline state.
type State string

const (
	StatePending        State = "pending"
	StateFetchingImages State = "fetching_images"
	StateDownloading    State = "downloading"
	StatePackaging      State = "packaging"
	StateCleanup        State = "cleanup"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// IsTerminal reports whether the pipeline stops in this state.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ItemResult records the download of a single page.
type ItemResult struct {
	Ordinal   int
	URL       string
	Path      string
	Success   bool
	Attempts  int
	LastError error
}

// PackagingResult records the archive step of a chapter.
type PackagingResult struct {
	Format Format
	Path   string
	Err    error
}

// CleanupResult records removal of source images after packaging.
type CleanupResult struct {
	Removed  int
	Failures []string
}

// DownloadOutcome is the final record of one chapter pipeline run. It is
// written once by the pipeline and only read afterwards.
type DownloadOutcome struct {
	ChapterName string
	ChapterURL  string
	LocalDir    string
	State       State
	Items       []ItemResult
	Packaging   *PackagingResult
	Cleanup     *CleanupResult
	Warnings    []string
	Err         error
}

// Downloaded reports whether the chapter reached Done, whatever happened
// during packaging.
func (o DownloadOutcome) Downloaded() bool {
	return o.State == StateDone
}

// Succeeded reports whether every page was fetched and packaging, when
// requested, worked.
func (o DownloadOutcome) Succeeded() bool {
	if o.State != StateDone || len(o.FailedItems()) > 0 {
		return false
	}
	return o.Packaging == nil || o.Packaging.Err == nil
}

// SuccessfulItems returns the results of pages that were downloaded.
func (o DownloadOutcome) SuccessfulItems() []ItemResult {
	var out []ItemResult
	for _, item := range o.Items {
		if item.Success {
			out = append(out, item)
		}
	}
	return out
}

// FailedItems returns the results of pages that could not be downloaded.
func (o DownloadOutcome) FailedItems() []ItemResult {
	var out []ItemResult
	for _, item := range o.Items {
		if !item.Success {
			out = append(out, item)
		}
	}
	return out
}

// Scope tells whether a progress event concerns one chapter or the batch.
type Scope string

const (
	ScopeChapter Scope = "chapter"
	ScopeBatch   Scope = "batch"
)

// ProgressEvent is an observational progress snapshot.
type ProgressEvent struct {
	BatchID   string
	Scope     Scope
	Chapter   string
	Completed int
	Total     int
}

// Library records

type Manga struct {
	ID        string
	Name      string
	SourceURL string
	Status    string // "downloading", "completed", "partial"
}

type Chapter struct {
	ID          string
	MangaID     string
	Name        string
	URL         string
	Position    int
	Downloaded  bool
	FilePath    string // archive path, or the images directory when not packaged
	Status      string
	ImagesOK    int
	ImagesTotal int
	LastError   string
}
