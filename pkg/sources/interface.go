// Package sources discovers titles, chapters and page images on manga
// hosting sites.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
)

// ErrUnsupportedSource is returned by ForURL for hosts no source handles.
var ErrUnsupportedSource = errors.New("unsupported source")

// Source discovers the content of one hosting site.
type Source interface {
	// Name is a short identifier for logs and the library.
	Name() string
	// DiscoverTitleAndChapters returns the title and its chapters, oldest first.
	DiscoverTitleAndChapters(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error)
	// DiscoverImages returns the pages of a chapter in reading order.
	DiscoverImages(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error)
}

// Options tune source construction.
type Options struct {
	// Language for MangaDex chapter feeds. Defaults to "en".
	Language string
}

// ForURL picks the source that understands rawURL.
func ForURL(rawURL string, fetcher fetch.Fetcher, opts Options) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid source URL %q", rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "mangabuddy.com" || strings.HasSuffix(host, ".mangabuddy.com"):
		return NewMangaBuddy(fetcher), nil
	case host == "mangadex.org":
		return NewMangaDex(fetcher, opts.Language), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, u.Host)
	}
}
