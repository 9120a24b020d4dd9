package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
)

const (
	mangaDexAPI      = "https://api.mangadex.org"
	mangaDexSite     = "https://mangadex.org"
	mangaDexFeedPage = 100
)

var mangaDexUUID = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

type mangaDexManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title     map[string]string   `json:"title"`
		AltTitles []map[string]string `json:"altTitles"`
	} `json:"attributes"`
}

func (m *mangaDexManga) title(lang string) string {
	if t := m.Attributes.Title[lang]; t != "" {
		return t
	}
	if t := m.Attributes.Title["en"]; t != "" {
		return t
	}
	for _, t := range m.Attributes.Title {
		if t != "" {
			return t
		}
	}
	return unknownTitle
}

type mangaDexChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string `json:"title"`
		Language    string `json:"translatedLanguage"`
		Volume      string `json:"volume"`
		Number      string `json:"chapter"`
		Pages       int    `json:"pages"`
		ExternalURL string `json:"externalUrl"`
	} `json:"attributes"`
}

func (c *mangaDexChapter) name() string {
	var parts []string
	if c.Attributes.Volume != "" {
		parts = append(parts, "Vol. "+c.Attributes.Volume)
	}
	if c.Attributes.Number != "" {
		parts = append(parts, "Ch. "+c.Attributes.Number)
	}
	name := strings.Join(parts, " ")
	switch {
	case name == "" && c.Attributes.Title == "":
		return "Oneshot"
	case name == "":
		return c.Attributes.Title
	case c.Attributes.Title != "":
		return name + " - " + c.Attributes.Title
	default:
		return name
	}
}

// MangaDex reads titles through the public MangaDex API.
type MangaDex struct {
	fetcher  fetch.Fetcher
	baseURL  string
	siteURL  string
	language string
}

func NewMangaDex(fetcher fetch.Fetcher, language string) *MangaDex {
	if language == "" {
		language = "en"
	}
	return &MangaDex{fetcher: fetcher, baseURL: mangaDexAPI, siteURL: mangaDexSite, language: language}
}

func (m *MangaDex) Name() string { return "mangadex" }

func (m *MangaDex) get(ctx context.Context, path string, v any) error {
	return fetch.GetJSON(ctx, m.fetcher, m.baseURL+path, v)
}

// mangaDexID extracts the UUID following the given path segment
// ("title" or "chapter").
func mangaDexID(rawURL, segment string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == segment && mangaDexUUID.MatchString(parts[i+1]) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no %s id in %q", segment, rawURL)
}

func (m *MangaDex) DiscoverTitleAndChapters(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error) {
	id, err := mangaDexID(sourceURL, "title")
	if err != nil {
		return "", nil, err
	}

	var manga struct {
		Data mangaDexManga `json:"data"`
	}
	if err := m.get(ctx, "/manga/"+id, &manga); err != nil {
		return "", nil, fmt.Errorf("failed to get manga %s: %w", id, err)
	}

	var chapters []data.ChapterDescriptor
	for offset := 0; ; offset += mangaDexFeedPage {
		query := url.Values{}
		query.Set("translatedLanguage[]", m.language)
		query.Set("order[chapter]", "asc")
		query.Set("limit", fmt.Sprint(mangaDexFeedPage))
		query.Set("offset", fmt.Sprint(offset))

		var feed struct {
			Data  []mangaDexChapter `json:"data"`
			Total int               `json:"total"`
		}
		if err := m.get(ctx, fmt.Sprintf("/manga/%s/feed?%s", id, query.Encode()), &feed); err != nil {
			return "", nil, fmt.Errorf("failed to get chapters of %s: %w", id, err)
		}
		for _, c := range feed.Data {
			// hosted elsewhere, nothing to download
			if c.Attributes.ExternalURL != "" {
				continue
			}
			chapters = append(chapters, data.ChapterDescriptor{
				Name: c.name(),
				URL:  fmt.Sprintf("%s/chapter/%s", m.siteURL, c.ID),
			})
		}
		if len(feed.Data) == 0 || offset+len(feed.Data) >= feed.Total {
			break
		}
	}

	return data.Title(manga.Data.title(m.language)), chapters, nil
}

func (m *MangaDex) DiscoverImages(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error) {
	id, err := mangaDexID(chapterURL, "chapter")
	if err != nil {
		return nil, err
	}

	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.get(ctx, "/at-home/server/"+id, &server); err != nil {
		return nil, fmt.Errorf("failed to get pages of %s: %w", id, err)
	}
	if server.BaseURL == "" {
		return nil, errors.New("at-home server returned no base URL")
	}

	pages := make([]string, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file)
	}
	return data.NewImageDescriptors(pages), nil
}
