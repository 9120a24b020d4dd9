package sources

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
)

const (
	unknownTitle   = "Unknown Title"
	unknownChapter = "Unknown Chapter"
)

// MangaBuddy scrapes mangabuddy.com pages.
type MangaBuddy struct {
	fetcher fetch.Fetcher
}

func NewMangaBuddy(fetcher fetch.Fetcher) *MangaBuddy {
	return &MangaBuddy{fetcher: fetcher}
}

func (m *MangaBuddy) Name() string { return "mangabuddy" }

func (m *MangaBuddy) page(ctx context.Context, pageURL string) (*html.Node, error) {
	body, err := m.fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func (m *MangaBuddy) DiscoverTitleAndChapters(ctx context.Context, sourceURL string) (data.Title, []data.ChapterDescriptor, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return "", nil, err
	}

	doc, err := m.page(ctx, sourceURL)
	if err != nil {
		return "", nil, err
	}

	title := unknownTitle
	if box := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "name") && hasClass(n, "box")
	}); box != nil {
		if h1 := findFirst(box, isElement(atom.H1)); h1 != nil {
			if text := textContent(h1); text != "" {
				title = text
			}
		}
	}

	var chapters []data.ChapterDescriptor
	list := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Ul && attr(n, "id") == "chapter-list"
	})
	if list != nil {
		for _, a := range findAll(list, isElement(atom.A)) {
			href := attr(a, "href")
			if href == "" {
				continue
			}
			ref, err := base.Parse(href)
			if err != nil {
				continue
			}

			name := unknownChapter
			if strong := findFirst(a, func(n *html.Node) bool {
				return n.DataAtom == atom.Strong && hasClass(n, "chapter-title")
			}); strong != nil {
				if text := textContent(strong); text != "" {
					name = text
				}
			}
			chapters = append(chapters, data.ChapterDescriptor{Name: name, URL: ref.String()})
		}
	}

	// the site lists newest first
	slices.Reverse(chapters)
	return data.Title(title), chapters, nil
}

func (m *MangaBuddy) DiscoverImages(ctx context.Context, chapterURL string) ([]data.ImageDescriptor, error) {
	doc, err := m.page(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	containers := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "chapter-image")
	})
	for _, container := range containers {
		img := findFirst(container, isElement(atom.Img))
		if img == nil {
			continue
		}
		src := attr(img, "data-src")
		if src == "" {
			src = attr(img, "src")
		}
		src = strings.TrimSpace(src)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			urls = append(urls, src)
		}
	}
	return data.NewImageDescriptors(urls), nil
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

// findFirst returns the first descendant of n (in document order) matching.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			out = append(out, c)
		}
		out = append(out, findAll(c, match)...)
	}
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
