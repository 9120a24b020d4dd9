package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangadl/pkg/data"
	"github.com/kerbaras/mangadl/pkg/fetch"
)

const titlePage = `<html><body>
<div class="name box"><h1>  Codename
  Anastasia </h1></div>
<ul class="chapter-list" id="chapter-list">
  <li><a href="/codename-anastasia/chapter-3"><strong class="chapter-title">Chapter 3</strong></a></li>
  <li><a href="/codename-anastasia/chapter-2"><strong class="chapter-title">Chapter 2</strong></a></li>
  <li><a href="/codename-anastasia/chapter-1"><span>no title</span></a></li>
  <li><a>missing href</a></li>
</ul>
</body></html>`

const chapterPage = `<html><body>
<div class="chapter-image"><img data-src="https://cdn.example/1.jpg" src="/lazy.gif"></div>
<div class="chapter-image"><img src="https://cdn.example/2.png"></div>
<div class="chapter-image"><img src="/relative.png"></div>
<div class="chapter-image"></div>
<div class="chapter-image extra"><img data-src="http://cdn.example/3.webp"></div>
</body></html>`

func TestMangaBuddy_DiscoverTitleAndChapters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, titlePage)
	}))
	defer server.Close()

	mb := NewMangaBuddy(fetch.NewHTTPFetcher())
	title, chapters, err := mb.DiscoverTitleAndChapters(context.Background(), server.URL+"/codename-anastasia")
	require.NoError(t, err)

	assert.Equal(t, data.Title("Codename Anastasia"), title)
	assert.Equal(t, []data.ChapterDescriptor{
		{Name: unknownChapter, URL: server.URL + "/codename-anastasia/chapter-1"},
		{Name: "Chapter 2", URL: server.URL + "/codename-anastasia/chapter-2"},
		{Name: "Chapter 3", URL: server.URL + "/codename-anastasia/chapter-3"},
	}, chapters)
}

func TestMangaBuddy_UnknownTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer server.Close()

	title, chapters, err := NewMangaBuddy(fetch.NewHTTPFetcher()).DiscoverTitleAndChapters(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, data.Title(unknownTitle), title)
	assert.Empty(t, chapters)
}

func TestMangaBuddy_DiscoverImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chapterPage)
	}))
	defer server.Close()

	images, err := NewMangaBuddy(fetch.NewHTTPFetcher()).DiscoverImages(context.Background(), server.URL+"/chapter-1")
	require.NoError(t, err)

	assert.Equal(t, []data.ImageDescriptor{
		{URL: "https://cdn.example/1.jpg", Ordinal: 1},
		{URL: "https://cdn.example/2.png", Ordinal: 2},
		{URL: "http://cdn.example/3.webp", Ordinal: 3},
	}, images)
}

func TestMangaBuddy_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewMangaBuddy(fetch.NewHTTPFetcher()).DiscoverImages(context.Background(), server.URL)
	assert.ErrorIs(t, err, fetch.ErrStatus)
}

func TestForURL(t *testing.T) {
	f := fetch.NewHTTPFetcher()

	src, err := ForURL("https://mangabuddy.com/codename-anastasia", f, Options{})
	require.NoError(t, err)
	assert.Equal(t, "mangabuddy", src.Name())

	src, err = ForURL("https://www.mangadex.org/title/"+narutoID, f, Options{Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, "mangadex", src.Name())
	assert.Equal(t, "es", src.(*MangaDex).language)

	_, err = ForURL("https://example.com/manga", f, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = ForURL("not a url", f, Options{})
	assert.Error(t, err)
}
