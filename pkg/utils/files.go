package utils

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespace   = regexp.MustCompile(`\s+`)
	pageName     = regexp.MustCompile(`^page_(\d+)\.([A-Za-z0-9]+)$`)
)

// SanitizeFilename turns a user or source supplied string into a single safe
// path segment.
//
//	SanitizeFilename("Chapter 1: The/Start")  // "Chapter_1__The_Start"
//	SanitizeFilename("  ..  ")                // "untitled"
//	SanitizeFilename("")                      // "untitled"
func SanitizeFilename(name string) string {
	result := invalidChars.ReplaceAllString(name, "_")
	result = whitespace.ReplaceAllString(strings.TrimSpace(result), "_")
	result = strings.Trim(result, "._ ")
	if result == "" {
		return "untitled"
	}
	return result
}

// PageFileName is the local file name for the page with the given ordinal.
func PageFileName(ordinal int, ext string) string {
	return fmt.Sprintf("page_%d.%s", ordinal, strings.TrimPrefix(ext, "."))
}

// PageOrdinal extracts the ordinal from a name produced by PageFileName.
func PageOrdinal(name string) (int, bool) {
	m := pageName.FindStringSubmatch(name)
	if m == nil || !IsImageFile(name) {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ImageExt guesses the image extension of a remote page from its URL path,
// defaulting to png.
func ImageExt(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
		return ext
	default:
		return "png"
	}
}

// IsImageFile checks if a file has an image extension.
func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// SortPages orders page paths by the ordinal in their file names. Paths
// not named by PageFileName are dropped.
func SortPages(paths []string) []string {
	type page struct {
		ordinal int
		path    string
	}
	pages := make([]page, 0, len(paths))
	for _, p := range paths {
		if n, ok := PageOrdinal(filepath.Base(p)); ok {
			pages = append(pages, page{ordinal: n, path: p})
		}
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].ordinal != pages[j].ordinal {
			return pages[i].ordinal < pages[j].ordinal
		}
		return pages[i].path < pages[j].path
	})

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out
}
