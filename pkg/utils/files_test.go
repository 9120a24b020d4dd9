package utils

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Solo Leveling", "Solo_Leveling"},
		{"Chapter 1: The/Start", "Chapter_1__The_Start"},
		{`a\b|c?d*e"f<g>h`, "a_b_c_d_e_f_g_h"},
		{"trailing dots...", "trailing_dots"},
		{"  spaced   out  ", "spaced_out"},
		{"tab\tand\nnewline", "tab_and_newline"},
		{"..", "untitled"},
		{".", "untitled"},
		{"", "untitled"},
		{"   ", "untitled"},
		{"../../etc/passwd", "etc_passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, `\`)
		})
	}
}

func TestPageOrdinal(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"page_1.png", 1, true},
		{"page_10.jpg", 10, true},
		{"page_007.webp", 7, true},
		{"page_0.png", 0, false},
		{"page_1.png.part", 0, false},
		{"page_a.png", 0, false},
		{"cover.png", 0, false},
		{"page_3.txt", 0, false},
		{"Chapter_1.cbz", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PageOrdinal(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	n, ok := PageOrdinal(PageFileName(42, ".jpeg"))
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, "jpg", ImageExt("https://cdn.example.com/a/b/001.jpg"))
	assert.Equal(t, "webp", ImageExt("https://cdn.example.com/001.WEBP?token=abc"))
	assert.Equal(t, "png", ImageExt("https://cdn.example.com/image"))
	assert.Equal(t, "png", ImageExt("https://cdn.example.com/page.php?id=2"))
}

func TestSortPagesRecoversOrder(t *testing.T) {
	for _, n := range []int{0, 1, 2, 9, 10, 11, 105} {
		dir := t.TempDir()

		// shuffled input so the incoming order cannot help
		var paths []string
		for _, o := range rand.Perm(n) {
			paths = append(paths, filepath.Join(dir, PageFileName(o+1, "png")))
		}
		paths = append(paths, filepath.Join(dir, "Chapter.cbz"), filepath.Join(dir, "page_1.png.part"))

		pages := SortPages(paths)
		require.Len(t, pages, n)
		for i, p := range pages {
			assert.Equal(t, PageFileName(i+1, "png"), filepath.Base(p))
		}
	}
}

func TestSortPagesNumericNotLexical(t *testing.T) {
	pages := SortPages([]string{"/c/page_10.jpg", "/c/page_2.png", "/c/page_1.webp"})
	assert.Equal(t, []string{"/c/page_1.webp", "/c/page_2.png", "/c/page_10.jpg"}, pages)
	assert.Empty(t, SortPages(nil))
}
