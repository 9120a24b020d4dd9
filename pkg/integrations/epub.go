package integrations

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
)

// EPubBuilder packages a chapter as a fixed single-section EPUB.
type EPubBuilder struct {
	author string
}

func NewEPubBuilder(author string) *EPubBuilder {
	if author == "" {
		author = "mangadl"
	}
	return &EPubBuilder{author: author}
}

func (b *EPubBuilder) Write(pages []string, outputPath string) error {
	title := titleFromPath(outputPath)

	e, err := epub.NewEpub(title)
	if err != nil {
		return fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetAuthor(b.author)
	e.SetLang("en")

	var body strings.Builder
	body.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(title)))

	for i, page := range pages {
		internalPath, err := e.AddImage(page, fmt.Sprintf("%04d%s", i+1, filepath.Ext(page)))
		if err != nil {
			return fmt.Errorf("failed to add image %s: %w", filepath.Base(page), err)
		}
		body.WriteString(fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internalPath, i+1, "\n",
		))
	}

	if _, err := e.AddSection(body.String(), title, "", ""); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}

	// go-epub only writes to a path, so build next to the target and copy
	tmpDir, err := os.MkdirTemp("", "mangadl-epub-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	built := filepath.Join(tmpDir, "book.epub")
	if err := e.Write(built); err != nil {
		return fmt.Errorf("failed to write EPub: %w", err)
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		f, err := os.Open(built)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}
