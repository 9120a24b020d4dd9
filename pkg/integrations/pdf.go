package integrations

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// PDFWriter renders one page image per PDF page, each page sized to its
// image.
type PDFWriter struct {
	pages *PageProcessor
}

func NewPDFWriter(pages *PageProcessor) *PDFWriter {
	return &PDFWriter{pages: pages}
}

func (p *PDFWriter) Write(pages []string, outputPath string) error {
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetCreationDate(zipEpoch)
	doc.SetModificationDate(zipEpoch)
	doc.SetCatalogSort(true)
	doc.SetCompression(true)
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(titleFromPath(outputPath), true)
	doc.SetProducer("mangadl", true)

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for i, page := range pages {
		if err := p.addPage(doc, i, page, opts); err != nil {
			return err
		}
	}
	if err := doc.Error(); err != nil {
		return fmt.Errorf("failed to build PDF: %w", err)
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		if err := doc.Output(w); err != nil {
			return fmt.Errorf("failed to write PDF: %w", err)
		}
		return nil
	})
}

func (p *PDFWriter) addPage(doc *fpdf.Fpdf, index int, path string, opts fpdf.ImageOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	jpg, width, height, err := p.pages.Prepare(f)
	if err != nil {
		return fmt.Errorf("page %s: %w", filepath.Base(path), err)
	}

	name := fmt.Sprintf("page-%d", index+1)
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(jpg))
	w, h := float64(width), float64(height)
	doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	doc.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")
	return doc.Error()
}

func titleFromPath(outputPath string) string {
	base := filepath.Base(outputPath)
	return base[:len(base)-len(filepath.Ext(base))]
}
