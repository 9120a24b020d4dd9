package integrations

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kerbaras/mangadl/pkg/data"
)

// Archiver is the default Packager, dispatching on the requested format.
type Archiver struct {
	cbz  *CBZWriter
	pdf  *PDFWriter
	epub *EPubBuilder
}

// ArchiverOptions tunes the individual writers.
type ArchiverOptions struct {
	// PDFMaxPageWidth downsizes wider pages before embedding them; 0 keeps
	// the original size.
	PDFMaxPageWidth int
	// Author is written into EPUB metadata.
	Author string
}

func NewArchiver(opts ArchiverOptions) *Archiver {
	return &Archiver{
		cbz:  NewCBZWriter(),
		pdf:  NewPDFWriter(NewPageProcessor(opts.PDFMaxPageWidth)),
		epub: NewEPubBuilder(opts.Author),
	}
}

func (a *Archiver) Package(pages []string, outputPath string, format data.Format) error {
	if len(pages) == 0 {
		return ErrNothingToPackage
	}

	switch format {
	case data.FormatCBZ:
		return a.cbz.Write(pages, outputPath)
	case data.FormatPDF:
		return a.pdf.Write(pages, outputPath)
	case data.FormatEPUB:
		return a.epub.Write(pages, outputPath)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// writeAtomic writes through a temporary sibling file so a failed write never
// leaves a truncated archive at outputPath.
func writeAtomic(outputPath string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}
