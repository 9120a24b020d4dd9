package integrations

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
)

// zipEpoch is stamped on every entry so identical inputs give identical
// archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// CBZWriter builds comic book zip archives.
type CBZWriter struct{}

func NewCBZWriter() *CBZWriter {
	return &CBZWriter{}
}

// Write stores pages in the given order under their base names.
func (c *CBZWriter) Write(pages []string, outputPath string) error {
	return writeAtomic(outputPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, page := range pages {
			if err := addZipEntry(zw, page); err != nil {
				zw.Close()
				return err
			}
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finalize CBZ: %w", err)
		}
		return nil
	})
}

func addZipEntry(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: zipEpoch,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to CBZ: %w", filepath.Base(path), err)
	}

	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("failed to write %s to CBZ: %w", filepath.Base(path), err)
	}
	return nil
}
