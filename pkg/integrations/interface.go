package integrations

import (
	"errors"

	"github.com/kerbaras/mangadl/pkg/data"
)

// ErrNothingToPackage is returned when a chapter has no pages to archive.
var ErrNothingToPackage = errors.New("no images to package")

// Packager turns an ordered list of local page images into a single archive.
type Packager interface {
	Package(pages []string, outputPath string, format data.Format) error
}
