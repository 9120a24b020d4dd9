package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PageProcessor prepares page images for embedding in a PDF: any supported
// input (JPEG, PNG, GIF, WebP) becomes an opaque JPEG.
type PageProcessor struct {
	maxWidth int
	quality  int
}

// NewPageProcessor creates a processor. Pages wider than maxWidth are scaled
// down keeping their aspect ratio; 0 disables scaling.
func NewPageProcessor(maxWidth int) *PageProcessor {
	return &PageProcessor{maxWidth: maxWidth, quality: 90}
}

// Prepare decodes a page and returns the encoded JPEG with its dimensions.
func (p *PageProcessor) Prepare(input io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(input)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := p.calculateDimensions(bounds.Dx(), bounds.Dy())

	// Flatten onto white: transparent areas would otherwise turn black in JPEG
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode page: %w", err)
	}
	return buf.Bytes(), width, height, nil
}

func (p *PageProcessor) calculateDimensions(width, height int) (int, int) {
	if p.maxWidth <= 0 || width <= p.maxWidth {
		return width, height
	}
	scale := float64(p.maxWidth) / float64(width)
	newHeight := int(float64(height) * scale)
	if newHeight < 1 {
		newHeight = 1
	}
	return p.maxWidth, newHeight
}
