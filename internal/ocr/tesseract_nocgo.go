//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"
)

// Tesseract is unavailable without cgo.
type Tesseract struct{}

// NewTesseract always fails: gosseract needs cgo and libtesseract.
func NewTesseract(TesseractConfig) (*Tesseract, error) {
	return nil, fmt.Errorf("%w: built without cgo", ErrEngineUnavailable)
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Close implements io.Closer.
func (t *Tesseract) Close() error { return nil }

// Read implements Engine.
func (t *Tesseract) Read(context.Context, image.Image, PageConfig) (string, error) {
	return "", ErrEngineUnavailable
}
