package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/MeKo-Tech/brandscan/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// LetterboxInfo records how an image was mapped into a square model input.
type LetterboxInfo struct {
	Scale float64
	PadX  int
	PadY  int
}

// Unmap converts model-space coordinates back into source image space.
func (l LetterboxInfo) Unmap(x, y float64) (float64, float64) {
	if l.Scale <= 0 {
		return x, y
	}
	return (x - float64(l.PadX)) / l.Scale, (y - float64(l.PadY)) / l.Scale
}

// Letterbox resizes img to fit a size x size canvas preserving aspect ratio,
// centring it on a neutral grey background.
func Letterbox(img image.Image, size int) (*image.NRGBA, LetterboxInfo, error) {
	if img == nil {
		return nil, LetterboxInfo{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return nil, LetterboxInfo{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("invalid size %d", size)}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, LetterboxInfo{}, &ImageProcessingError{Operation: "letterbox", Err: ErrEmptyImage}
	}

	scale := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	newW := max(1, int(math.Round(float64(b.Dx())*scale)))
	newH := max(1, int(math.Round(float64(b.Dy())*scale)))
	resized := imaging.Resize(img, newW, newH, imaging.Lanczos)

	canvas := imaging.New(size, size, color.NRGBA{R: 114, G: 114, B: 114, A: 255})
	padX := (size - newW) / 2
	padY := (size - newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, LetterboxInfo{Scale: scale, PadX: padX, PadY: padY}, nil
}

// UpscaleToMinSide enlarges img so its short side is at least minSide.
// Images already large enough are returned unchanged.
func UpscaleToMinSide(img image.Image, minSide int) image.Image {
	b := img.Bounds()
	short := min(b.Dx(), b.Dy())
	if minSide <= 0 || short <= 0 || short >= minSide {
		return img
	}
	scale := float64(minSide) / float64(short)
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// NormalizeImagePooled writes img as CHW float32 values in [0,1] into a pooled
// buffer. The caller must return the buffer with mempool.PutFloat32.
func NormalizeImagePooled(img image.Image) ([]float32, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	buf := mempool.GetFloat32(3 * plane)
	for y := range h {
		for x := range w {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			buf[i] = float32(r>>8) / 255
			buf[plane+i] = float32(g>>8) / 255
			buf[2*plane+i] = float32(bl>>8) / 255
		}
	}
	return buf, w, h
}

// CropImageRect crops an image to the given rectangle.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// ToRGBA returns a mutable RGBA copy of img anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// FillRect paints a solid rectangle into dst.
func FillRect(dst *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), &image.Uniform{C: col}, image.Point{}, draw.Src)
}
