package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ShelfItem is one synthetic product drawn onto a shelf image.
type ShelfItem struct {
	Box   image.Rectangle
	Label string
	Fill  color.Color
}

// ShelfConfig describes a synthetic shelf photograph.
type ShelfConfig struct {
	Width      int
	Height     int
	Background color.Color
	Items      []ShelfItem
}

// DefaultShelfConfig returns a 320x240 shelf with two labelled products.
func DefaultShelfConfig() ShelfConfig {
	return ShelfConfig{
		Width:      320,
		Height:     240,
		Background: color.RGBA{R: 210, G: 200, B: 180, A: 255},
		Items: []ShelfItem{
			{Box: image.Rect(20, 40, 120, 220), Label: "HEINEKEN", Fill: color.RGBA{R: 30, G: 140, B: 60, A: 255}},
			{Box: image.Rect(180, 40, 280, 220), Label: "PEPSI", Fill: color.RGBA{R: 20, G: 60, B: 170, A: 255}},
		},
	}
}

// GenerateShelfImage renders the configured products with white label text
// drawn in the upper part of each box.
func GenerateShelfImage(cfg ShelfConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	bg := cfg.Background
	if bg == nil {
		bg = color.White
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for _, it := range cfg.Items {
		fill := it.Fill
		if fill == nil {
			fill = color.Black
		}
		draw.Draw(img, it.Box, &image.Uniform{C: fill}, image.Point{}, draw.Src)
		if it.Label == "" {
			continue
		}
		textW := font.MeasureString(face, it.Label).Ceil()
		x := it.Box.Min.X + max((it.Box.Dx()-textW)/2, 0)
		y := it.Box.Min.Y + it.Box.Dy()/4 + face.Ascent
		d := &font.Drawer{Dst: img, Src: image.White, Face: face, Dot: fixed.P(x, y)}
		d.DrawString(it.Label)
	}
	return img
}

// CreateTestImage returns a uniform image.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img or fails the test.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
