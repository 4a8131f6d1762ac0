package pipeline

import (
	"hash/fnv"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// unidentifiedColor marks products without a brand match.
var unidentifiedColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// BrandColor returns a stable, saturated colour for a brand name.
func BrandColor(name string) color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	hue := float64(h.Sum32() % 360)
	return colorful.Hcl(hue, 0.9, 0.6).Clamped()
}

// RenderOverlay draws product boxes and labels over a copy of img.
func RenderOverlay(img image.Image, res *Result) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	if res == nil {
		return dst
	}
	face := basicfont.Face7x13
	for _, p := range res.Products {
		col := color.Color(unidentifiedColor)
		if p.Identified {
			col = BrandColor(p.Brand)
		}
		box := p.Box()
		utils.DrawRect(dst, box, col, 2)

		label := p.Brand
		textW := font.MeasureString(face, label).Ceil()
		top := max(box.Min.Y-face.Height-2, 0)
		bg := image.Rect(box.Min.X, top, box.Min.X+textW+4, top+face.Height+2)
		utils.FillRect(dst, bg, col)

		d := &font.Drawer{
			Dst:  dst,
			Src:  image.White,
			Face: face,
			Dot:  fixed.P(bg.Min.X+2, bg.Min.Y+face.Ascent+1),
		}
		d.DrawString(label)
	}
	return dst
}
