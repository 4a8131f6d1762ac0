package utils

import (
	"image"
	"math"
)

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.Width() <= 0 || b.Height() <= 0 {
		return 0
	}
	return b.Width() * b.Height()
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

// BoxFromRect converts an integer rectangle to a float Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{MinX: float64(r.Min.X), MinY: float64(r.Min.Y), MaxX: float64(r.Max.X), MaxY: float64(r.Max.Y)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IoU computes intersection-over-union of two float boxes.
func IoU(a, b Box) float64 {
	ix1 := math.Max(a.MinX, b.MinX)
	iy1 := math.Max(a.MinY, b.MinY)
	ix2 := math.Min(a.MaxX, b.MaxX)
	iy2 := math.Min(a.MaxY, b.MaxY)
	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// RectIoU computes intersection-over-union of two pixel rectangles.
func RectIoU(a, b image.Rectangle) float64 {
	return IoU(BoxFromRect(a), BoxFromRect(b))
}

// RectArea returns the pixel area of r, zero when empty.
func RectArea(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// RectCentroid returns the float centre of r.
func RectCentroid(r image.Rectangle) (float64, float64) {
	return float64(r.Min.X+r.Max.X) / 2, float64(r.Min.Y+r.Max.Y) / 2
}

// CentroidDistance is the Euclidean distance between the centres of a and b.
func CentroidDistance(a, b image.Rectangle) float64 {
	ax, ay := RectCentroid(a)
	bx, by := RectCentroid(b)
	return math.Hypot(ax-bx, ay-by)
}

// FractionRect maps fractional offsets [x1,x2]x[y1,y2] of a width x height
// area onto integer pixels. The result is relative to the area origin and may
// be empty when the fractions collapse after rounding.
func FractionRect(width, height int, x1, y1, x2, y2 float64) image.Rectangle {
	const eps = 1e-9
	px1 := clampInt(int(math.Floor(x1*float64(width)+eps)), 0, width)
	py1 := clampInt(int(math.Floor(y1*float64(height)+eps)), 0, height)
	px2 := clampInt(int(math.Ceil(x2*float64(width)-eps)), 0, width)
	py2 := clampInt(int(math.Ceil(y2*float64(height)-eps)), 0, height)
	if px2 < px1 {
		px2 = px1
	}
	if py2 < py1 {
		py2 = py1
	}
	return image.Rect(px1, py1, px2, py2)
}
