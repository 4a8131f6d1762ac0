// Package preprocess renders a product region into a fixed, ordered menu of
// OCR-friendly image variants.
package preprocess

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/MeKo-Tech/brandscan/internal/utils"
	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Variant names in canonical order.
const (
	Grayscale         = "grayscale"
	Contrast          = "contrast"
	AdaptiveThreshold = "adaptive-threshold"
	Otsu              = "otsu"
	Closing           = "closing"
	Denoise           = "denoise"
)

// CanonicalOrder is the fixed order variants are always produced in.
var CanonicalOrder = []string{Grayscale, Contrast, AdaptiveThreshold, Otsu, Closing, Denoise}

// Config controls which variants are produced and their parameters.
type Config struct {
	Variants       []string // enabled variant names; output keeps canonical order
	MinSide        int      // regions with a shorter side are upscaled first (default: 64)
	ContrastChange float64  // bild contrast change in [-1,1] (default: 0.5)
	Gamma          float64  // gamma applied after contrast (default: 1.2)
	AdaptiveRadius float64  // box-blur radius for the local mean (default: 7)
	AdaptiveOffset int      // pixels darker than mean-offset become ink (default: 10)
	MedianRadius   float64  // median filter radius for denoise (default: 1.5)
	MorphRadius    float64  // erode/dilate radius for closing (default: 1)
	SharpenSigma   float64  // sharpening after median denoise (default: 0.8)
}

// DefaultConfig enables every variant.
func DefaultConfig() Config {
	return Config{
		Variants:       append([]string(nil), CanonicalOrder...),
		MinSide:        64,
		ContrastChange: 0.5,
		Gamma:          1.2,
		AdaptiveRadius: 7,
		AdaptiveOffset: 10,
		MedianRadius:   1.5,
		MorphRadius:    1,
		SharpenSigma:   0.8,
	}
}

// Validate checks variant names and parameter ranges.
func (c Config) Validate() error {
	if len(c.Variants) == 0 {
		return fmt.Errorf("at least one preprocessing variant is required")
	}
	for _, v := range c.Variants {
		if !isKnown(v) {
			return fmt.Errorf("unknown preprocessing variant %q (known: %v)", v, CanonicalOrder)
		}
	}
	if c.ContrastChange < -1 || c.ContrastChange > 1 {
		return fmt.Errorf("contrast change must be within [-1,1], got %f", c.ContrastChange)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %f", c.Gamma)
	}
	if c.AdaptiveRadius <= 0 || c.MedianRadius <= 0 || c.MorphRadius <= 0 {
		return fmt.Errorf("filter radii must be positive")
	}
	if c.MinSide < 0 {
		return fmt.Errorf("min side cannot be negative, got %d", c.MinSide)
	}
	return nil
}

func isKnown(name string) bool {
	for _, v := range CanonicalOrder {
		if v == name {
			return true
		}
	}
	return false
}

// Variant is one preprocessed rendition of a region.
type Variant struct {
	Name  string
	Image image.Image
}

// Preprocessor produces variants. It is stateless and safe for concurrent use.
type Preprocessor struct {
	cfg   Config
	names []string
}

// New creates a preprocessor from cfg.
func New(cfg Config) (*Preprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(cfg.Variants))
	for _, v := range cfg.Variants {
		enabled[v] = true
	}
	names := make([]string, 0, len(enabled))
	for _, v := range CanonicalOrder {
		if enabled[v] {
			names = append(names, v)
		}
	}
	return &Preprocessor{cfg: cfg, names: names}, nil
}

// Names returns the enabled variant names in canonical order.
func (p *Preprocessor) Names() []string {
	return append([]string(nil), p.names...)
}

// Variants renders region into every enabled variant. An empty region yields
// no variants.
func (p *Preprocessor) Variants(region image.Image) []Variant {
	if region == nil || region.Bounds().Empty() {
		return nil
	}
	region = utils.UpscaleToMinSide(region, p.cfg.MinSide)
	gray := toGray(region)

	out := make([]Variant, 0, len(p.names))
	for _, name := range p.names {
		out = append(out, Variant{Name: name, Image: p.render(name, gray)})
	}
	return out
}

func (p *Preprocessor) render(name string, gray *image.Gray) image.Image {
	switch name {
	case Grayscale:
		return gray
	case Contrast:
		return toGray(adjust.Gamma(adjust.Contrast(gray, p.cfg.ContrastChange), p.cfg.Gamma))
	case AdaptiveThreshold:
		return adaptiveThreshold(gray, p.cfg.AdaptiveRadius, p.cfg.AdaptiveOffset)
	case Otsu:
		return segment.Threshold(gray, OtsuLevel(gray))
	case Closing:
		// Dark strokes: erode (min) joins broken ink, dilate (max) restores stroke width.
		binary := segment.Threshold(gray, OtsuLevel(gray))
		var closed image.Image = effect.Erode(binary, p.cfg.MorphRadius)
		closed = effect.Dilate(closed, p.cfg.MorphRadius)
		return toGray(closed)
	case Denoise:
		var smoothed image.Image = effect.Median(gray, p.cfg.MedianRadius)
		if p.cfg.SharpenSigma > 0 {
			smoothed = imaging.Sharpen(smoothed, p.cfg.SharpenSigma)
		}
		return toGray(smoothed)
	default:
		return gray
	}
}

// toGray copies img into an origin-anchored 8-bit gray image.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// adaptiveThreshold marks a pixel as ink when it is darker than the local
// box-blurred mean minus offset.
func adaptiveThreshold(gray *image.Gray, radius float64, offset int) *image.Gray {
	mean := toGray(blur.Box(gray, radius))
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := int(gray.GrayAt(x, y).Y)
			m := int(mean.GrayAt(x-b.Min.X, y-b.Min.Y).Y)
			if v < m-offset {
				out.Pix[out.PixOffset(x, y)] = 0
			} else {
				out.Pix[out.PixOffset(x, y)] = 255
			}
		}
	}
	return out
}

// OtsuLevel returns the global threshold that maximises between-class
// variance of the gray histogram.
func OtsuLevel(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var sumBg, bestVar float64
	var weightBg int
	best := 0
	for t := range 256 {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	// segment.Threshold keeps pixels >= level white; ink must fall strictly below.
	return uint8(min(best+1, 255))
}
