package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelImage draws a dark bar on a light background.
func labelImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := color.RGBA{R: 230, G: 225, B: 220, A: 255}
			if y > h/3 && y < 2*h/3 && x > w/5 && x < 4*w/5 {
				c = color.RGBA{R: 20, G: 20, B: 30, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestVariantsCanonicalOrder(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)

	vs := p.Variants(labelImage(120, 80))
	require.Len(t, vs, len(CanonicalOrder))
	for i, v := range vs {
		assert.Equal(t, CanonicalOrder[i], v.Name)
		require.NotNil(t, v.Image)
		assert.Equal(t, 120, v.Image.Bounds().Dx(), v.Name)
		assert.Equal(t, 80, v.Image.Bounds().Dy(), v.Name)
	}
}

func TestVariantsSubsetKeepsCanonicalOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variants = []string{Denoise, Otsu, Grayscale, Otsu}
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{Grayscale, Otsu, Denoise}, p.Names())

	vs := p.Variants(labelImage(100, 100))
	require.Len(t, vs, 3)
	assert.Equal(t, Grayscale, vs[0].Name)
	assert.Equal(t, Otsu, vs[1].Name)
	assert.Equal(t, Denoise, vs[2].Name)
}

func TestVariantsDeterministic(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	img := labelImage(90, 70)
	a := p.Variants(img)
	b := p.Variants(img)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Image, b[i].Image, a[i].Name)
	}
}

func TestVariantsUpscaleSmallRegion(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	vs := p.Variants(labelImage(40, 20))
	require.NotEmpty(t, vs)
	assert.Equal(t, 64, vs[0].Image.Bounds().Dy())
	assert.Equal(t, 128, vs[0].Image.Bounds().Dx())
}

func TestVariantsEmptyRegion(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, p.Variants(nil))
	assert.Empty(t, p.Variants(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}

func TestOtsuSeparatesInk(t *testing.T) {
	p, err := New(Config{
		Variants: []string{Otsu}, MinSide: 0, Gamma: 1, AdaptiveRadius: 3, MedianRadius: 1, MorphRadius: 1,
	})
	require.NoError(t, err)
	vs := p.Variants(labelImage(100, 60))
	require.Len(t, vs, 1)
	bin := toGray(vs[0].Image)
	assert.Equal(t, uint8(0), bin.GrayAt(50, 30).Y, "bar pixel should be ink")
	assert.Equal(t, uint8(255), bin.GrayAt(2, 2).Y, "background should be white")
}

func TestOtsuLevel(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 1))
	for x := range 10 {
		if x < 5 {
			g.SetGray(x, 0, color.Gray{Y: 40})
		} else {
			g.SetGray(x, 0, color.Gray{Y: 200})
		}
	}
	level := OtsuLevel(g)
	assert.Greater(t, level, uint8(40))
	assert.LessOrEqual(t, level, uint8(200))

	uniform := image.NewGray(image.Rect(0, 0, 4, 4))
	assert.Equal(t, uint8(1), OtsuLevel(uniform))
}

func TestAdaptiveThresholdMarksDarkPixels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 30, 30))
	for y := range 30 {
		for x := range 30 {
			g.SetGray(x, y, color.Gray{Y: 220})
		}
	}
	g.SetGray(15, 15, color.Gray{Y: 10})
	out := adaptiveThreshold(g, 3, 10)
	assert.Equal(t, uint8(0), out.GrayAt(15, 15).Y)
	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Variants = []string{"sepia"}
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Variants = nil
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Gamma = 0
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.ContrastChange = 2
	_, err := New(bad)
	require.Error(t, err)
}
