package pipeline

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/brandscan/internal/testutil"
)

func TestBrandColor_Stable(t *testing.T) {
	a := BrandColor("Heineken")
	b := BrandColor("Heineken")
	assert.Equal(t, a, b)
	_, _, _, alpha := a.RGBA()
	assert.Equal(t, uint32(0xffff), alpha)
}

func TestRenderOverlay(t *testing.T) {
	assert.Nil(t, RenderOverlay(nil, nil))

	src := testutil.CreateTestImage(200, 100, color.White)
	plain := RenderOverlay(src, nil)
	require.NotNil(t, plain)
	assert.Equal(t, src.Bounds(), plain.Bounds())

	out := RenderOverlay(src, sampleResult())
	require.NotNil(t, out)
	assert.Equal(t, src.Bounds(), out.Bounds())

	// The box edge is painted, the source is untouched.
	assert.NotEqual(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(10, 50))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, src.RGBAAt(10, 50))

	// Unidentified products use the neutral colour.
	assert.Equal(t, unidentifiedColor, out.RGBAAt(150-1, 60))
}
