package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/testutil"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// genDetection generates a detection that may extend past a 200x200 image.
func genDetection() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-40, 200),
		gen.Float64Range(-40, 200),
		gen.Float64Range(1, 160),
		gen.Float64Range(1, 160),
		gen.Float64Range(0, 1),
	).Map(func(vals []interface{}) detector.Detection {
		x, ok := vals[0].(float64)
		if !ok {
			panic("expected float64")
		}
		y, ok := vals[1].(float64)
		if !ok {
			panic("expected float64")
		}
		w, ok := vals[2].(float64)
		if !ok {
			panic("expected float64")
		}
		h, ok := vals[3].(float64)
		if !ok {
			panic("expected float64")
		}
		score, ok := vals[4].(float64)
		if !ok {
			panic("expected float64")
		}
		return detector.Detection{Box: utils.NewBox(x, y, x+w, y+h), Label: "bottle", Score: score}
	})
}

// TestIdentify_ResultAlwaysValid verifies that Identify output passes
// ValidateResult for any image origin, size and set of detections.
func TestIdentify_ResultAlwaysValid(t *testing.T) {
	det := &testutil.FakeDetector{}
	p := newTestPipeline(t, det, testutil.NewStaticEngine("PEPSI"))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("results are well formed", prop.ForAll(
		func(ox, oy, w, h int, dets []detector.Detection) bool {
			img := image.NewRGBA(image.Rect(ox, oy, ox+w, oy+h))
			draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 200, G: 180, B: 90, A: 255}), image.Point{}, draw.Src)
			det.Detections = dets

			res, err := p.Identify(context.Background(), img)
			if err != nil {
				return false
			}
			if res.Width != w || res.Height != h {
				return false
			}
			if ValidateResult(res) != nil {
				return false
			}
			for _, prod := range res.Products {
				for _, v := range prod.Evidence.HypothesisBox {
					if v < 0 {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(-100, 100),
		gen.IntRange(-100, 100),
		gen.IntRange(8, 200),
		gen.IntRange(8, 200),
		gen.SliceOfN(4, genDetection()),
	))

	properties.TestingRun(t)
}

func TestIdentify_ResultAlwaysValidOnFallback(t *testing.T) {
	p := newTestPipeline(t, &testutil.FakeDetector{Err: testutil.ErrFakeUnavailable}, nil)

	properties := gopter.NewProperties(nil)

	properties.Property("fallback covers the whole image", prop.ForAll(
		func(ox, oy, w, h int) bool {
			img := image.NewRGBA(image.Rect(ox, oy, ox+w, oy+h))
			res, err := p.Identify(context.Background(), img)
			if err != nil || ValidateResult(res) != nil || len(res.Products) != 1 {
				return false
			}
			return res.Products[0].BBox == [4]int{0, 0, w, h}
		},
		gen.IntRange(-100, 100),
		gen.IntRange(-100, 100),
		gen.IntRange(1, 300),
		gen.IntRange(1, 300),
	))

	properties.TestingRun(t)
}
