package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/brandscan/internal/detector"
	"github.com/MeKo-Tech/brandscan/internal/ocr"
	"github.com/MeKo-Tech/brandscan/internal/testutil"
	"github.com/MeKo-Tech/brandscan/internal/utils"
)

func newTestPipeline(t *testing.T, det detector.ObjectDetector, eng ocr.Engine) *Pipeline {
	t.Helper()
	p, err := NewBuilder().
		WithObjectDetector(det).
		WithOCREngine(eng).
		WithWorkers(4).
		Build()
	require.NoError(t, err)
	return p
}

func shelf() (*image.RGBA, testutil.ShelfConfig) {
	cfg := testutil.DefaultShelfConfig()
	return testutil.GenerateShelfImage(cfg), cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 0.25, cfg.Detector.ConfidenceFloor)
	assert.Empty(t, cfg.DictionaryPath)
	assert.NotNil(t, NewBuilder().Config().Refiner.Hypotheses)
}

func TestBuilder_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.IoUThreshold = 0
	_, err := NewBuilder().WithConfig(cfg).Build()
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.OCR.Pages = nil
	_, err = NewBuilder().WithConfig(cfg).Build()
	require.Error(t, err)
}

func TestBuilder_MissingDictionary(t *testing.T) {
	_, err := NewBuilder().WithDictionaryPath("/does/not/exist.yaml").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand dictionary")
}

func TestIdentify_ZeroDetections(t *testing.T) {
	img, _ := shelf()
	det := &testutil.FakeDetector{}
	eng := testutil.NewStaticEngine("HEINEKEN")
	p := newTestPipeline(t, det, eng)

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.NotNil(t, res.Products)
	assert.Empty(t, res.Products)
	assert.Equal(t, []State{StateDetecting, StateDone}, res.Trace)
	assert.False(t, res.Fallback)
	assert.Zero(t, eng.Calls(), "OCR must not run without candidates")
	assert.Equal(t, int64(1), det.Calls())
}

func TestIdentify_DetectorFailureFallsBackToWholeImage(t *testing.T) {
	img, cfg := shelf()
	for name, det := range map[string]*testutil.FakeDetector{
		"error": {Err: testutil.ErrFakeUnavailable},
		"panic": {Panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(t, det, testutil.NewFailingEngine())
			res, err := p.Identify(context.Background(), img)
			require.NoError(t, err)
			require.Len(t, res.Products, 1)

			prod := res.Products[0]
			assert.Equal(t, [4]int{0, 0, cfg.Width, cfg.Height}, prod.BBox)
			assert.False(t, prod.Identified)
			assert.Equal(t, "Unidentified product", prod.Brand)
			assert.True(t, prod.Evidence.Fallback)
			assert.True(t, res.Fallback)
			assert.Equal(t, FullTrace, res.Trace)
		})
	}
}

func TestIdentify_NilBackends(t *testing.T) {
	img, _ := shelf()
	p := newTestPipeline(t, nil, nil)

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.True(t, res.Fallback)
	assert.Equal(t, "Unidentified product", res.Products[0].Brand)
	assert.Zero(t, res.Products[0].Evidence.OCRCoverage)
}

func TestIdentify_NoiseOCRGivesClassLabel(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items, "Bottle", 0.9)
	p := newTestPipeline(t, det, testutil.NewStaticEngine("@@ ~"))

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	for _, prod := range res.Products {
		assert.False(t, prod.Identified)
		assert.Equal(t, "Unidentified bottle", prod.Brand)
		assert.Equal(t, "bottle", prod.Evidence.GenericClass)
		assert.Zero(t, prod.Evidence.OCRCoverage)
	}
}

func TestIdentify_UnmatchedTextUsesLongestToken(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items[:1], "bottle", 0.9)
	p := newTestPipeline(t, det, testutil.NewStaticEngine("zxqwv lk"))

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Unidentified: ZXQWV", res.Products[0].Brand)
	assert.False(t, res.Products[0].Identified)
}

func TestIdentify_MatchesBrand(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items, "bottle", 0.9)
	p := newTestPipeline(t, det, testutil.NewStaticEngine("Heineken Lager"))

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	for _, prod := range res.Products {
		assert.True(t, prod.Identified)
		assert.Equal(t, "Heineken", prod.Brand)
		assert.NotEmpty(t, prod.Evidence.MatchedPattern)
		assert.Greater(t, prod.Confidence, 0.5)
		assert.NotEmpty(t, prod.Evidence.Hypothesis)
		assert.Len(t, prod.Evidence.HypothesisBox, 4)
	}
	require.NoError(t, ValidateResult(res))
	assert.Equal(t, FullTrace, res.Trace)
}

func TestIdentify_BoxesWithinImage(t *testing.T) {
	img, _ := shelf()
	det := &testutil.FakeDetector{Detections: []detector.Detection{
		{Box: utils.NewBox(-30, -10, 90, 120), Label: "bottle", Score: 0.8},
		{Box: utils.NewBox(200, 100, 400, 300), Label: "can", Score: 0.7},
	}}
	p := newTestPipeline(t, det, testutil.NewStaticEngine("PEPSI"))

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, res.Products)
	require.NoError(t, ValidateResult(res))
	for _, prod := range res.Products {
		assert.True(t, prod.Box().In(img.Bounds()), "box %v escapes image", prod.BBox)
	}
}

func TestIdentify_DeduplicatesOverlappingCandidates(t *testing.T) {
	img, _ := shelf()
	det := &testutil.FakeDetector{Detections: []detector.Detection{
		{Box: utils.NewBox(20, 40, 120, 220), Label: "bottle", Score: 0.9},
		{Box: utils.NewBox(24, 44, 124, 224), Label: "can", Score: 0.6},
	}}
	p := newTestPipeline(t, det, testutil.NewStaticEngine("HEINEKEN"))

	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "bottle", res.Products[0].Evidence.GenericClass)
}

func TestIdentify_Idempotent(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items, "bottle", 0.8)
	eng := &testutil.FakeEngine{Respond: func(img image.Image, _ ocr.PageConfig) (string, error) {
		if img.Bounds().Dx() > 60 {
			return "PEPSI", nil
		}
		return "", nil
	}}
	p := newTestPipeline(t, det, eng)

	first, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	second, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, first.Products, second.Products)
}

func TestIdentify_MalformedInput(t *testing.T) {
	p := newTestPipeline(t, &testutil.FakeDetector{}, nil)

	_, err := p.Identify(context.Background(), nil)
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = p.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = p.IdentifyBytes(context.Background(), []byte("definitely not an image"))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestIdentifyBytes_PNG(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items[1:], "bottle", 0.9)
	p := newTestPipeline(t, det, testutil.NewStaticEngine("PEPSI"))

	res, err := p.IdentifyBytes(context.Background(), testutil.EncodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, cfg.Width, res.Width)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Pepsi", res.Products[0].Brand)
}

func TestIdentify_Cancelled(t *testing.T) {
	img, cfg := shelf()
	det := testutil.NewFakeDetectorFromItems(cfg.Items, "bottle", 0.9)
	p := newTestPipeline(t, det, testutil.NewStaticEngine("HEINEKEN"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Identify(ctx, img)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestIdentify_OnStateObserver(t *testing.T) {
	img, cfg := shelf()
	var (
		mu   sync.Mutex
		seen []State
	)
	p, err := NewBuilder().
		WithObjectDetector(testutil.NewFakeDetectorFromItems(cfg.Items, "bottle", 0.9)).
		WithOCREngine(testutil.NewStaticEngine("FANTA")).
		WithOnState(func(s State) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}).
		Build()
	require.NoError(t, err)

	_, err = p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, FullTrace, seen)
}

func TestIdentify_UniformImage(t *testing.T) {
	img := testutil.CreateTestImage(64, 64, color.White)
	p := newTestPipeline(t, &testutil.FakeDetector{}, testutil.NewStaticEngine(""))
	res, err := p.Identify(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, res.Products)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestPipeline_Close(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	p, err := NewBuilder().
		WithCloser(closerFunc(func() error { calls++; return nil })).
		WithCloser(closerFunc(func() error { calls++; return boom })).
		WithCloser(nil).
		Build()
	require.NoError(t, err)

	require.ErrorIs(t, p.Close(), boom)
	assert.Equal(t, 2, calls)
	require.NoError(t, p.Close())
}

func TestDetect_Exposed(t *testing.T) {
	img, cfg := shelf()
	p := newTestPipeline(t, testutil.NewFakeDetectorFromItems(cfg.Items, "bottle", 0.9), nil)
	cands, fallback := p.Detect(context.Background(), img)
	assert.False(t, fallback)
	assert.Len(t, cands, 2)
}

func TestIdentify_SubImageBoxesRelativeToOrigin(t *testing.T) {
	img, _ := shelf()
	sub := img.SubImage(image.Rect(100, 50, 320, 240))
	w, h := sub.Bounds().Dx(), sub.Bounds().Dy()

	t.Run("fallback", func(t *testing.T) {
		p := newTestPipeline(t, &testutil.FakeDetector{Err: testutil.ErrFakeUnavailable}, nil)
		res, err := p.Identify(context.Background(), sub)
		require.NoError(t, err)
		require.NoError(t, ValidateResult(res))
		require.Len(t, res.Products, 1)
		assert.Equal(t, [4]int{0, 0, w, h}, res.Products[0].BBox)
	})

	t.Run("detections", func(t *testing.T) {
		det := &testutil.FakeDetector{Detections: []detector.Detection{
			{Box: utils.NewBox(80, -10, 180, 170), Label: "bottle", Score: 0.9},
		}}
		p := newTestPipeline(t, det, testutil.NewStaticEngine("PEPSI"))
		res, err := p.Identify(context.Background(), sub)
		require.NoError(t, err)
		require.NoError(t, ValidateResult(res))
		require.Len(t, res.Products, 1)
		assert.Equal(t, [4]int{80, 0, 180, 170}, res.Products[0].BBox)
		assert.Equal(t, "Pepsi", res.Products[0].Brand)
		for _, v := range res.Products[0].Evidence.HypothesisBox {
			assert.GreaterOrEqual(t, v, 0)
		}
	})
}
